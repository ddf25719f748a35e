package services

import (
	"time"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/ports"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
)

// Deps carries everything needed to build the service container.
type Deps struct {
	RateStore       ports.RateStore
	RateWriter      ports.RateWriter
	FxRepo          ports.FxQuoteRepository
	IdempotencyRepo ports.IdempotencyRepository
	Locker          ports.AdvisoryLocker
	Fetcher         ports.DatasetFetcher
	PrimaryFeed     ports.FxFeed
	SecondaryFeeds  []ports.FxFeed

	FxMaxLagDays    int
	FetchMaxRetries int
	FetchBaseDelay  time.Duration
	// Excluded maps a rate kind to destinations out of scope for it.
	Excluded map[domain.RateKind][]string
	QuoteCfg QuoteConfig
}

// NewServiceContainer wires all services with their dependencies.
func NewServiceContainer(d Deps) *portssvc.ServiceContainer {
	resolver := NewRateResolverService(d.RateStore, d.Excluded)
	fx := NewFxMergeService(d.FxRepo, d.PrimaryFeed, d.SecondaryFeeds, d.FxMaxLagDays)
	quote := NewQuoteService(d.RateStore, resolver, fx, d.QuoteCfg)
	idem := NewIdempotencyService(d.IdempotencyRepo)
	ingest := NewIngestionService(d.Fetcher, d.RateWriter, d.Locker, d.FetchMaxRetries, d.FetchBaseDelay)

	return &portssvc.ServiceContainer{
		Idempotency: idem,
		Resolver:    resolver,
		Fx:          fx,
		Quote:       quote,
		Ingestion:   ingest,
	}
}
