package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// FxRefreshResponse summarizes one daily reference-rate refresh.
type FxRefreshResponse struct {
	AsOf     time.Time `json:"asOf"`
	Quotes   int       `json:"quotes"`
	Inserted int       `json:"inserted"`
}

// ToFxRefreshResponse converts a domain.FxDay to an FxRefreshResponse DTO.
func ToFxRefreshResponse(day *domain.FxDay) FxRefreshResponse {
	return FxRefreshResponse{
		AsOf:     day.AsOf,
		Quotes:   len(day.Quotes),
		Inserted: day.Inserted,
	}
}

// FxQuoteResponse defines the structure for API responses containing one fx rate.
type FxQuoteResponse struct {
	Provider  string          `json:"provider"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	AsOf      time.Time       `json:"asOf"`
	Rate      decimal.Decimal `json:"rate"`
	SourceRef string          `json:"sourceRef,omitempty"`
}

// ToFxQuoteResponse converts a domain.FxQuote to an FxQuoteResponse DTO.
func ToFxQuoteResponse(q *domain.FxQuote) FxQuoteResponse {
	return FxQuoteResponse{
		Provider:  q.Provider,
		Base:      q.Base,
		Quote:     q.Quote,
		AsOf:      q.AsOf,
		Rate:      q.Rate,
		SourceRef: q.SourceRef,
	}
}
