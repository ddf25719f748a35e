package mapping

import (
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/models"
)

// ToModelFxQuote converts a domain FxQuote to a model FxQuote
func ToModelFxQuote(d domain.FxQuote) models.FxQuote {
	return models.FxQuote{
		QuoteID:       d.QuoteID,
		Provider:      d.Provider,
		BaseCurrency:  d.Base,
		QuoteCurrency: d.Quote,
		AsOf:          d.AsOf,
		Rate:          d.Rate,
		SourceRef:     d.SourceRef,
		AuditFields:   ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainFxQuote converts a model FxQuote to a domain FxQuote
func ToDomainFxQuote(m models.FxQuote) domain.FxQuote {
	return domain.FxQuote{
		QuoteID:     m.QuoteID,
		Provider:    m.Provider,
		Base:        m.BaseCurrency,
		Quote:       m.QuoteCurrency,
		AsOf:        m.AsOf,
		Rate:        m.Rate,
		SourceRef:   m.SourceRef,
		AuditFields: ToDomainAuditFields(m.AuditFields),
	}
}

// ToModelIdempotencyRecord converts a domain IdempotencyRecord to a model IdempotencyRecord
func ToModelIdempotencyRecord(d domain.IdempotencyRecord) models.IdempotencyRecord {
	return models.IdempotencyRecord{
		Scope:       d.Scope,
		Key:         d.Key,
		RequestHash: d.RequestHash,
		Status:      string(d.Status),
		Response:    d.Response,
		LockedAt:    d.LockedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// ToDomainIdempotencyRecord converts a model IdempotencyRecord to a domain IdempotencyRecord
func ToDomainIdempotencyRecord(m models.IdempotencyRecord) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Scope:       m.Scope,
		Key:         m.Key,
		RequestHash: m.RequestHash,
		Status:      domain.IdempotencyStatus(m.Status),
		Response:    m.Response,
		LockedAt:    m.LockedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
