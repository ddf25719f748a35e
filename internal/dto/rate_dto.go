package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// ResolveRateQuery defines the query parameters for the resolver debug endpoint.
type ResolveRateQuery struct {
	Destination string `form:"destination" binding:"required,len=2,uppercase"`
	Origin      string `form:"origin" binding:"omitempty,len=2,uppercase"`
	ProductCode string `form:"productCode" binding:"omitempty,hs6"`
	Kind        string `form:"kind" binding:"required,oneof=DUTY VAT SURCHARGE FREIGHT"`
	AsOf        string `form:"asOf" binding:"omitempty,datetime=2006-01-02"`
}

// ResolvedRateResponse defines the structure for resolver debug responses.
type ResolvedRateResponse struct {
	Status      string           `json:"status"`
	Tier        string           `json:"tier,omitempty"`
	Dataset     string           `json:"dataset,omitempty"`
	Confidence  string           `json:"confidence"`
	Value       *decimal.Decimal `json:"value,omitempty"`
	ValueUnit   string           `json:"valueUnit,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	RateID      string           `json:"rateID,omitempty"`
	Source      string           `json:"source,omitempty"`
	EffectiveAt *time.Time       `json:"effectiveFrom,omitempty"`
}

// ToResolvedRateResponse converts a domain.ResolvedRate to a ResolvedRateResponse DTO.
func ToResolvedRateResponse(resolved domain.ResolvedRate) ResolvedRateResponse {
	resp := ResolvedRateResponse{
		Status:     string(resolved.Meta.Status),
		Tier:       string(resolved.Meta.Tier),
		Dataset:    resolved.Meta.Dataset,
		Confidence: string(domain.ConfidenceForStatus(resolved.Meta.Status)),
	}
	if resolved.Record != nil {
		if resolved.Record.Value.Valid {
			v := resolved.Record.Value.Decimal
			resp.Value = &v
		}
		resp.ValueUnit = string(resolved.Record.ValueUnit)
		resp.Currency = resolved.Record.Currency
		resp.RateID = resolved.Record.RateID
		resp.Source = string(resolved.Record.Source)
		from := resolved.Record.EffectiveFrom
		resp.EffectiveAt = &from
	}
	return resp
}
