package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// ShipmentDimensionsRequest carries parcel dimensions in centimetres.
type ShipmentDimensionsRequest struct {
	LengthCm decimal.Decimal `json:"lengthCm" binding:"required"`
	WidthCm  decimal.Decimal `json:"widthCm" binding:"required"`
	HeightCm decimal.Decimal `json:"heightCm" binding:"required"`
}

// QuoteRequest defines the structure for requesting a landed-cost quote.
type QuoteRequest struct {
	Origin                string                     `json:"origin" binding:"required,len=2,uppercase"`
	Destination           string                     `json:"destination" binding:"required,len=2,uppercase"`
	DestinationCurrency   string                     `json:"destinationCurrency" binding:"required,len=3,uppercase"`
	ProductCode           string                     `json:"productCode" binding:"required,hs6"`
	ItemValue             decimal.Decimal            `json:"itemValue" binding:"required"`
	ItemCurrency          string                     `json:"itemCurrency" binding:"required,len=3,uppercase"`
	Quantity              decimal.Decimal            `json:"quantity"`
	ActualWeightKg        decimal.Decimal            `json:"actualWeightKg"`
	Dimensions            *ShipmentDimensionsRequest `json:"dimensions"`
	TransportMode         string                     `json:"transportMode" binding:"omitempty,oneof=AIR SEA ROAD COURIER"`
	FreightAmount         *decimal.Decimal           `json:"freightAmount"`
	MerchantCheckoutOptIn bool                       `json:"merchantCheckoutOptIn"`
	AsOf                  string                     `json:"asOf" binding:"omitempty,datetime=2006-01-02"`
}

// ToDomainQuoteInput converts the request DTO into the orchestrator's input.
func (r QuoteRequest) ToDomainQuoteInput() domain.QuoteInput {
	input := domain.QuoteInput{
		Origin:                r.Origin,
		Destination:           r.Destination,
		DestinationCurrency:   r.DestinationCurrency,
		ProductCode:           r.ProductCode,
		ItemValue:             r.ItemValue,
		ItemCurrency:          r.ItemCurrency,
		Quantity:              r.Quantity,
		ActualWeightKg:        r.ActualWeightKg,
		TransportMode:         domain.TransportMode(r.TransportMode),
		MerchantCheckoutOptIn: r.MerchantCheckoutOptIn,
	}
	if r.Dimensions != nil {
		input.Dimensions = &domain.ShipmentDimensions{
			LengthCm: r.Dimensions.LengthCm,
			WidthCm:  r.Dimensions.WidthCm,
			HeightCm: r.Dimensions.HeightCm,
		}
	}
	if r.FreightAmount != nil {
		input.FreightAmount = decimal.NullDecimal{Decimal: *r.FreightAmount, Valid: true}
	}
	if r.AsOf != "" {
		if asOf, err := time.Parse("2006-01-02", r.AsOf); err == nil {
			input.AsOf = asOf
		}
	}
	return input
}

// ComponentChargeResponse is one priced component with its confidence grade.
type ComponentChargeResponse struct {
	Amount     decimal.Decimal `json:"amount"`
	Confidence string          `json:"confidence"`
}

// QuoteResponse defines the structure for API responses containing a quote.
type QuoteResponse struct {
	Currency          string                   `json:"currency"`
	CIF               ComponentChargeResponse  `json:"cif"`
	Duty              ComponentChargeResponse  `json:"duty"`
	VAT               ComponentChargeResponse  `json:"vat"`
	CheckoutVAT       *ComponentChargeResponse `json:"checkoutVAT,omitempty"`
	Fees              ComponentChargeResponse  `json:"fees"`
	Total             decimal.Decimal          `json:"total"`
	OverallConfidence string                   `json:"overallConfidence"`
	MissingComponents []string                 `json:"missingComponents"`
	Policy            string                   `json:"policy"`
	Sources           map[string]string        `json:"sources"`
	AsOf              time.Time                `json:"asOf"`
}

// ToQuoteResponse converts a domain.QuoteResult to a QuoteResponse DTO.
func ToQuoteResponse(result *domain.QuoteResult) QuoteResponse {
	resp := QuoteResponse{
		Currency:          result.Currency,
		CIF:               toComponentResponse(result.CIF),
		Duty:              toComponentResponse(result.Duty),
		VAT:               toComponentResponse(result.VAT),
		Fees:              toComponentResponse(result.Fees),
		Total:             result.Total,
		OverallConfidence: string(result.OverallConfidence),
		MissingComponents: result.MissingComponents,
		Policy:            result.Policy,
		Sources:           result.Sources,
		AsOf:              result.AsOf,
	}
	if result.CheckoutVAT != nil {
		checkout := toComponentResponse(*result.CheckoutVAT)
		resp.CheckoutVAT = &checkout
	}
	return resp
}

func toComponentResponse(c domain.ComponentCharge) ComponentChargeResponse {
	return ComponentChargeResponse{Amount: c.Amount, Confidence: string(c.Confidence)}
}
