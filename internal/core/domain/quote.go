package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransportMode selects the chargeable-weight rule for freight.
type TransportMode string

const (
	TransportAir     TransportMode = "AIR"
	TransportSea     TransportMode = "SEA"
	TransportRoad    TransportMode = "ROAD"
	TransportCourier TransportMode = "COURIER"
)

// DeMinimisBasis says which value the de-minimis threshold is compared against.
type DeMinimisBasis string

const (
	BasisCIF       DeMinimisBasis = "CIF"
	BasisGoodsOnly DeMinimisBasis = "GOODS_ONLY"
)

// DeMinimisSuppresses says which charges a passed threshold waives.
type DeMinimisSuppresses string

const (
	SuppressDuty       DeMinimisSuppresses = "DUTY"
	SuppressVAT        DeMinimisSuppresses = "VAT"
	SuppressDutyAndVAT DeMinimisSuppresses = "DUTY_AND_VAT"
)

// DeMinimisPolicy is one destination's threshold rule.
type DeMinimisPolicy struct {
	Threshold  decimal.Decimal     `json:"threshold"`
	Currency   string              `json:"currency"`
	Basis      DeMinimisBasis      `json:"basis"`
	Suppresses DeMinimisSuppresses `json:"suppresses"`
}

// VATBasis says what border import tax is charged on.
type VATBasis string

const (
	VATOnCIF     VATBasis = "CIF"
	VATOnCIFDuty VATBasis = "CIF_PLUS_DUTY"
)

// ShipmentDimensions in centimetres, used for volumetric weight.
type ShipmentDimensions struct {
	LengthCm decimal.Decimal `json:"lengthCm"`
	WidthCm  decimal.Decimal `json:"widthCm"`
	HeightCm decimal.Decimal `json:"heightCm"`
}

// QuoteInput is everything the orchestrator needs for one landed-cost computation.
type QuoteInput struct {
	Origin              string
	Destination         string
	DestinationCurrency string
	ProductCode         string
	ItemValue           decimal.Decimal
	ItemCurrency        string
	Quantity            decimal.Decimal
	ActualWeightKg      decimal.Decimal
	Dimensions          *ShipmentDimensions
	TransportMode       TransportMode
	// FreightAmount, when set, is a caller-supplied freight charge already in
	// the destination currency; otherwise freight is resolved from the rate store.
	FreightAmount         decimal.NullDecimal
	MerchantCheckoutOptIn bool
	AsOf                  time.Time
}

// ComponentCharge is one priced component with its own confidence grade.
type ComponentCharge struct {
	Amount     decimal.Decimal `json:"amount"`
	Confidence Confidence      `json:"confidence"`
}

// QuoteResult is the priced, explainable outcome of one computation.
// Ephemeral: never persisted as a source of truth, cached only through the
// idempotency controller.
type QuoteResult struct {
	Currency          string            `json:"currency"`
	CIF               ComponentCharge   `json:"cif"`
	Duty              ComponentCharge   `json:"duty"`
	VAT               ComponentCharge   `json:"vat"`
	CheckoutVAT       *ComponentCharge  `json:"checkoutVAT,omitempty"`
	Fees              ComponentCharge   `json:"fees"`
	Total             decimal.Decimal   `json:"total"`
	OverallConfidence Confidence        `json:"overallConfidence"`
	MissingComponents []string          `json:"missingComponents"`
	Policy            string            `json:"policy"`
	Sources           map[string]string `json:"sources"`
	AsOf              time.Time         `json:"asOf"`
}
