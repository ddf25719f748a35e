package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/services"
)

// MockResolverFacade is a mock type for the RateResolverSvcFacade interface
type MockResolverFacade struct {
	mock.Mock
}

func (m *MockResolverFacade) Resolve(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind, asOf time.Time, priority []domain.PriorityTier) (domain.ResolvedRate, error) {
	args := m.Called(ctx, scope, kind, asOf, priority)
	return args.Get(0).(domain.ResolvedRate), args.Error(1)
}

func (m *MockResolverFacade) ResolveAll(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind, asOf time.Time, priority []domain.PriorityTier) ([]domain.RateRecord, domain.ResolveMeta, error) {
	args := m.Called(ctx, scope, kind, asOf, priority)
	var records []domain.RateRecord
	if args.Get(0) != nil {
		records = args.Get(0).([]domain.RateRecord)
	}
	return records, args.Get(1).(domain.ResolveMeta), args.Error(2)
}

// MockFxFacade is a mock type for the FxSvcFacade interface
type MockFxFacade struct {
	mock.Mock
}

func (m *MockFxFacade) BuildDay(ctx context.Context) (*domain.FxDay, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FxDay), args.Error(1)
}

func (m *MockFxFacade) GetRate(ctx context.Context, base, quote string, asOf time.Time) (*domain.FxQuote, error) {
	args := m.Called(ctx, base, quote, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FxQuote), args.Error(1)
}

// --- Test Suite Setup ---

type QuoteServiceTestSuite struct {
	suite.Suite
	mockStore    *MockRateStore
	mockResolver *MockResolverFacade
	mockFx       *MockFxFacade
	asOf         time.Time
}

func (suite *QuoteServiceTestSuite) SetupTest() {
	suite.mockStore = new(MockRateStore)
	suite.mockResolver = new(MockResolverFacade)
	suite.mockFx = new(MockFxFacade)
	suite.asOf = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
}

func (suite *QuoteServiceTestSuite) newService(cfg services.QuoteConfig) *services.QuoteService {
	return services.NewQuoteService(suite.mockStore, suite.mockResolver, suite.mockFx, cfg)
}

func (suite *QuoteServiceTestSuite) baseConfig() services.QuoteConfig {
	return services.QuoteConfig{
		CheckoutVATThreshold: decimal.NewFromInt(150),
		CheckoutDestinations: map[string]bool{"DE": true},
		DeMinimis:            map[string]domain.DeMinimisPolicy{},
		VATBasis:             map[string]domain.VATBasis{},
	}
}

func (suite *QuoteServiceTestSuite) baseInput() domain.QuoteInput {
	return domain.QuoteInput{
		Origin:              "CN",
		Destination:         "DE",
		DestinationCurrency: "EUR",
		ProductCode:         "640399",
		ItemValue:           decimal.NewFromInt(100),
		ItemCurrency:        "EUR",
		Quantity:            decimal.NewFromInt(1),
		FreightAmount:       decimal.NullDecimal{Decimal: decimal.NewFromInt(20), Valid: true},
		AsOf:                suite.asOf,
	}
}

func okRate(id string, kind domain.RateKind, pct string, unit domain.ValueUnit) domain.ResolvedRate {
	v, _ := decimal.NewFromString(pct)
	record := domain.RateRecord{
		RateID:        id,
		Kind:          kind,
		Value:         decimal.NullDecimal{Decimal: v, Valid: true},
		ValueUnit:     unit,
		Source:        domain.SourceOfficial,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Dataset:       "taric-2025",
	}
	return domain.ResolvedRate{
		Record: &record,
		Meta:   domain.ResolveMeta{Status: domain.ResolveOK, Tier: domain.TierOfficial, Dataset: "taric-2025"},
	}
}

func noMatch() domain.ResolvedRate {
	return domain.ResolvedRate{Meta: domain.ResolveMeta{Status: domain.ResolveNoMatch}}
}

func (suite *QuoteServiceTestSuite) expectDuty(pct string) {
	resolved := okRate("duty-1", domain.RateKindDuty, pct, domain.UnitPercent)
	suite.mockResolver.On("Resolve", mock.Anything, mock.Anything, domain.RateKindDuty, mock.Anything, mock.Anything).Return(resolved, nil)
	suite.mockStore.On("FindComponents", mock.Anything, "duty-1").Return([]domain.DutyComponent{}, nil)
}

func (suite *QuoteServiceTestSuite) expectVAT(pct string) {
	resolved := okRate("vat-1", domain.RateKindVAT, pct, domain.UnitPercent)
	suite.mockResolver.On("Resolve", mock.Anything, mock.Anything, domain.RateKindVAT, mock.Anything, mock.Anything).Return(resolved, nil)
}

func (suite *QuoteServiceTestSuite) expectNoSurcharges() {
	suite.mockResolver.On("ResolveAll", mock.Anything, mock.Anything, domain.RateKindSurcharge, mock.Anything, mock.Anything).
		Return(nil, domain.ResolveMeta{Status: domain.ResolveNoMatch}, nil)
}

// --- Test Cases ---

func (suite *QuoteServiceTestSuite) TestCalculateQuote_ValidationErrors() {
	service := suite.newService(suite.baseConfig())

	tests := []struct {
		name   string
		mutate func(*domain.QuoteInput)
	}{
		{"missing destination", func(in *domain.QuoteInput) { in.Destination = "" }},
		{"missing destination currency", func(in *domain.QuoteInput) { in.DestinationCurrency = "" }},
		{"zero item value", func(in *domain.QuoteInput) { in.ItemValue = decimal.Zero }},
		{"missing item currency", func(in *domain.QuoteInput) { in.ItemCurrency = "" }},
		{"bad product code", func(in *domain.QuoteInput) { in.ProductCode = "64" }},
	}
	for _, tt := range tests {
		input := suite.baseInput()
		tt.mutate(&input)
		_, err := service.CalculateQuote(context.Background(), input)
		assert.ErrorIs(suite.T(), err, apperrors.ErrInvalidRequest, tt.name)
	}
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_DottedProductCodeNormalized() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	input := suite.baseInput()
	input.ProductCode = "6403.99"

	result, err := service.CalculateQuote(context.Background(), input)

	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), result)
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_VATOnCIFPlusDuty() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	// CIF = 100 + 20, duty = 5% of 120, VAT = 20% of (120 + 6).
	assert.True(suite.T(), result.CIF.Amount.Equal(decimal.NewFromInt(120)), "cif %s", result.CIF.Amount)
	assert.True(suite.T(), result.Duty.Amount.Equal(decimal.NewFromInt(6)), "duty %s", result.Duty.Amount)
	assert.True(suite.T(), result.VAT.Amount.Equal(decimal.NewFromFloat(25.2)), "vat %s", result.VAT.Amount)
	assert.True(suite.T(), result.Total.Equal(decimal.NewFromFloat(151.2)), "total %s", result.Total)

	assert.Equal(suite.T(), domain.ConfidenceAuthoritative, result.CIF.Confidence)
	assert.Equal(suite.T(), domain.ConfidenceAuthoritative, result.Duty.Confidence)
	assert.Equal(suite.T(), domain.ConfidenceAuthoritative, result.VAT.Confidence)
	// No surcharge coverage at this instant: estimated, not missing.
	assert.Equal(suite.T(), domain.ConfidenceEstimated, result.Fees.Confidence)
	assert.Equal(suite.T(), domain.ConfidenceEstimated, result.OverallConfidence)
	assert.Empty(suite.T(), result.MissingComponents)

	assert.Contains(suite.T(), result.Policy, "CIF plus duty")
	assert.Contains(suite.T(), result.Sources, "duty")
	assert.Contains(suite.T(), result.Sources, "vat")
	assert.Equal(suite.T(), "caller", result.Sources["freight"])
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_VATOnCIFOnly() {
	cfg := suite.baseConfig()
	cfg.VATBasis = map[string]domain.VATBasis{"DE": domain.VATOnCIF}
	service := suite.newService(cfg)
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	// VAT = 20% of CIF alone.
	assert.True(suite.T(), result.VAT.Amount.Equal(decimal.NewFromInt(24)), "vat %s", result.VAT.Amount)
	assert.Contains(suite.T(), result.Policy, "charged on CIF.")
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_ItemCurrencyConverted() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()
	suite.mockFx.On("GetRate", mock.Anything, "USD", "EUR", suite.asOf).
		Return(&domain.FxQuote{Provider: "ecb", Base: "USD", Quote: "EUR", Rate: decimal.NewFromFloat(0.9)}, nil)

	input := suite.baseInput()
	input.ItemCurrency = "USD"

	result, err := service.CalculateQuote(context.Background(), input)

	assert.NoError(suite.T(), err)
	// CIF = 100 * 0.9 + 20.
	assert.True(suite.T(), result.CIF.Amount.Equal(decimal.NewFromInt(110)), "cif %s", result.CIF.Amount)
	assert.Equal(suite.T(), "ecb", result.Sources["fx:USDEUR"])
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_MissingFxDegradesComponent() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()
	suite.mockFx.On("GetRate", mock.Anything, "JPY", "EUR", suite.asOf).
		Return(nil, apperrors.NewNotFoundError("no fx quote")).Once()

	input := suite.baseInput()
	input.ItemCurrency = "JPY"

	result, err := service.CalculateQuote(context.Background(), input)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), domain.ConfidenceMissing, result.CIF.Confidence)
	assert.Equal(suite.T(), domain.ConfidenceMissing, result.OverallConfidence)
	assert.Contains(suite.T(), result.MissingComponents, "item_value")
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_DeMinimisSuppressesDutyAndVAT() {
	cfg := suite.baseConfig()
	cfg.DeMinimis = map[string]domain.DeMinimisPolicy{
		"DE": {
			Threshold:  decimal.NewFromInt(150),
			Currency:   "EUR",
			Basis:      domain.BasisGoodsOnly,
			Suppresses: domain.SuppressDutyAndVAT,
		},
	}
	service := suite.newService(cfg)
	suite.expectNoSurcharges()

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), result.Duty.Amount.IsZero())
	assert.True(suite.T(), result.VAT.Amount.IsZero())
	// A waived charge is a confirmed zero.
	assert.Equal(suite.T(), domain.ConfidenceAuthoritative, result.Duty.Confidence)
	assert.Equal(suite.T(), domain.ConfidenceAuthoritative, result.VAT.Confidence)
	assert.Contains(suite.T(), result.Policy, "Duty & VAT not charged at import")
	suite.mockResolver.AssertNotCalled(suite.T(), "Resolve", mock.Anything, mock.Anything, domain.RateKindDuty, mock.Anything, mock.Anything)
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_AboveDeMinimisChargesNormally() {
	cfg := suite.baseConfig()
	cfg.DeMinimis = map[string]domain.DeMinimisPolicy{
		"DE": {
			Threshold:  decimal.NewFromInt(50),
			Currency:   "EUR",
			Basis:      domain.BasisGoodsOnly,
			Suppresses: domain.SuppressDutyAndVAT,
		},
	}
	service := suite.newService(cfg)
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	assert.False(suite.T(), result.Duty.Amount.IsZero())
	assert.NotContains(suite.T(), result.Policy, "de-minimis")
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_CheckoutVATRouting() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	input := suite.baseInput()
	input.MerchantCheckoutOptIn = true

	result, err := service.CalculateQuote(context.Background(), input)

	assert.NoError(suite.T(), err)
	// Border VAT replaced by checkout-collected VAT: 20% of CIF 120.
	assert.True(suite.T(), result.VAT.Amount.IsZero())
	assert.NotNil(suite.T(), result.CheckoutVAT)
	assert.True(suite.T(), result.CheckoutVAT.Amount.Equal(decimal.NewFromInt(24)), "checkout vat %s", result.CheckoutVAT.Amount)
	assert.Contains(suite.T(), result.Policy, "collected by the merchant at checkout")
	// Total still includes the checkout-collected amount.
	assert.True(suite.T(), result.Total.Equal(decimal.NewFromInt(150)), "total %s", result.Total)
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_CheckoutVATRequiresOptIn() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), result.CheckoutVAT)
	assert.False(suite.T(), result.VAT.Amount.IsZero())
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_CheckoutVATValueAboveThreshold() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	input := suite.baseInput()
	input.MerchantCheckoutOptIn = true
	input.ItemValue = decimal.NewFromInt(200)

	result, err := service.CalculateQuote(context.Background(), input)

	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), result.CheckoutVAT, "value above threshold routes to border VAT")
	assert.False(suite.T(), result.VAT.Amount.IsZero())
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_SurchargesStack() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")

	pctRecord := *okRate("fee-pct", domain.RateKindSurcharge, "2", domain.UnitPercent).Record
	fixedRecord := *okRate("fee-fixed", domain.RateKindSurcharge, "4", domain.UnitAmount).Record
	fixedRecord.Currency = "EUR"
	suite.mockResolver.On("ResolveAll", mock.Anything, mock.Anything, domain.RateKindSurcharge, mock.Anything, mock.Anything).
		Return([]domain.RateRecord{pctRecord, fixedRecord}, domain.ResolveMeta{Status: domain.ResolveOK, Tier: domain.TierOfficial}, nil)

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	// 2% of CIF 120 + fixed 4.
	assert.True(suite.T(), result.Fees.Amount.Equal(decimal.NewFromFloat(6.4)), "fees %s", result.Fees.Amount)
	assert.Equal(suite.T(), domain.ConfidenceAuthoritative, result.OverallConfidence)
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_StrictFreshnessDowngradesStaleDataset() {
	cfg := suite.baseConfig()
	cfg.StrictFreshness = true
	cfg.StaleDatasets = map[string]bool{"taric-2025": true}
	service := suite.newService(cfg)
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), domain.ConfidenceMissing, result.Duty.Confidence)
	assert.Equal(suite.T(), domain.ConfidenceMissing, result.OverallConfidence)
	assert.Contains(suite.T(), result.MissingComponents, "duty")
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_VolumetricFreightForAir() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	perKg := okRate("freight-1", domain.RateKindFreight, "2", domain.UnitAmountPerKg)
	perKg.Record.Currency = "EUR"
	suite.mockResolver.On("Resolve", mock.Anything, mock.Anything, domain.RateKindFreight, mock.Anything, mock.Anything).Return(perKg, nil)

	input := suite.baseInput()
	input.FreightAmount = decimal.NullDecimal{}
	input.TransportMode = domain.TransportAir
	input.ActualWeightKg = decimal.NewFromInt(10)
	input.Dimensions = &domain.ShipmentDimensions{
		LengthCm: decimal.NewFromInt(50),
		WidthCm:  decimal.NewFromInt(40),
		HeightCm: decimal.NewFromInt(50),
	}

	result, err := service.CalculateQuote(context.Background(), input)

	assert.NoError(suite.T(), err)
	// Volumetric 50*40*50/5000 = 20kg beats actual 10kg; freight = 20 * 2.
	assert.True(suite.T(), result.CIF.Amount.Equal(decimal.NewFromInt(140)), "cif %s", result.CIF.Amount)
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_NoDatasetMarksComponentMissing() {
	service := suite.newService(suite.baseConfig())
	suite.mockResolver.On("Resolve", mock.Anything, mock.Anything, domain.RateKindDuty, mock.Anything, mock.Anything).
		Return(domain.ResolvedRate{Meta: domain.ResolveMeta{Status: domain.ResolveNoDataset}}, nil)
	suite.expectVAT("20")
	suite.expectNoSurcharges()

	result, err := service.CalculateQuote(context.Background(), suite.baseInput())

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), domain.ConfidenceMissing, result.Duty.Confidence)
	assert.Contains(suite.T(), result.MissingComponents, "duty")
	assert.True(suite.T(), result.Duty.Amount.IsZero())
}

func (suite *QuoteServiceTestSuite) TestCalculateQuote_ZeroDecimalCurrencyRounding() {
	service := suite.newService(suite.baseConfig())
	suite.expectDuty("5")
	suite.expectVAT("20")
	suite.expectNoSurcharges()
	suite.mockFx.On("GetRate", mock.Anything, "EUR", "JPY", suite.asOf).
		Return(&domain.FxQuote{Provider: "ecb", Base: "EUR", Quote: "JPY", Rate: decimal.NewFromFloat(161.37)}, nil)

	input := suite.baseInput()
	input.DestinationCurrency = "JPY"
	input.ItemCurrency = "EUR"
	input.FreightAmount = decimal.NullDecimal{Decimal: decimal.NewFromInt(3000), Valid: true}

	result, err := service.CalculateQuote(context.Background(), input)

	assert.NoError(suite.T(), err)
	// Yen has no minor unit: every presented amount is integral.
	assert.True(suite.T(), result.CIF.Amount.Equal(result.CIF.Amount.Truncate(0)), "cif %s", result.CIF.Amount)
	assert.True(suite.T(), result.Total.Equal(result.Total.Truncate(0)), "total %s", result.Total)
}

func TestQuoteServiceTestSuite(t *testing.T) {
	suite.Run(t, new(QuoteServiceTestSuite))
}
