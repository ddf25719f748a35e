package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
	"github.com/tradekit/landed_cost_app/internal/dto"
	"github.com/tradekit/landed_cost_app/internal/handlers"
)

// --- Mock QuoteService ---
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) CalculateQuote(ctx context.Context, input domain.QuoteInput) (*domain.QuoteResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuoteResult), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.QuoteSvcFacade = (*MockQuoteService)(nil)

// --- Mock IdempotencyService ---
type MockIdempotencyService struct {
	mock.Mock
}

func (m *MockIdempotencyService) Run(ctx context.Context, scope, key string, payload any, compute func(ctx context.Context) (json.RawMessage, error), opts *portssvc.RunOptions) (portssvc.RunResult, error) {
	args := m.Called(ctx, scope, key, payload, compute, opts)
	return args.Get(0).(portssvc.RunResult), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.IdempotencySvcFacade = (*MockIdempotencyService)(nil)

// --- Test Suite ---
type QuoteHandlerTestSuite struct {
	suite.Suite
	router          *gin.Engine
	mockQuoteSvc    *MockQuoteService
	mockIdemSvc     *MockIdempotencyService
	sampleResult    *domain.QuoteResult
	sampleRequestJS []byte
}

func (suite *QuoteHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	handlers.RegisterCustomValidators()
	suite.router = gin.New()

	suite.mockQuoteSvc = new(MockQuoteService)
	suite.mockIdemSvc = new(MockIdempotencyService)

	v1 := suite.router.Group("/api/v1")
	handlers.RegisterQuoteRoutes(v1, suite.mockQuoteSvc, suite.mockIdemSvc)

	suite.sampleResult = &domain.QuoteResult{
		Currency:          "EUR",
		CIF:               domain.ComponentCharge{Amount: decimal.NewFromInt(120), Confidence: domain.ConfidenceAuthoritative},
		Duty:              domain.ComponentCharge{Amount: decimal.NewFromInt(6), Confidence: domain.ConfidenceAuthoritative},
		VAT:               domain.ComponentCharge{Amount: decimal.NewFromFloat(25.2), Confidence: domain.ConfidenceAuthoritative},
		Fees:              domain.ComponentCharge{Amount: decimal.Zero, Confidence: domain.ConfidenceEstimated},
		Total:             decimal.NewFromFloat(151.2),
		OverallConfidence: domain.ConfidenceEstimated,
		MissingComponents: []string{},
		Policy:            "Import VAT charged on CIF plus duty.",
		Sources:           map[string]string{"freight": "caller"},
		AsOf:              time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	suite.sampleRequestJS = []byte(`{
		"origin": "CN",
		"destination": "DE",
		"destinationCurrency": "EUR",
		"productCode": "640399",
		"itemValue": "100",
		"itemCurrency": "EUR",
		"freightAmount": "20"
	}`)
}

func (suite *QuoteHandlerTestSuite) postQuote(body []byte, idempotencyKey string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/quotes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

// --- Test Cases ---

func (suite *QuoteHandlerTestSuite) TestCreateQuote_Success() {
	suite.mockQuoteSvc.On("CalculateQuote",
		mock.Anything,
		mock.MatchedBy(func(in domain.QuoteInput) bool {
			return in.Destination == "DE" && in.ProductCode == "640399" && in.FreightAmount.Valid
		}),
	).Return(suite.sampleResult, nil).Once()

	w := suite.postQuote(suite.sampleRequestJS, "")

	suite.Equal(http.StatusOK, w.Code)

	var responseBody dto.QuoteResponse
	err := json.Unmarshal(w.Body.Bytes(), &responseBody)
	suite.NoError(err, "Failed to unmarshal response body")
	suite.Equal("EUR", responseBody.Currency)
	suite.True(responseBody.Total.Equal(decimal.NewFromFloat(151.2)))
	suite.Equal("AUTHORITATIVE", responseBody.Duty.Confidence)

	suite.mockQuoteSvc.AssertExpectations(suite.T())
	// No key supplied: the idempotency controller must stay out of the path.
	suite.mockIdemSvc.AssertNotCalled(suite.T(), "Run")
}

func (suite *QuoteHandlerTestSuite) TestCreateQuote_InvalidProductCode() {
	body := []byte(`{
		"origin": "CN",
		"destination": "DE",
		"destinationCurrency": "EUR",
		"productCode": "64",
		"itemValue": "100",
		"itemCurrency": "EUR"
	}`)

	w := suite.postQuote(body, "")

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockQuoteSvc.AssertNotCalled(suite.T(), "CalculateQuote")
}

func (suite *QuoteHandlerTestSuite) TestCreateQuote_MissingDestination() {
	body := []byte(`{
		"origin": "CN",
		"destinationCurrency": "EUR",
		"productCode": "640399",
		"itemValue": "100",
		"itemCurrency": "EUR"
	}`)

	w := suite.postQuote(body, "")

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockQuoteSvc.AssertNotCalled(suite.T(), "CalculateQuote")
}

func (suite *QuoteHandlerTestSuite) TestCreateQuote_IdempotentReplay() {
	stored, err := json.Marshal(dto.ToQuoteResponse(suite.sampleResult))
	suite.NoError(err)

	suite.mockIdemSvc.On("Run",
		mock.Anything,
		"quote",
		"key-123",
		mock.AnythingOfType("dto.QuoteRequest"),
		mock.Anything,
		mock.Anything,
	).Return(portssvc.RunResult{Response: stored, Replayed: true}, nil).Once()

	w := suite.postQuote(suite.sampleRequestJS, "key-123")

	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("true", w.Header().Get("X-Idempotent-Replay"))
	suite.JSONEq(string(stored), w.Body.String())

	suite.mockIdemSvc.AssertExpectations(suite.T())
	// The stored response is replayed; no recompute.
	suite.mockQuoteSvc.AssertNotCalled(suite.T(), "CalculateQuote")
}

func (suite *QuoteHandlerTestSuite) TestCreateQuote_ProcessingConflict() {
	suite.mockIdemSvc.On("Run",
		mock.Anything,
		"quote",
		"key-123",
		mock.Anything,
		mock.Anything,
		mock.Anything,
	).Return(portssvc.RunResult{}, apperrors.NewConflictError("Processing")).Once()

	w := suite.postQuote(suite.sampleRequestJS, "key-123")

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *QuoteHandlerTestSuite) TestCreateQuote_UpstreamFailure() {
	suite.mockQuoteSvc.On("CalculateQuote", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewUpstreamError("rate feed unreachable", nil)).Once()

	w := suite.postQuote(suite.sampleRequestJS, "")

	suite.Equal(http.StatusBadGateway, w.Code)
}

// --- Run Test Suite ---
func TestQuoteHandler(t *testing.T) {
	suite.Run(t, new(QuoteHandlerTestSuite))
}
