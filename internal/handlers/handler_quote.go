package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
	"github.com/tradekit/landed_cost_app/internal/dto"
	"github.com/tradekit/landed_cost_app/internal/middleware"
)

const quoteIdempotencyScope = "quote"

// quoteHandler handles HTTP requests related to landed-cost quotes.
type quoteHandler struct {
	quoteService       portssvc.QuoteSvcFacade
	idempotencyService portssvc.IdempotencySvcFacade
}

func newQuoteHandler(qs portssvc.QuoteSvcFacade, is portssvc.IdempotencySvcFacade) *quoteHandler {
	return &quoteHandler{
		quoteService:       qs,
		idempotencyService: is,
	}
}

// RegisterQuoteRoutes registers routes related to quotes.
func RegisterQuoteRoutes(rg *gin.RouterGroup, quoteService portssvc.QuoteSvcFacade, idempotencyService portssvc.IdempotencySvcFacade) {
	h := newQuoteHandler(quoteService, idempotencyService)

	quotes := rg.Group("/quotes")
	{
		quotes.POST("", h.createQuote)
	}
}

// createQuote godoc
// @Summary Calculate a landed-cost quote
// @Description Prices duty, VAT and surcharges for one cross-border shipment. When an Idempotency-Key header is supplied, repeat submissions with the same key and payload replay the stored response instead of recomputing.
// @Tags quotes
// @Accept  json
// @Produce  json
// @Param   Idempotency-Key header string false "Client-chosen key for at-most-once computation"
// @Param   quote body dto.QuoteRequest true "Shipment details"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 409 {object} map[string]string "Key is being processed or was used with a different payload"
// @Failure 500 {object} map[string]string "Failed to calculate quote"
// @Router /quotes [post]
func (h *quoteHandler) createQuote(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateQuote", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	logger = logger.With(
		slog.String("origin", req.Origin),
		slog.String("destination", req.Destination),
		slog.String("product_code", req.ProductCode),
	)
	logger.Info("Received request to calculate quote")

	input := req.ToDomainQuoteInput()
	compute := func(ctx context.Context) (json.RawMessage, error) {
		result, err := h.quoteService.CalculateQuote(ctx, input)
		if err != nil {
			return nil, err
		}
		return json.Marshal(dto.ToQuoteResponse(result))
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		// No key supplied: compute directly, nothing to replay.
		response, err := compute(c.Request.Context())
		if err != nil {
			logger.Error("Failed to calculate quote", slog.String("error", err.Error()))
			respondWithError(c, err, "Failed to calculate quote")
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", response)
		return
	}

	run, err := h.idempotencyService.Run(c.Request.Context(), quoteIdempotencyScope, idempotencyKey, req, compute, nil)
	if err != nil {
		logger.Warn("Idempotent quote run failed", slog.String("error", err.Error()), slog.String("idempotency_key", idempotencyKey))
		respondWithError(c, err, "Failed to calculate quote")
		return
	}

	if run.Replayed {
		logger.Info("Replaying stored quote response", slog.String("idempotency_key", idempotencyKey))
		c.Header("X-Idempotent-Replay", "true")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", run.Response)
}
