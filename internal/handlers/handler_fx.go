package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
	"github.com/tradekit/landed_cost_app/internal/dto"
	"github.com/tradekit/landed_cost_app/internal/middleware"
)

// fxHandler handles HTTP requests related to foreign exchange rates.
type fxHandler struct {
	fxService portssvc.FxSvcFacade
}

func newFxHandler(fs portssvc.FxSvcFacade) *fxHandler {
	return &fxHandler{fxService: fs}
}

// registerFxRoutes registers routes related to fx rates.
func registerFxRoutes(rg *gin.RouterGroup, fxService portssvc.FxSvcFacade) {
	h := newFxHandler(fxService)

	fx := rg.Group("/fx")
	{
		fx.POST("/refresh", h.refreshRates)
		fx.GET("/rates/:base/:quote", h.getRate)
	}
}

// refreshRates godoc
// @Summary Refresh the daily fx table
// @Description Fetches the primary and secondary reference-rate feeds, merges them and persists the day's pairwise table. Re-running for the same day is a no-op.
// @Tags fx
// @Produce  json
// @Success 200 {object} dto.FxRefreshResponse
// @Failure 502 {object} map[string]string "Primary feed unavailable"
// @Failure 500 {object} map[string]string "Failed to refresh fx rates"
// @Router /fx/refresh [post]
func (h *fxHandler) refreshRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	logger.Info("Received request to refresh fx rates")

	day, err := h.fxService.BuildDay(c.Request.Context())
	if err != nil {
		logger.Error("Failed to refresh fx rates", slog.String("error", err.Error()))
		respondWithError(c, err, "Failed to refresh fx rates")
		return
	}

	logger.Info("Fx rates refreshed",
		slog.Time("as_of", day.AsOf),
		slog.Int("quotes", len(day.Quotes)),
		slog.Int("inserted", day.Inserted),
	)
	c.JSON(http.StatusOK, dto.ToFxRefreshResponse(day))
}

// getRate godoc
// @Summary Get one fx rate
// @Description Retrieves the stored rate for a currency pair on a given day (today when asOf is omitted)
// @Tags fx
// @Produce  json
// @Param   base  path  string true  "Base currency code (3 letters)" MinLength(3) MaxLength(3)
// @Param   quote path  string true  "Quote currency code (3 letters)" MinLength(3) MaxLength(3)
// @Param   asOf  query string false "Rate day (YYYY-MM-DD)"
// @Success 200 {object} dto.FxQuoteResponse
// @Failure 400 {object} map[string]string "Invalid currency code or date format"
// @Failure 404 {object} map[string]string "No rate stored for the pair and day"
// @Router /fx/rates/{base}/{quote} [get]
func (h *fxHandler) getRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	base := strings.ToUpper(c.Param("base"))
	quote := strings.ToUpper(c.Param("quote"))

	if len(base) != 3 || len(quote) != 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Currency codes must be 3 letters"})
		return
	}

	asOf := time.Now().UTC()
	if raw := c.Query("asOf"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "asOf must be formatted as YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	logger = logger.With(slog.String("base", base), slog.String("quote", quote))
	logger.Info("Received request to get fx rate")

	rate, err := h.fxService.GetRate(c.Request.Context(), base, quote, asOf)
	if err != nil {
		logger.Warn("Failed to get fx rate", slog.String("error", err.Error()))
		respondWithError(c, err, "Failed to retrieve fx rate")
		return
	}

	c.JSON(http.StatusOK, dto.ToFxQuoteResponse(rate))
}
