package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
	"github.com/tradekit/landed_cost_app/internal/dto"
	"github.com/tradekit/landed_cost_app/internal/middleware"
)

// rateHandler handles HTTP requests related to rate resolution.
type rateHandler struct {
	resolverService portssvc.RateResolverSvcFacade
}

func newRateHandler(rs portssvc.RateResolverSvcFacade) *rateHandler {
	return &rateHandler{resolverService: rs}
}

// registerRateRoutes registers routes related to rate resolution.
func registerRateRoutes(rg *gin.RouterGroup, resolverService portssvc.RateResolverSvcFacade) {
	h := newRateHandler(resolverService)

	rates := rg.Group("/rates")
	{
		rates.GET("/resolve", h.resolveRate)
	}
}

// resolveRate godoc
// @Summary Resolve one rate
// @Description Runs the temporal resolver for a destination/origin/product scope and reports the winning record, its precedence tier and a confidence grade. Intended for operators inspecting why a quote priced the way it did.
// @Tags rates
// @Produce  json
// @Param   destination query string true  "Destination country (ISO 3166-1 alpha-2)"
// @Param   origin      query string false "Origin country (ISO 3166-1 alpha-2)"
// @Param   productCode query string false "HS6 product code"
// @Param   kind        query string true  "Rate kind" Enums(DUTY, VAT, SURCHARGE, FREIGHT)
// @Param   asOf        query string false "Resolution day (YYYY-MM-DD)"
// @Success 200 {object} dto.ResolvedRateResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 500 {object} map[string]string "Failed to resolve rate"
// @Router /rates/resolve [get]
func (h *rateHandler) resolveRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var query dto.ResolveRateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		logger.Warn("Failed to bind query for ResolveRate", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	asOf := time.Now().UTC()
	if query.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", query.AsOf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "asOf must be formatted as YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	scope := domain.ScopeKeys{
		Destination: query.Destination,
		Origin:      query.Origin,
		ProductCode: query.ProductCode,
	}

	logger = logger.With(
		slog.String("destination", query.Destination),
		slog.String("kind", query.Kind),
	)
	logger.Info("Received request to resolve rate")

	resolved, err := h.resolverService.Resolve(c.Request.Context(), scope, domain.RateKind(query.Kind), asOf, domain.DefaultPriority)
	if err != nil {
		logger.Error("Failed to resolve rate", slog.String("error", err.Error()))
		respondWithError(c, err, "Failed to resolve rate")
		return
	}

	c.JSON(http.StatusOK, dto.ToResolvedRateResponse(resolved))
}
