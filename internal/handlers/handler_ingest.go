package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
	"github.com/tradekit/landed_cost_app/internal/dto"
	"github.com/tradekit/landed_cost_app/internal/middleware"
)

// ingestHandler handles HTTP requests triggering dataset ingestion runs.
type ingestHandler struct {
	ingestionService portssvc.IngestionSvcFacade
}

func newIngestHandler(is portssvc.IngestionSvcFacade) *ingestHandler {
	return &ingestHandler{ingestionService: is}
}

// registerIngestRoutes registers routes related to dataset ingestion.
func registerIngestRoutes(rg *gin.RouterGroup, ingestionService portssvc.IngestionSvcFacade) {
	h := newIngestHandler(ingestionService)

	ingest := rg.Group("/ingest")
	{
		ingest.POST("/statfeed", h.runStatFeed)
	}
}

// runStatFeed godoc
// @Summary Run a statistical-feed ingestion job
// @Description Fetches the named feed, auto-maps its key dimensions to HS6 codes, normalizes the rows and writes them insert-or-ignore into the rate store. Concurrent runs of the same job are rejected.
// @Tags ingest
// @Accept  json
// @Produce  json
// @Param   job body dto.StatFeedJobRequest true "Feed job details"
// @Success 200 {object} dto.IngestionReportResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 409 {object} map[string]string "The same job is already running"
// @Failure 502 {object} map[string]string "Feed unreachable after retries"
// @Failure 500 {object} map[string]string "Failed to run ingestion"
// @Router /ingest/statfeed [post]
func (h *ingestHandler) runStatFeed(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.StatFeedJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RunStatFeed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	logger = logger.With(slog.String("job", req.Name), slog.String("dataset", req.Dataset))
	logger.Info("Received request to run feed ingestion")

	report, err := h.ingestionService.RunStatFeedIngestion(c.Request.Context(), req.ToStatFeedJob())
	if err != nil {
		logger.Error("Feed ingestion failed", slog.String("error", err.Error()))
		respondWithError(c, err, "Failed to run ingestion")
		return
	}

	logger.Info("Feed ingestion finished",
		slog.Int("normalized", report.Normalized),
		slog.Int("inserted", report.Inserted),
		slog.Int("dropped", report.Dropped),
		slog.Int("skipped", report.Skipped),
	)
	c.JSON(http.StatusOK, dto.ToIngestionReportResponse(report))
}
