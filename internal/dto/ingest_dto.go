package dto

import (
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
)

// StatFeedJobRequest defines the structure for triggering a feed ingestion run.
type StatFeedJobRequest struct {
	Name     string `json:"name" binding:"required"`
	URL      string `json:"url" binding:"required,url"`
	Language string `json:"language"`
	Dataset  string `json:"dataset" binding:"required"`
	Kind     string `json:"kind" binding:"required,oneof=DUTY VAT SURCHARGE FREIGHT"`
	Source   string `json:"source" binding:"omitempty,oneof=OFFICIAL OVERRIDE DEFAULT"`
}

// ToStatFeedJob converts the request DTO into an ingestion job.
func (r StatFeedJobRequest) ToStatFeedJob() portssvc.StatFeedJob {
	job := portssvc.StatFeedJob{
		Name:     r.Name,
		URL:      r.URL,
		Language: r.Language,
		Dataset:  r.Dataset,
		Kind:     domain.RateKind(r.Kind),
		Source:   domain.RateSource(r.Source),
	}
	if job.Language == "" {
		job.Language = "en"
	}
	if job.Source == "" {
		job.Source = domain.SourceOfficial
	}
	return job
}

// DimensionMappingResponse describes how feed keys were mapped to product codes.
type DimensionMappingResponse struct {
	Position       int  `json:"position"`
	DimensionIndex int  `json:"dimensionIndex"`
	Literal        bool `json:"literal"`
}

// IngestionReportResponse defines the structure for API responses summarizing a run.
type IngestionReportResponse struct {
	Mapping    DimensionMappingResponse `json:"mapping"`
	Normalized int                      `json:"normalized"`
	Inserted   int                      `json:"inserted"`
	Dropped    int                      `json:"dropped"`
	Skipped    int                      `json:"skipped"`
}

// ToIngestionReportResponse converts an IngestionReport to its response DTO.
func ToIngestionReportResponse(report *portssvc.IngestionReport) IngestionReportResponse {
	return IngestionReportResponse{
		Mapping: DimensionMappingResponse{
			Position:       report.Mapping.Position,
			DimensionIndex: report.Mapping.DimensionIndex,
			Literal:        report.Mapping.Literal,
		},
		Normalized: report.Normalized,
		Inserted:   report.Inserted,
		Dropped:    report.Dropped,
		Skipped:    report.Skipped,
	}
}
