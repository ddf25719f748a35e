package datasets

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
)

// HTTPDatasetFetcher implements ports.DatasetFetcher over HTTP. It decodes
// CSV and JSON payloads into rows; transport errors and non-2xx responses
// surface as typed fetch failures, never silent empty results. Retry policy
// lives in the ingestion service, not here.
type HTTPDatasetFetcher struct {
	client *http.Client
}

// NewHTTPDatasetFetcher creates a fetcher with the given per-request timeout.
func NewHTTPDatasetFetcher(timeout time.Duration) *HTTPDatasetFetcher {
	return &HTTPDatasetFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// FetchRows downloads and decodes one dataset.
func (f *HTTPDatasetFetcher) FetchRows(ctx context.Context, url, language string) ([]map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamError("building dataset request", err)
	}
	if language != "" {
		req.Header.Set("Accept-Language", language)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError("dataset fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("dataset fetch returned status %d", resp.StatusCode), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "csv"), strings.HasSuffix(url, ".csv"):
		return decodeCSVRows(resp.Body)
	default:
		return decodeJSONRows(resp.Body)
	}
}

func decodeCSVRows(body io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewUpstreamError("reading csv header", err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewUpstreamError("reading csv row", err)
		}
		row := make(map[string]string, len(header))
		for i, field := range record {
			if i < len(header) {
				row[strings.TrimSpace(header[i])] = field
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeJSONRows(body io.Reader) ([]map[string]string, error) {
	var rows []map[string]string
	if err := json.NewDecoder(body).Decode(&rows); err != nil {
		return nil, apperrors.NewUpstreamError("decoding json rows", err)
	}
	return rows, nil
}
