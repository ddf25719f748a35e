package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// fxFeedPayload is the wire shape shared by the supported reference-rate
// providers: an EUR-anchored rate map with the provider's reported date.
type fxFeedPayload struct {
	Base  string            `json:"base"`
	Date  string            `json:"date"`
	Rates map[string]string `json:"rates"`
}

// HTTPFxFeed implements ports.FxFeed for one provider endpoint.
type HTTPFxFeed struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPFxFeed creates a feed adapter for one provider.
func NewHTTPFxFeed(name, url string, timeout time.Duration) *HTTPFxFeed {
	return &HTTPFxFeed{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name used for provenance.
func (f *HTTPFxFeed) Name() string {
	return f.name
}

// Fetch downloads and decodes the provider's daily table.
func (f *HTTPFxFeed) Fetch(ctx context.Context) (*domain.FxFeedSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamError("building fx feed request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError("fx feed fetch failed for "+f.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("fx feed %s returned status %d", f.name, resp.StatusCode), nil)
	}

	var payload fxFeedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewUpstreamError("decoding fx feed payload for "+f.name, err)
	}

	asOf, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return nil, apperrors.NewUpstreamError("fx feed "+f.name+" reported unparseable date "+payload.Date, err)
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for currency, raw := range payload.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			// One bad row does not poison the snapshot.
			continue
		}
		rates[currency] = rate
	}

	return &domain.FxFeedSnapshot{
		Provider:  f.name,
		AsOf:      asOf,
		Base:      payload.Base,
		Rates:     rates,
		SourceRef: f.url,
	}, nil
}
