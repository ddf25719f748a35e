package services

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/ports"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
)

const mappingSampleSize = 500

// cachedFeed is one memoized feed parse, keyed by URL+language. The cache is
// owned by the service and invalidated explicitly, never ambient state.
type cachedFeed struct {
	records []domain.StatRecord
	dims    []domain.StatDimension
}

// IngestionService runs statistical-feed ingestion jobs: it fetches decoded
// rows, discovers the product-code dimension mapping once per feed version,
// normalizes candidate rate rows and writes them insert-or-ignore. Overlapping
// runs of the same job are prevented by an advisory lock on the job identity.
type IngestionService struct {
	BaseService
	fetcher    ports.DatasetFetcher
	writer     ports.RateWriter
	locker     ports.AdvisoryLocker
	maxRetries int
	baseDelay  time.Duration

	mu    sync.Mutex
	cache map[string]cachedFeed
}

// NewIngestionService creates a new IngestionService.
func NewIngestionService(fetcher ports.DatasetFetcher, writer ports.RateWriter, locker ports.AdvisoryLocker, maxRetries int, baseDelay time.Duration) *IngestionService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &IngestionService{
		fetcher:    fetcher,
		writer:     writer,
		locker:     locker,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		cache:      make(map[string]cachedFeed),
	}
}

// InvalidateCache drops the memoized parse for one feed URL+language.
func (s *IngestionService) InvalidateCache(url, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, url+"|"+language)
}

// RunStatFeedIngestion executes one ingestion job end to end. Malformed rows
// are skipped and counted, never abort the batch; records that fail to resolve
// a 6-digit code are dropped and counted, never silently defaulted.
func (s *IngestionService) RunStatFeedIngestion(ctx context.Context, job portssvc.StatFeedJob) (*portssvc.IngestionReport, error) {
	lockKey := "ingest:" + job.Name
	acquired, err := s.locker.Acquire(ctx, lockKey)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to acquire ingestion lock", err)
	}
	if !acquired {
		return nil, apperrors.NewConflictError("ingestion job " + job.Name + " already running")
	}
	defer func() {
		if rerr := s.locker.Release(ctx, lockKey); rerr != nil {
			s.LogError(ctx, rerr, "Failed to release ingestion lock", slog.String("lock_key", lockKey))
		}
	}()

	records, dims, skipped, err := s.loadFeed(ctx, job)
	if err != nil {
		return nil, err
	}

	mapping := ChooseMapping(records, dims, mappingSampleSize)
	s.LogInfo(ctx, "Dimension mapping chosen",
		slog.String("job", job.Name), slog.Int("position", mapping.Position),
		slog.Int("dimension", mapping.DimensionIndex), slog.Bool("literal", mapping.Literal))

	rows, dropped := s.normalizeRows(records, dims, mapping, job)

	inserted, err := s.writer.SaveCandidateRows(ctx, rows, "ingest:"+job.Name)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to persist candidate rows", err)
	}

	report := &portssvc.IngestionReport{
		Mapping:    mapping,
		Normalized: len(rows),
		Inserted:   inserted,
		Dropped:    dropped,
		Skipped:    skipped,
	}
	s.LogInfo(ctx, "Ingestion job finished",
		slog.String("job", job.Name), slog.Int("normalized", report.Normalized),
		slog.Int("inserted", report.Inserted), slog.Int("dropped", report.Dropped),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

// loadFeed fetches and normalizes the raw feed, through the parse cache.
func (s *IngestionService) loadFeed(ctx context.Context, job portssvc.StatFeedJob) ([]domain.StatRecord, []domain.StatDimension, int, error) {
	cacheKey := job.URL + "|" + job.Language

	s.mu.Lock()
	if cached, ok := s.cache[cacheKey]; ok {
		s.mu.Unlock()
		return cached.records, cached.dims, 0, nil
	}
	s.mu.Unlock()

	rawRows, err := s.fetchWithRetry(ctx, job)
	if err != nil {
		return nil, nil, 0, err
	}

	records, dims, skipped := normalizeStatFeedRows(rawRows)

	s.mu.Lock()
	s.cache[cacheKey] = cachedFeed{records: records, dims: dims}
	s.mu.Unlock()

	return records, dims, skipped, nil
}

// fetchWithRetry retries a timed-out or failed fetch with jittered backoff a
// bounded number of times before surfacing the job failure.
func (s *IngestionService) fetchWithRetry(ctx context.Context, job portssvc.StatFeedJob) ([]map[string]string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		rows, err := s.fetcher.FetchRows(ctx, job.URL, job.Language)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		s.LogWarn(ctx, "Dataset fetch failed",
			slog.String("job", job.Name), slog.Int("attempt", attempt), slog.String("error", err.Error()))
		if attempt == s.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitteredBackoff(s.baseDelay, attempt)):
		}
	}
	return nil, apperrors.NewUpstreamError("dataset fetch failed for job "+job.Name, lastErr)
}

// jitteredBackoff grows the delay per attempt with up to 50% random jitter.
func jitteredBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d + jitter
}

// normalizeStatFeedRows is the adapter boundary for the statistical feed
// shape: untyped decoded rows go in, typed StatRecords and StatDimensions come
// out, and untyped maps never propagate past this function. Rows carrying a
// "dimension" field declare a dimension's position-indexed value list
// ("values" pipe-separated); all other rows are records with a colon-separated
// compound "key".
func normalizeStatFeedRows(raw []map[string]string) ([]domain.StatRecord, []domain.StatDimension, int) {
	var (
		records []domain.StatRecord
		dims    []domain.StatDimension
		skipped int
	)

	for _, row := range raw {
		if name, ok := row["dimension"]; ok {
			dims = append(dims, domain.StatDimension{
				Name:   name,
				Values: strings.Split(row["values"], "|"),
			})
			continue
		}

		key, ok := row["key"]
		if !ok || key == "" {
			skipped++
			continue
		}
		rec := domain.StatRecord{
			KeyParts:    strings.Split(key, ":"),
			Destination: row["destination"],
			Origin:      row["origin"],
			Currency:    row["currency"],
		}
		if rec.Destination == "" {
			skipped++
			continue
		}
		if v, ok := parseDecimalField(row, "rate_pct"); ok {
			rec.RatePct = decimal.NullDecimal{Decimal: v, Valid: true}
		}
		if v, ok := parseDecimalField(row, "amount"); ok {
			rec.Amount = decimal.NullDecimal{Decimal: v, Valid: true}
		}
		if !rec.RatePct.Valid && !rec.Amount.Valid {
			skipped++
			continue
		}
		from, err := time.Parse("2006-01-02", row["valid_from"])
		if err != nil {
			skipped++
			continue
		}
		rec.EffectiveFrom = from
		if toRaw := row["valid_to"]; toRaw != "" {
			if to, err := time.Parse("2006-01-02", toRaw); err == nil {
				rec.EffectiveTo = &to
			}
		}
		records = append(records, rec)
	}
	return records, dims, skipped
}

func parseDecimalField(row map[string]string, field string) (decimal.Decimal, bool) {
	raw, ok := row[field]
	if !ok || raw == "" {
		return decimal.Decimal{}, false
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

// normalizeRows applies the chosen mapping uniformly to every record and
// builds rate-store candidate rows.
func (s *IngestionService) normalizeRows(records []domain.StatRecord, dims []domain.StatDimension, mapping domain.DimensionMapping, job portssvc.StatFeedJob) ([]domain.CandidateRow, int) {
	var (
		rows    []domain.CandidateRow
		dropped int
	)
	for _, rec := range records {
		code, ok := ResolveCode(rec, dims, mapping)
		if !ok {
			dropped++
			continue
		}
		row := domain.CandidateRow{
			Scope: domain.ScopeKeys{
				Destination: rec.Destination,
				Origin:      rec.Origin,
				ProductCode: code,
			},
			Kind:          job.Kind,
			Source:        job.Source,
			EffectiveFrom: rec.EffectiveFrom,
			EffectiveTo:   rec.EffectiveTo,
			Dataset:       job.Dataset,
		}
		switch {
		case rec.RatePct.Valid:
			row.Value = rec.RatePct
			row.ValueUnit = domain.UnitPercent
		case rec.Amount.Valid:
			row.Value = rec.Amount
			row.ValueUnit = domain.UnitAmount
			row.Currency = rec.Currency
		}
		rows = append(rows, row)
	}
	return rows, dropped
}
