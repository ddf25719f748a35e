package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
	"github.com/tradekit/landed_cost_app/internal/core/services"
)

// MockDatasetFetcher is a mock type for the DatasetFetcher interface
type MockDatasetFetcher struct {
	mock.Mock
}

func (m *MockDatasetFetcher) FetchRows(ctx context.Context, url, language string) ([]map[string]string, error) {
	args := m.Called(ctx, url, language)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]string), args.Error(1)
}

// MockRateWriter is a mock type for the RateWriter interface
type MockRateWriter struct {
	mock.Mock
}

func (m *MockRateWriter) SaveCandidateRows(ctx context.Context, rows []domain.CandidateRow, creator string) (int, error) {
	args := m.Called(ctx, rows, creator)
	return args.Int(0), args.Error(1)
}

// MockAdvisoryLocker is a mock type for the AdvisoryLocker interface
type MockAdvisoryLocker struct {
	mock.Mock
}

func (m *MockAdvisoryLocker) Acquire(ctx context.Context, lockKey string) (bool, error) {
	args := m.Called(ctx, lockKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdvisoryLocker) Release(ctx context.Context, lockKey string) error {
	args := m.Called(ctx, lockKey)
	return args.Error(0)
}

// --- Test Suite Setup ---

type IngestionServiceTestSuite struct {
	suite.Suite
	mockFetcher *MockDatasetFetcher
	mockWriter  *MockRateWriter
	mockLocker  *MockAdvisoryLocker
	service     *services.IngestionService
	job         portssvc.StatFeedJob
}

func (suite *IngestionServiceTestSuite) SetupTest() {
	suite.mockFetcher = new(MockDatasetFetcher)
	suite.mockWriter = new(MockRateWriter)
	suite.mockLocker = new(MockAdvisoryLocker)
	suite.service = services.NewIngestionService(suite.mockFetcher, suite.mockWriter, suite.mockLocker, 3, time.Millisecond)
	suite.job = portssvc.StatFeedJob{
		Name:     "taric-duty",
		URL:      "https://stats.example/duty.csv",
		Language: "en",
		Dataset:  "taric-2025",
		Kind:     domain.RateKindDuty,
		Source:   domain.SourceOfficial,
	}
}

func (suite *IngestionServiceTestSuite) expectLock() {
	suite.mockLocker.On("Acquire", mock.Anything, "ingest:taric-duty").Return(true, nil).Once()
	suite.mockLocker.On("Release", mock.Anything, "ingest:taric-duty").Return(nil).Once()
}

// feedRows is a feed whose second key position indexes the commodity dimension,
// plus one malformed row and one record whose code cannot resolve.
func feedRows() []map[string]string {
	return []map[string]string{
		{"dimension": "reporter", "values": "DE|FR"},
		{"dimension": "commodity", "values": "640399|850110"},
		{"key": "0:0", "destination": "DE", "origin": "CN", "rate_pct": "5", "valid_from": "2025-01-01"},
		{"key": "0:1", "destination": "DE", "origin": "CN", "rate_pct": "3.5", "valid_from": "2025-01-01"},
		{"key": "0:zz", "destination": "DE", "origin": "CN", "rate_pct": "9", "valid_from": "2025-01-01"},
		{"key": "0:0", "destination": "", "rate_pct": "5", "valid_from": "2025-01-01"},
	}
}

// --- Test Cases ---

func (suite *IngestionServiceTestSuite) TestRun_LockHeld_Conflicts() {
	suite.mockLocker.On("Acquire", mock.Anything, "ingest:taric-duty").Return(false, nil).Once()

	_, err := suite.service.RunStatFeedIngestion(context.Background(), suite.job)

	assert.ErrorIs(suite.T(), err, apperrors.ErrConflict)
	suite.mockFetcher.AssertNotCalled(suite.T(), "FetchRows")
	suite.mockLocker.AssertNotCalled(suite.T(), "Release")
}

func (suite *IngestionServiceTestSuite) TestRun_EndToEndReportCounts() {
	suite.expectLock()
	suite.mockFetcher.On("FetchRows", mock.Anything, suite.job.URL, "en").Return(feedRows(), nil).Once()

	var savedRows []domain.CandidateRow
	suite.mockWriter.On("SaveCandidateRows", mock.Anything, mock.Anything, "ingest:taric-duty").Run(func(args mock.Arguments) {
		savedRows = args.Get(1).([]domain.CandidateRow)
	}).Return(2, nil).Once()

	report, err := suite.service.RunStatFeedIngestion(context.Background(), suite.job)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, report.Mapping.Position)
	assert.False(suite.T(), report.Mapping.Literal)
	assert.Equal(suite.T(), 2, report.Normalized)
	assert.Equal(suite.T(), 2, report.Inserted)
	assert.Equal(suite.T(), 1, report.Dropped) // "0:zz" resolves no code
	assert.Equal(suite.T(), 1, report.Skipped) // missing destination

	assert.Len(suite.T(), savedRows, 2)
	first := savedRows[0]
	assert.Equal(suite.T(), "640399", first.Scope.ProductCode)
	assert.Equal(suite.T(), "DE", first.Scope.Destination)
	assert.Equal(suite.T(), domain.RateKindDuty, first.Kind)
	assert.Equal(suite.T(), domain.SourceOfficial, first.Source)
	assert.Equal(suite.T(), domain.UnitPercent, first.ValueUnit)
	assert.Equal(suite.T(), "taric-2025", first.Dataset)
	suite.mockLocker.AssertExpectations(suite.T())
}

func (suite *IngestionServiceTestSuite) TestRun_FetchRetriesThenSucceeds() {
	suite.expectLock()
	suite.mockFetcher.On("FetchRows", mock.Anything, suite.job.URL, "en").
		Return(nil, apperrors.NewUpstreamError("timeout", nil)).Twice()
	suite.mockFetcher.On("FetchRows", mock.Anything, suite.job.URL, "en").Return(feedRows(), nil).Once()
	suite.mockWriter.On("SaveCandidateRows", mock.Anything, mock.Anything, mock.Anything).Return(2, nil).Once()

	report, err := suite.service.RunStatFeedIngestion(context.Background(), suite.job)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, report.Normalized)
	suite.mockFetcher.AssertNumberOfCalls(suite.T(), "FetchRows", 3)
}

func (suite *IngestionServiceTestSuite) TestRun_FetchExhaustsRetries() {
	suite.expectLock()
	suite.mockFetcher.On("FetchRows", mock.Anything, suite.job.URL, "en").
		Return(nil, apperrors.NewUpstreamError("timeout", nil)).Times(3)

	_, err := suite.service.RunStatFeedIngestion(context.Background(), suite.job)

	assert.ErrorIs(suite.T(), err, apperrors.ErrUpstreamUnavailable)
	suite.mockWriter.AssertNotCalled(suite.T(), "SaveCandidateRows")
}

func (suite *IngestionServiceTestSuite) TestRun_SecondRunHitsParseCache() {
	suite.expectLock()
	suite.mockFetcher.On("FetchRows", mock.Anything, suite.job.URL, "en").Return(feedRows(), nil).Once()
	suite.mockWriter.On("SaveCandidateRows", mock.Anything, mock.Anything, mock.Anything).Return(2, nil).Once()

	_, err := suite.service.RunStatFeedIngestion(context.Background(), suite.job)
	assert.NoError(suite.T(), err)

	// Second run: same URL+language, no refetch, insert-or-ignore reports zero.
	suite.expectLock()
	suite.mockWriter.On("SaveCandidateRows", mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Once()

	report, err := suite.service.RunStatFeedIngestion(context.Background(), suite.job)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, report.Inserted)
	suite.mockFetcher.AssertNumberOfCalls(suite.T(), "FetchRows", 1)

	// Invalidation forces a refetch.
	suite.service.InvalidateCache(suite.job.URL, suite.job.Language)
	suite.expectLock()
	suite.mockFetcher.On("FetchRows", mock.Anything, suite.job.URL, "en").Return(feedRows(), nil).Once()
	suite.mockWriter.On("SaveCandidateRows", mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Once()

	_, err = suite.service.RunStatFeedIngestion(context.Background(), suite.job)
	assert.NoError(suite.T(), err)
	suite.mockFetcher.AssertNumberOfCalls(suite.T(), "FetchRows", 2)
}

func TestIngestionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IngestionServiceTestSuite))
}
