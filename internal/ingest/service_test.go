package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeeds struct {
	mu       sync.Mutex
	articles map[string][]Article
	errs     map[string]error
	fetched  []string
}

func (f *fakeFeeds) Fetch(_ context.Context, feedURL string) ([]Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, feedURL)
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	return append([]Article(nil), f.articles[feedURL]...), nil
}

type runRow struct {
	feedURL string
	status  string
	result  Result
	message string
}

type fakeRuns struct {
	rows []runRow
}

func (r *fakeRuns) StartRun(_ context.Context, feedURL string, _ time.Time) (int64, error) {
	r.rows = append(r.rows, runRow{feedURL: feedURL, status: "running"})
	return int64(len(r.rows)), nil
}

func (r *fakeRuns) CompleteRun(_ context.Context, runID int64, result Result, _ time.Time) error {
	row := &r.rows[runID-1]
	row.status = "completed"
	row.result = result
	return nil
}

func (r *fakeRuns) FailRun(_ context.Context, runID int64, message string, _ time.Time) error {
	row := &r.rows[runID-1]
	row.status = "failed"
	row.message = message
	return nil
}

const healthFeed = "https://example.com/health.xml"

func newTestService(t *testing.T, feeds *fakeFeeds, runs *fakeRuns) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	coordinator := newPunktCoordinator(t, store, newTopicEmbedder())
	var ledger RunLedger
	if runs != nil {
		ledger = runs
	}
	return NewService(coordinator, feeds, ledger, zerolog.Nop()), store
}

func TestIngestFeedRecordsRun(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{articles: map[string][]Article{
		healthFeed: {
			{PostURL: "https://example.com/1", Content: "AI helps doctors."},
			{PostURL: "https://example.com/2", Content: ""},
		},
	}}
	runs := &fakeRuns{}
	service, store := newTestService(t, feeds, runs)

	result, err := service.IngestFeed(context.Background(), "  "+healthFeed+" ")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 1, result.Skipped)

	require.Len(t, runs.rows, 1)
	assert.Equal(t, "completed", runs.rows[0].status)
	assert.Equal(t, healthFeed, runs.rows[0].feedURL)
	assert.Equal(t, 1, runs.rows[0].result.Ingested)

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, healthFeed, records[0].FeedURL)
}

func TestIngestFeedTwiceSkipsEverything(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{articles: map[string][]Article{
		healthFeed: {{PostURL: "https://example.com/1", Content: "AI helps doctors."}},
	}}
	service, _ := newTestService(t, feeds, nil)

	_, err := service.IngestFeed(context.Background(), healthFeed)
	require.NoError(t, err)

	again, err := service.IngestFeed(context.Background(), healthFeed)
	require.NoError(t, err)
	assert.True(t, again.AllSkipped())
}

func TestIngestFeedFetchFailureMarksRunFailed(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{errs: map[string]error{healthFeed: errors.New("dns failure")}}
	runs := &fakeRuns{}
	service, _ := newTestService(t, feeds, runs)

	_, err := service.IngestFeed(context.Background(), healthFeed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dns failure")

	require.Len(t, runs.rows, 1)
	assert.Equal(t, "failed", runs.rows[0].status)
	assert.True(t, strings.Contains(runs.rows[0].message, "dns failure"))
}

func TestIngestFeedFailureMessageKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	// "fetch feed: " is 12 bytes, so the first "é" straddles the byte limit.
	cause := errors.New(strings.Repeat("x", maxIngestErrorLength-13) + "ééé")
	feeds := &fakeFeeds{errs: map[string]error{healthFeed: cause}}
	runs := &fakeRuns{}
	service, _ := newTestService(t, feeds, runs)

	_, err := service.IngestFeed(context.Background(), healthFeed)
	require.Error(t, err)

	require.Len(t, runs.rows, 1)
	message := runs.rows[0].message
	assert.True(t, utf8.ValidString(message), "stored message must be valid UTF-8")
	assert.Len(t, message, maxIngestErrorLength-1)
	assert.True(t, strings.HasSuffix(message, "x"))
}

func TestTruncateErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncateErrorMessage("short", 10))
	assert.Equal(t, "ab", truncateErrorMessage("abé", 3))
	assert.Equal(t, "abé", truncateErrorMessage("abéd", 4))
}

func TestIngestFeedRequiresURL(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, &fakeFeeds{}, nil)
	_, err := service.IngestFeed(context.Background(), "   ")
	assert.Error(t, err)
}

func TestIngestFeedsContinuesPastFailures(t *testing.T) {
	t.Parallel()

	const sportFeed = "https://example.com/sport.xml"
	const brokenFeed = "https://example.com/broken.xml"
	feeds := &fakeFeeds{
		articles: map[string][]Article{
			healthFeed: {{PostURL: "https://example.com/h1", Content: "AI helps doctors."}},
			sportFeed:  {{PostURL: "https://example.com/s1", Content: "The football team won."}},
		},
		errs: map[string]error{brokenFeed: errors.New("timeout")},
	}
	runs := &fakeRuns{}
	service, store := newTestService(t, feeds, runs)

	results, err := service.IngestFeeds(context.Background(), []string{healthFeed, brokenFeed, sportFeed})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, healthFeed, results[0].FeedURL)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Result.Ingested)

	assert.Equal(t, brokenFeed, results[1].FeedURL)
	assert.Error(t, results[1].Err)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, 1, results[2].Result.Ingested)

	assert.Len(t, store.all(), 2)
	require.Len(t, runs.rows, 3)
	assert.Equal(t, []string{"completed", "failed", "completed"}, []string{runs.rows[0].status, runs.rows[1].status, runs.rows[2].status})
	assert.Len(t, feeds.fetched, 3)
}
