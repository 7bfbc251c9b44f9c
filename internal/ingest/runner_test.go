package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/feed"
	"example.com/campusevents/internal/location"
	"example.com/campusevents/internal/reconcile"
	"example.com/campusevents/internal/storage/memory"
	"example.com/campusevents/internal/tags"
)

type stubFetcher struct {
	mu      sync.Mutex
	records []json.RawMessage
	err     error
	calls   int
}

func (f *stubFetcher) Fetch(context.Context, int) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.records, f.err
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	names []string
	err   error
}

func (p *recordingPublisher) Publish(name string, _ interface{}) error {
	p.names = append(p.names, name)
	return p.err
}

func raws(t *testing.T, recs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(recs))
	for i, r := range recs {
		require.True(t, json.Valid([]byte(r)), r)
		out[i] = json.RawMessage(r)
	}
	return out
}

func newRunner(t *testing.T, f Fetcher, pub Publisher) (*Runner, *memory.Store, int64) {
	t.Helper()
	s := memory.New()
	mod := &domain.User{Email: "moderator@grinnell.edu"}
	require.NoError(t, s.CreateUser(context.Background(), mod))
	engine := reconcile.NewEngine(s, tags.NewApplier(s, tags.NewNormalizer("")), mod.ID)
	parser := feed.NewParser(location.NewResolver(nil), feed.EndPlusHour)
	return NewRunner(f, parser, engine, pub, zap.NewNop(), 0), s, mod.ID
}

var snapshot = []string{
	`{"id": 501, "title": "Convocation", "location_title": "HSSC", "date_utc": "2024-09-03 17:00:00", "date2_utc": null}`,
	`{"id": 502, "title": "Fall Break", "location": null, "date_utc": "2024-10-14 05:00:00"}`,
	`{"id": 503, "title": "Broken", "location": "JRC", "date_utc": "not a date"}`,
	`{"id": 504, "title": "Game", "location": "Track", "date_utc": "2024-09-07 18:00:00", "tags": ["Varsity Sports"]}`,
}

func TestRunTalliesOutcomes(t *testing.T) {
	pub := &recordingPublisher{}
	r, _, _ := newRunner(t, &stubFetcher{records: raws(t, snapshot...)}, pub)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Fetched: 4, Inserted: 2, NotEvents: 1, Errored: 1}, sum)
	assert.Equal(t, []string{"event.inserted", "event.inserted"}, pub.names)
}

func TestRunIsIdempotent(t *testing.T) {
	f := &stubFetcher{records: raws(t, snapshot...)}
	r, s, _ := newRunner(t, f, nil)
	ctx := context.Background()

	_, err := r.Run(ctx)
	require.NoError(t, err)
	first, err := s.EventByLiveWhaleID(ctx, 504)
	require.NoError(t, err)

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Updated)
	assert.Zero(t, sum.Inserted)

	second, err := s.EventByLiveWhaleID(ctx, 504)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Sports"}, second.Tags)
}

func TestRunCountsClaimedAndAmbiguous(t *testing.T) {
	f := &stubFetcher{}
	r, s, mod := newRunner(t, f, nil)
	ctx := context.Background()

	owner := &domain.User{Email: "owner@grinnell.edu"}
	require.NoError(t, s.CreateUser(ctx, owner))
	start := time.Date(2024, 9, 3, 17, 0, 0, 0, time.UTC)
	seed := func(host int64, id int64, title string) {
		ev := &domain.Event{LiveWhaleID: domain.Int64(id), Title: title, Location: "Forum",
			Start: start, End: start.Add(time.Hour), HostID: domain.Int64(host)}
		require.NoError(t, s.CreateEvent(ctx, ev))
	}
	seed(owner.ID, 700, "Claimed Talk")
	seed(mod, 701, "Twin")
	seed(mod, 702, "Twin")

	f.records = raws(t,
		`{"id": 700, "title": "Claimed Talk", "location": "Forum", "date_utc": "2024-09-03 17:00:00"}`,
		`{"id": 703, "title": "Twin", "location": "Forum", "date_utc": "2024-09-03 17:00:00"}`,
	)
	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Fetched: 2, Claimed: 1, Ambiguous: 1}, sum)
}

func TestRunFetchFailureAborts(t *testing.T) {
	r, _, _ := newRunner(t, &stubFetcher{err: errors.New("connection refused")}, nil)
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _, _ := newRunner(t, &stubFetcher{records: raws(t, snapshot...)}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, sum.Fetched)
	assert.Zero(t, sum.Inserted)
}

func TestRunPublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("channel closed")}
	r, _, _ := newRunner(t, &stubFetcher{records: raws(t, snapshot[0])}, pub)
	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Len(t, pub.names, 1)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	r, _, _ := newRunner(t, &stubFetcher{}, nil)
	err := Schedule(context.Background(), "every tuesday", r, zap.NewNop())
	assert.Error(t, err)
}

func TestScheduleRunsUntilCancelled(t *testing.T) {
	f := &stubFetcher{err: errors.New("feed down")}
	r, _, _ := newRunner(t, f, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, Schedule(ctx, "@every 1s", r, zap.NewNop()))
	assert.GreaterOrEqual(t, f.Calls(), 1)
}

// slowFetcher blocks until its context ends, then takes a moment to wind
// down, like a run stopping between records.
type slowFetcher struct {
	once     sync.Once
	started  chan struct{}
	finished atomic.Bool
}

func (f *slowFetcher) Fetch(ctx context.Context, _ int) ([]json.RawMessage, error) {
	f.once.Do(func() { close(f.started) })
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
	f.finished.Store(true)
	return nil, ctx.Err()
}

func TestScheduleWaitsForRunInProgress(t *testing.T) {
	f := &slowFetcher{started: make(chan struct{})}
	r, _, _ := newRunner(t, f, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Schedule(ctx, "@every 1s", r, zap.NewNop()) }()

	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run never started")
	}
	cancel()
	require.NoError(t, <-done)
	assert.True(t, f.finished.Load(), "Schedule returned before the run ended")
}
