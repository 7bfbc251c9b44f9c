package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/feed"
	"example.com/campusevents/internal/location"
	"example.com/campusevents/internal/storage"
	"example.com/campusevents/internal/storage/memory"
	"example.com/campusevents/internal/tags"
)

var slot = time.Date(2024, 9, 3, 17, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	engine *Engine
	mod    int64
	user   int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	mod := &domain.User{Email: "moderator@grinnell.edu", Type: domain.UserFaculty}
	require.NoError(t, s.CreateUser(ctx, mod))
	u := &domain.User{Email: "student@grinnell.edu", Type: domain.UserStudent}
	require.NoError(t, s.CreateUser(ctx, u))
	return &fixture{
		store:  s,
		engine: NewEngine(s, tags.NewApplier(s, tags.NewNormalizer("")), mod.ID),
		mod:    mod.ID,
		user:   u.ID,
	}
}

func candidate(id int64, title, loc string) domain.Candidate {
	return domain.Candidate{
		ExternalID: id,
		Title:      title,
		Location:   loc,
		Start:      slot,
		End:        slot.Add(time.Hour),
	}
}

func (f *fixture) all(t *testing.T) []*domain.Event {
	t.Helper()
	evs, err := f.store.ListEvents(context.Background(), storage.EventFilter{From: slot.Add(-time.Hour)})
	require.NoError(t, err)
	return evs
}

// seed stores an event for host directly, bypassing the engine.
func (f *fixture) seed(t *testing.T, host int64, liveWhaleID int64, title, loc, desc string) *domain.Event {
	t.Helper()
	ev := &domain.Event{
		LiveWhaleID: domain.Int64(liveWhaleID),
		Title:       title,
		Location:    loc,
		Description: desc,
		Start:       slot,
		End:         slot.Add(time.Hour),
		HostID:      domain.Int64(host),
		Lat:         domain.Float64(1),
		Long:        domain.Float64(2),
	}
	require.NoError(t, f.store.CreateEvent(context.Background(), ev))
	return ev
}

func TestInsertConvocation(t *testing.T) {
	f := setup(t)
	p := feed.NewParser(location.NewResolver(nil), feed.EndPlusHour)
	c, err := p.Parse(json.RawMessage(`{"id": 501, "title": "Convocation", "location_title": "HSSC",
		"date_utc": "2024-09-03 17:00:00", "date2_utc": null, "tags": ["Music &amp; Arts"]}`))
	require.NoError(t, err)

	res, err := f.engine.Reconcile(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, res.Action)

	ev, err := f.store.EventByLiveWhaleID(context.Background(), 501)
	require.NoError(t, err)
	assert.True(t, ev.HostedBy(f.mod))
	assert.False(t, ev.StudentsOnly)
	assert.Equal(t, 41.750897, *ev.Lat)
	assert.Equal(t, -92.72107, *ev.Long)
	assert.Equal(t, slot.Add(time.Hour), ev.End)
	assert.Equal(t, []string{"Music And Arts"}, ev.Tags)
}

func TestReingestionIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := candidate(501, "Convocation", "HSSC")
	c.Tags = []string{"lecture"}
	c.ContactEmail = domain.String("dean@grinnell.edu")

	first, err := f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	require.Equal(t, ActionInserted, first.Action)
	before, err := f.store.GetEvent(ctx, first.Event.ID)
	require.NoError(t, err)

	second, err := f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, second.Action)
	assert.Equal(t, first.Event.ID, second.Event.ID)

	after, err := f.store.GetEvent(ctx, first.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.all(t), 1)
}

func TestClaimedEventUntouched(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	claimed := f.seed(t, f.user, 501, "Poetry Night", "Bucksbaum", "my edits")
	before, err := f.store.GetEvent(ctx, claimed.ID)
	require.NoError(t, err)

	c := candidate(501, "Poetry Night (updated)", "Noyce")
	c.Description = "feed text"
	res, err := f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)
	assert.Equal(t, ReasonClaimed, res.Reason)

	after, err := f.store.GetEvent(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMergeSameLocation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.seed(t, f.mod, 501, "Concert", "Herrick", "old")

	c := candidate(502, "Concert", "Herrick")
	c.Description = "new"
	res, err := f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, res.Action)

	got, err := f.store.GetEvent(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(502), *got.LiveWhaleID)
	assert.Equal(t, "new", got.Description)
	assert.Nil(t, got.Lat)
	assert.Len(t, f.all(t), 1)
}

func TestMergeAlternativeLocation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.seed(t, f.mod, 501, "Picnic", "Central Park", "old")

	c := candidate(502, "Picnic", "Harris Center")
	c.Description = "Picnic moved indoors due to rain if needed"
	for i := 0; i < 2; i++ {
		res, err := f.engine.Reconcile(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, ActionMerged, res.Action)
	}

	got, err := f.store.GetEvent(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Central Park", got.Location)
	assert.Equal(t, int64(501), *got.LiveWhaleID)
	assert.Equal(t, 1.0, *got.Lat)
	assert.Equal(t, "old\n<br><i>Potential Alternative/Rain Location Automatically Detected: Harris Center</i>", got.Description)
}

func TestMergeSupersededLocation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.seed(t, f.mod, 501, "Lecture", "Noyce 1023", "talk")
	// a newer row with the same slot, owned by someone else
	f.seed(t, f.user, 900, "Lecture", "Noyce 1023", "copy")

	c := candidate(502, "Lecture", "JRC 101")
	c.Description = "talk"
	c.Lat, c.Long = domain.Float64(41.7), domain.Float64(-92.7)
	res, err := f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, res.Action)

	got, err := f.store.GetEvent(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "JRC 101", got.Location)
	assert.Equal(t, int64(502), *got.LiveWhaleID)
	assert.Equal(t, 41.7, *got.Lat)
	assert.Equal(t, "talk", got.Description)
}

// reconcileTwice runs c twice and returns the stored row after each run.
func (f *fixture) reconcileTwice(t *testing.T, id int64, c domain.Candidate) (first, second *domain.Event) {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	first, err = f.store.GetEvent(ctx, id)
	require.NoError(t, err)

	_, err = f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	second, err = f.store.GetEvent(ctx, id)
	require.NoError(t, err)
	return first, second
}

func TestMergeThenReingestUnchanged(t *testing.T) {
	cases := []struct {
		name      string
		seedLoc   string
		candLoc   string
		desc      string
		newerCopy bool
	}{
		{name: "superseded location", seedLoc: "Noyce 1023", candLoc: "JRC 101", desc: "talk", newerCopy: true},
		{name: "superseded with rain note", seedLoc: "Noyce 1023", candLoc: "JRC 101", desc: "moved in case of rain today", newerCopy: true},
		{name: "same location with rain note", seedLoc: "Herrick", candLoc: "Herrick", desc: "indoors if rain falls"},
		{name: "alternative location", seedLoc: "Central Park", candLoc: "Harris Center", desc: "picnic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			m := f.seed(t, f.mod, 501, "Lecture", tc.seedLoc, "stored")
			if tc.newerCopy {
				f.seed(t, f.user, 900, "Lecture", tc.seedLoc, "copy")
			}
			c := candidate(502, "Lecture", tc.candLoc)
			c.Description = tc.desc
			c.Tags = []string{"lecture"}

			first, second := f.reconcileTwice(t, m.ID, c)
			assert.Equal(t, first, second)
		})
	}
}

func TestAmbiguousDuplicatesSkipped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.seed(t, f.mod, 501, "Game", "Track", "a")
	b := f.seed(t, f.mod, 502, "Game", "Track", "b")

	res, err := f.engine.Reconcile(ctx, candidate(503, "Game", "Osgood"))
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)
	assert.Equal(t, ReasonAmbiguous, res.Reason)

	for _, ev := range []*domain.Event{a, b} {
		got, err := f.store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Track", got.Location)
	}
	assert.Len(t, f.all(t), 2)
}

func TestUpdateOverwritesModeratorEvent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ev := f.seed(t, f.mod, 501, "Old", "Forum", "desc")

	c := candidate(501, "New Title", "Kington")
	c.Start = slot.Add(24 * time.Hour)
	c.End = c.Start.Add(2 * time.Hour)
	c.Tags = []string{"sport"}
	res, err := f.engine.Reconcile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)

	got, err := f.store.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	assert.Equal(t, "Kington", got.Location)
	assert.Equal(t, "", got.Description)
	assert.Nil(t, got.Lat)
	assert.Equal(t, c.End, got.End)
	assert.Equal(t, []string{"Sports"}, got.Tags)
}
