// Package reconcile upserts feed candidates into the event store.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/storage"
)

type Action string

const (
	ActionUpdated  Action = "updated"
	ActionMerged   Action = "merged"
	ActionInserted Action = "inserted"
	ActionSkipped  Action = "skipped"
)

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonClaimed   Reason = "claimed"
	ReasonAmbiguous Reason = "ambiguous"
)

// Result is the outcome for one candidate. Event is the stored row after
// the change, or the untouched row for a claimed skip; it is nil for an
// ambiguous skip.
type Result struct {
	Event  *domain.Event
	Action Action
	Reason Reason
}

// TagSetter replaces an event's tags.
type TagSetter interface {
	Set(ctx context.Context, eventID int64, raw []string, createMissing bool) ([]string, error)
}

const annotationFormat = "\n<br><i>Potential Alternative/Rain Location Automatically Detected: %s</i>"

var alternateMarkers = []string{" overflow ", " rain "}

// Engine decides, per candidate, between updating the row with the same
// feed id, merging into a single near-duplicate, or inserting. Only rows
// hosted by the moderator are ever written.
type Engine struct {
	Store     storage.EventStore
	Tags      TagSetter
	Moderator int64
}

func NewEngine(store storage.EventStore, tags TagSetter, moderatorID int64) *Engine {
	return &Engine{Store: store, Tags: tags, Moderator: moderatorID}
}

func (e *Engine) Reconcile(ctx context.Context, c domain.Candidate) (Result, error) {
	existing, err := e.Store.EventByLiveWhaleID(ctx, c.ExternalID)
	switch {
	case err == nil:
		return e.update(ctx, existing, c)
	case !errors.Is(err, storage.ErrNotFound):
		return Result{}, errors.Wrapf(err, "lookup live_whale_id %d", c.ExternalID)
	}

	dups, err := e.Store.DuplicateEvents(ctx, e.Moderator, c.Title, c.Start, c.End)
	if err != nil {
		return Result{}, errors.Wrap(err, "lookup duplicates")
	}
	switch len(dups) {
	case 0:
		return e.insert(ctx, c)
	case 1:
		return e.merge(ctx, dups[0], c)
	default:
		return Result{Action: ActionSkipped, Reason: ReasonAmbiguous}, nil
	}
}

func (e *Engine) update(ctx context.Context, ev *domain.Event, c domain.Candidate) (Result, error) {
	if !ev.HostedBy(e.Moderator) {
		return Result{Event: ev, Action: ActionSkipped, Reason: ReasonClaimed}, nil
	}
	e.overwrite(ev, c)
	ev.Location = c.Location
	ev.Description = c.Description
	ev.Lat, ev.Long = c.Lat, c.Long
	return e.save(ctx, ev, c, ActionUpdated)
}

func (e *Engine) insert(ctx context.Context, c domain.Candidate) (Result, error) {
	ev := &domain.Event{LiveWhaleID: domain.Int64(c.ExternalID)}
	e.overwrite(ev, c)
	ev.Location = c.Location
	ev.Description = c.Description
	ev.Lat, ev.Long = c.Lat, c.Long
	if err := domain.Invalid(ev.Validate()); err != nil {
		return Result{}, errors.Wrapf(err, "live_whale_id %d", c.ExternalID)
	}
	if err := e.Store.CreateEvent(ctx, ev); err != nil {
		return Result{}, errors.Wrapf(err, "insert live_whale_id %d", c.ExternalID)
	}
	return e.tag(ctx, ev, c, ActionInserted)
}

// merge folds a candidate carrying a new feed id into the single stored
// event with the same title and times.
func (e *Engine) merge(ctx context.Context, m *domain.Event, c domain.Candidate) (Result, error) {
	e.overwrite(m, c)
	if c.Location != m.Location {
		newer, err := e.Store.NewerDuplicateExists(ctx, m.ID, c.Title, c.Start, c.End)
		if err != nil {
			return Result{}, errors.Wrap(err, "lookup newer duplicates")
		}
		if !newer {
			// The stored row is the latest: the candidate is an alternative
			// venue for it. Keep location, coordinates and feed id.
			description := c.Description
			if mentionsAlternate(c.Description) {
				description = m.Description
			}
			m.Description = annotate(description, c.Location)
			return e.save(ctx, m, c, ActionMerged)
		}
	}

	// The row takes the candidate's feed id, so later runs reach it through
	// update. It must already hold what update would write.
	m.Location = c.Location
	m.Description = c.Description
	m.Lat, m.Long = c.Lat, c.Long
	m.LiveWhaleID = domain.Int64(c.ExternalID)
	return e.save(ctx, m, c, ActionMerged)
}

func mentionsAlternate(description string) bool {
	lower := strings.ToLower(description)
	for _, marker := range alternateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// overwrite sets the fields every write path takes from the candidate.
func (e *Engine) overwrite(ev *domain.Event, c domain.Candidate) {
	ev.HostID = domain.Int64(e.Moderator)
	ev.Title = c.Title
	ev.Start = c.Start
	ev.End = c.End
	ev.StudentsOnly = false
	ev.ContactEmail = c.ContactEmail
}

func (e *Engine) save(ctx context.Context, ev *domain.Event, c domain.Candidate, action Action) (Result, error) {
	if err := domain.Invalid(ev.Validate()); err != nil {
		return Result{}, errors.Wrapf(err, "event %d", ev.ID)
	}
	if err := e.Store.UpdateEvent(ctx, ev); err != nil {
		return Result{}, errors.Wrapf(err, "update event %d", ev.ID)
	}
	return e.tag(ctx, ev, c, action)
}

func (e *Engine) tag(ctx context.Context, ev *domain.Event, c domain.Candidate, action Action) (Result, error) {
	names, err := e.Tags.Set(ctx, ev.ID, c.Tags, true)
	if err != nil {
		return Result{}, errors.Wrapf(err, "tag event %d", ev.ID)
	}
	ev.Tags = names
	return Result{Event: ev, Action: action}, nil
}

func annotate(description, location string) string {
	note := fmt.Sprintf(annotationFormat, location)
	if strings.Contains(description, note) {
		return description
	}
	return description + note
}
