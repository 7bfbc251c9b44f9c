package recurrence

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/storage"
)

// TagSetter replaces an event's tags.
type TagSetter interface {
	Set(ctx context.Context, eventID int64, raw []string, createMissing bool) ([]string, error)
}

// Resolver maps a location to coordinates.
type Resolver interface {
	Resolve(text string) (lat, long float64, ok bool)
}

// Chain maintains singly linked series of events. Every node is persisted
// as soon as it is created or changed; a failure part way leaves the
// earlier nodes written.
type Chain struct {
	Store          storage.EventStore
	Tags           TagSetter
	Resolver       Resolver
	MaxOccurrences int
}

func NewChain(store storage.EventStore, tags TagSetter, resolver Resolver, maxOccurrences int) *Chain {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Chain{Store: store, Tags: tags, Resolver: resolver, MaxOccurrences: maxOccurrences}
}

// Create stores a single, non-repeating event.
func (c *Chain) Create(ctx context.Context, template domain.Event, tags []string) (*domain.Event, error) {
	return c.CreateRecurring(ctx, template, tags, nil, template.Start)
}

// CreateRecurring stores one event per occurrence of rule between the
// template's start and until, linking each node to the next. A nil rule
// creates only the head. Returns the head.
func (c *Chain) CreateRecurring(ctx context.Context, template domain.Event, tags []string, rule Rule, until time.Time) (*domain.Event, error) {
	if err := domain.Invalid(template.Validate()); err != nil {
		return nil, err
	}
	starts := []time.Time{template.Start}
	if rule != nil {
		var err error
		starts, err = rule.Occurrences(template.Start, until, c.MaxOccurrences)
		if err != nil {
			return nil, err
		}
	}
	if template.Lat == nil && c.Resolver != nil {
		if lat, long, ok := c.Resolver.Resolve(template.Location); ok {
			template.Lat, template.Long = domain.Float64(lat), domain.Float64(long)
		}
	}

	duration := template.End.Sub(template.Start)
	var head, prev *domain.Event
	for i, start := range starts {
		ev := template.Clone()
		ev.ID = 0
		ev.LiveWhaleID = nil
		ev.NextRepeatID = nil
		ev.Start = start
		ev.End = start.Add(duration)

		if err := c.Store.CreateEvent(ctx, ev); err != nil {
			return head, errors.Wrapf(err, "create occurrence %d", i)
		}
		names, err := c.Tags.Set(ctx, ev.ID, tags, false)
		if err != nil {
			return head, errors.Wrapf(err, "tag occurrence %d", i)
		}
		ev.Tags = names

		if prev != nil {
			prev.NextRepeatID = domain.Int64(ev.ID)
			if err := c.Store.UpdateEvent(ctx, prev); err != nil {
				return head, errors.Wrapf(err, "link occurrence %d", i-1)
			}
		}
		if head == nil {
			head = ev
		}
		prev = ev
	}
	return head, nil
}

// EditChain applies u to the event id and every later event in its chain.
// Start and end move by the same deltas as the edited node. With truncate
// set, every walked node starting on or after it is deleted. Returns id.
func (c *Chain) EditChain(ctx context.Context, id int64, u *domain.EventUpdate, truncate *time.Time) (int64, error) {
	node, err := c.Store.GetEvent(ctx, id)
	if err != nil {
		return 0, errors.Wrapf(err, "get event %d", id)
	}
	if u == nil {
		u = &domain.EventUpdate{}
	}

	var startDelta, endDelta time.Duration
	if u.Start != nil {
		startDelta = u.Start.Sub(node.Start)
	}
	if u.End != nil {
		endDelta = u.End.Sub(node.End)
	}
	probe := node.Clone()
	c.apply(probe, u, startDelta, endDelta)
	if err := domain.Invalid(probe.Validate()); err != nil {
		return 0, err
	}

	seen := make(map[int64]struct{})
	cur := node
	for cur != nil {
		if _, ok := seen[cur.ID]; ok {
			return id, errors.Errorf("repeat chain loops back to event %d", cur.ID)
		}
		seen[cur.ID] = struct{}{}
		next := cur.NextRepeatID

		if truncate != nil && !cur.Start.Add(startDelta).Before(*truncate) {
			if err := c.DeleteNode(ctx, cur.ID); err != nil {
				return id, err
			}
		} else if err := c.update(ctx, cur, u, startDelta, endDelta); err != nil {
			return id, err
		}

		if next == nil {
			break
		}
		cur, err = c.Store.GetEvent(ctx, *next)
		if err != nil {
			return id, errors.Wrapf(err, "get event %d", *next)
		}
	}
	return id, nil
}

func (c *Chain) update(ctx context.Context, ev *domain.Event, u *domain.EventUpdate, startDelta, endDelta time.Duration) error {
	c.apply(ev, u, startDelta, endDelta)
	if err := domain.Invalid(ev.Validate()); err != nil {
		return errors.Wrapf(err, "event %d", ev.ID)
	}
	if err := c.Store.UpdateEvent(ctx, ev); err != nil {
		return errors.Wrapf(err, "update event %d", ev.ID)
	}
	if u.Tags != nil {
		names, err := c.Tags.Set(ctx, ev.ID, *u.Tags, false)
		if err != nil {
			return errors.Wrapf(err, "tag event %d", ev.ID)
		}
		ev.Tags = names
	}
	return nil
}

func (c *Chain) apply(ev *domain.Event, u *domain.EventUpdate, startDelta, endDelta time.Duration) {
	ev.Start = ev.Start.Add(startDelta)
	ev.End = ev.End.Add(endDelta)
	if u.Title != nil {
		ev.Title = *u.Title
	}
	if u.Description != nil {
		ev.Description = *u.Description
	}
	if u.StudentsOnly != nil {
		ev.StudentsOnly = *u.StudentsOnly
	}
	if u.ParentOrg != nil {
		ev.ParentOrgID = domain.Int64(*u.ParentOrg)
	}
	if u.Lat != nil && u.Long != nil {
		ev.Lat, ev.Long = domain.Float64(*u.Lat), domain.Float64(*u.Long)
	}
	if u.Location != nil && *u.Location != ev.Location {
		ev.Location = *u.Location
		if u.Lat == nil {
			ev.Lat, ev.Long = nil, nil
			if c.Resolver != nil {
				if lat, long, ok := c.Resolver.Resolve(ev.Location); ok {
					ev.Lat, ev.Long = domain.Float64(lat), domain.Float64(long)
				}
			}
		}
	}
}

// DeleteNode removes an event, linking its predecessor to its successor.
// The node is deleted before the predecessor is saved so the one-to-one
// link never points at two rows.
func (c *Chain) DeleteNode(ctx context.Context, id int64) error {
	node, err := c.Store.GetEvent(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "get event %d", id)
	}
	pred, err := c.Store.Predecessor(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Wrapf(err, "predecessor of %d", id)
	}

	if err := c.Store.DeleteEvent(ctx, id); err != nil {
		return errors.Wrapf(err, "delete event %d", id)
	}
	if pred == nil {
		return nil
	}
	pred.NextRepeatID = node.NextRepeatID
	if err := c.Store.UpdateEvent(ctx, pred); err != nil {
		return errors.Wrapf(err, "relink event %d", pred.ID)
	}
	return nil
}
