package tags

import (
	"context"

	"github.com/pkg/errors"

	"example.com/campusevents/internal/storage"
)

// Applier resolves raw tag names to stored tags and attaches them to events.
type Applier struct {
	Store      storage.TagStore
	Normalizer Normalizer
}

func NewApplier(store storage.TagStore, n Normalizer) *Applier {
	return &Applier{Store: store, Normalizer: n}
}

// Set replaces the event's tags. With createMissing, unknown names are
// created; otherwise they are skipped. Returns the event's tag names.
func (a *Applier) Set(ctx context.Context, eventID int64, raw []string, createMissing bool) ([]string, error) {
	ids, err := a.resolve(ctx, raw, createMissing)
	if err != nil {
		return nil, err
	}
	if err := a.Store.SetEventTags(ctx, eventID, ids); err != nil {
		return nil, errors.Wrapf(err, "set tags on event %d", eventID)
	}
	return a.Store.EventTags(ctx, eventID)
}

// Add attaches the tags on top of the event's existing set.
func (a *Applier) Add(ctx context.Context, eventID int64, raw []string, createMissing bool) ([]string, error) {
	ids, err := a.resolve(ctx, raw, createMissing)
	if err != nil {
		return nil, err
	}
	if err := a.Store.AddEventTags(ctx, eventID, ids); err != nil {
		return nil, errors.Wrapf(err, "add tags on event %d", eventID)
	}
	return a.Store.EventTags(ctx, eventID)
}

// Create stores a single normalized tag.
func (a *Applier) Create(ctx context.Context, raw string, selectedDefault bool) (string, error) {
	name := a.Normalizer.Normalize(raw)
	if name == "" {
		return "", errors.New("tag name is empty")
	}
	t, err := a.Store.GetOrCreateTag(ctx, name, selectedDefault)
	if err != nil {
		return "", errors.Wrapf(err, "create tag %q", name)
	}
	return t.Name, nil
}

func (a *Applier) resolve(ctx context.Context, raw []string, createMissing bool) ([]int64, error) {
	seen := make(map[string]struct{}, len(raw))
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		name := a.Normalizer.Normalize(r)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if createMissing {
			t, err := a.Store.GetOrCreateTag(ctx, name, false)
			if err != nil {
				return nil, errors.Wrapf(err, "get or create tag %q", name)
			}
			ids = append(ids, t.ID)
			continue
		}
		t, err := a.Store.TagByName(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "lookup tag %q", name)
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}
