// Package memory is an in-process Store with the same unique and
// foreign-key behaviour as the Postgres schema. It backs tests and local
// runs without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	nextID    int64
	events    map[int64]*domain.Event
	tags      map[string]domain.Tag
	eventTags map[int64]map[int64]struct{}
	users     map[int64]*domain.User
	orgs      map[int64]*domain.Organization
	likes     map[int64]map[int64]struct{}

	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		events:    make(map[int64]*domain.Event),
		tags:      make(map[string]domain.Tag),
		eventTags: make(map[int64]map[int64]struct{}),
		users:     make(map[int64]*domain.User),
		orgs:      make(map[int64]*domain.Organization),
		likes:     make(map[int64]map[int64]struct{}),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for CreatedAt and default listings.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Ready(context.Context) error { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// checkEvent enforces the constraints the schema declares on events.
// Caller holds s.mu.
func (s *Store) checkEvent(ev *domain.Event) error {
	if ev.LiveWhaleID != nil {
		for id, other := range s.events {
			if id != ev.ID && other.LiveWhaleID != nil && *other.LiveWhaleID == *ev.LiveWhaleID {
				return errors.Wrapf(storage.ErrConflict, "live_whale_id %d already stored", *ev.LiveWhaleID)
			}
		}
	}
	if ev.NextRepeatID != nil {
		if *ev.NextRepeatID == ev.ID {
			return errors.Wrap(storage.ErrConflict, "event cannot repeat into itself")
		}
		if _, ok := s.events[*ev.NextRepeatID]; !ok {
			return errors.Wrapf(storage.ErrConflict, "next_repeat %d does not exist", *ev.NextRepeatID)
		}
		for id, other := range s.events {
			if id != ev.ID && other.NextRepeatID != nil && *other.NextRepeatID == *ev.NextRepeatID {
				return errors.Wrapf(storage.ErrConflict, "next_repeat %d already linked", *ev.NextRepeatID)
			}
		}
	}
	if ev.HostID != nil {
		if _, ok := s.users[*ev.HostID]; !ok {
			return errors.Wrapf(storage.ErrConflict, "host %d does not exist", *ev.HostID)
		}
	}
	if ev.ParentOrgID != nil {
		if _, ok := s.orgs[*ev.ParentOrgID]; !ok {
			return errors.Wrapf(storage.ErrConflict, "organization %d does not exist", *ev.ParentOrgID)
		}
	}
	return nil
}

func (s *Store) CreateEvent(_ context.Context, ev *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = 0
	if err := s.checkEvent(ev); err != nil {
		return err
	}
	ev.ID = s.id()
	ev.CreatedAt = s.now().UTC()
	c := ev.Clone()
	c.Tags = nil
	s.events[ev.ID] = c
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, ev *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.events[ev.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := s.checkEvent(ev); err != nil {
		return err
	}
	c := ev.Clone()
	c.Tags = nil
	c.CreatedAt = old.CreatedAt
	s.events[ev.ID] = c
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.events, id)
	delete(s.eventTags, id)
	for _, ev := range s.events {
		if ev.NextRepeatID != nil && *ev.NextRepeatID == id {
			ev.NextRepeatID = nil
		}
	}
	for _, liked := range s.likes {
		delete(liked, id)
	}
	return nil
}

func (s *Store) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.load(ev), nil
}

// load copies a stored event and fills its tag names. Caller holds s.mu.
func (s *Store) load(ev *domain.Event) *domain.Event {
	c := ev.Clone()
	c.Tags = s.tagNames(ev.ID)
	return c
}

func (s *Store) EventByLiveWhaleID(_ context.Context, liveWhaleID int64) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events {
		if ev.LiveWhaleID != nil && *ev.LiveWhaleID == liveWhaleID {
			return s.load(ev), nil
		}
	}
	return nil, storage.ErrNotFound
}

func sameSlot(ev *domain.Event, title string, start, end time.Time) bool {
	return ev.Title == title && ev.Start.Equal(start) && ev.End.Equal(end)
}

func (s *Store) DuplicateEvents(_ context.Context, hostID int64, title string, start, end time.Time) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Event
	for _, ev := range s.events {
		if ev.HostedBy(hostID) && sameSlot(ev, title, start, end) {
			out = append(out, s.load(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) NewerDuplicateExists(_ context.Context, afterID int64, title string, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, ev := range s.events {
		if id > afterID && sameSlot(ev, title, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Predecessor(_ context.Context, id int64) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events {
		if ev.NextRepeatID != nil && *ev.NextRepeatID == id {
			return s.load(ev), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListEvents(_ context.Context, f storage.EventFilter) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f = f.Normalize(s.now())
	var out []*domain.Event
	for _, ev := range s.events {
		if s.matches(ev, f) {
			out = append(out, s.load(ev))
		}
	}
	sortByStart(out)
	return page(out, f.Offset, f.Limit), nil
}

func (s *Store) matches(ev *domain.Event, f storage.EventFilter) bool {
	if ev.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !ev.Start.Before(f.To) {
		return false
	}
	if f.StudentsOnly != nil && ev.StudentsOnly != *f.StudentsOnly {
		return false
	}
	if f.HostID != nil && !ev.HostedBy(*f.HostID) {
		return false
	}
	if f.OrgID != nil && (ev.ParentOrgID == nil || *ev.ParentOrgID != *f.OrgID) {
		return false
	}
	if len(f.Tags) > 0 {
		have := s.tagNames(ev.ID)
		found := false
		for _, want := range f.Tags {
			for _, h := range have {
				if strings.EqualFold(h, want) {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortByStart(evs []*domain.Event) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}

func page(evs []*domain.Event, offset, limit int) []*domain.Event {
	if offset >= len(evs) {
		return []*domain.Event{}
	}
	evs = evs[offset:]
	if limit > 0 && len(evs) > limit {
		evs = evs[:limit]
	}
	return evs
}

// Tags

func (s *Store) TagByName(_ context.Context, name string) (domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tags[name]
	if !ok {
		return domain.Tag{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetOrCreateTag(_ context.Context, name string, selectedDefault bool) (domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tags[name]; ok {
		return t, nil
	}
	t := domain.Tag{ID: s.id(), Name: name, SelectedDefault: selectedDefault}
	s.tags[name] = t
	return t, nil
}

func (s *Store) ListTags(context.Context) ([]domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) knownTag(id int64) bool {
	for _, t := range s.tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) SetEventTags(_ context.Context, eventID int64, tagIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return storage.ErrNotFound
	}
	set := make(map[int64]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if !s.knownTag(id) {
			return errors.Wrapf(storage.ErrConflict, "tag %d does not exist", id)
		}
		set[id] = struct{}{}
	}
	s.eventTags[eventID] = set
	return nil
}

func (s *Store) AddEventTags(_ context.Context, eventID int64, tagIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return storage.ErrNotFound
	}
	set := s.eventTags[eventID]
	if set == nil {
		set = make(map[int64]struct{})
		s.eventTags[eventID] = set
	}
	for _, id := range tagIDs {
		if !s.knownTag(id) {
			return errors.Wrapf(storage.ErrConflict, "tag %d does not exist", id)
		}
		set[id] = struct{}{}
	}
	return nil
}

func (s *Store) EventTags(_ context.Context, eventID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[eventID]; !ok {
		return nil, storage.ErrNotFound
	}
	return s.tagNames(eventID), nil
}

func (s *Store) tagNames(eventID int64) []string {
	names := []string{}
	set := s.eventTags[eventID]
	for _, t := range s.tags {
		if _, ok := set[t.ID]; ok {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Users

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.users {
		if strings.EqualFold(other.Email, u.Email) {
			return errors.Wrapf(storage.ErrConflict, "email %s already registered", u.Email)
		}
	}
	u.ID = s.id()
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) CreateOrganization(_ context.Context, o *domain.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range o.LeaderIDs {
		if _, ok := s.users[id]; !ok {
			return errors.Wrapf(storage.ErrConflict, "leader %d does not exist", id)
		}
	}
	o.ID = s.id()
	c := *o
	c.LeaderIDs = append([]int64(nil), o.LeaderIDs...)
	s.orgs[o.ID] = &c
	return nil
}

// Favorites

func (s *Store) Like(_ context.Context, userID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return errors.Wrapf(storage.ErrNotFound, "user %d", userID)
	}
	if _, ok := s.events[eventID]; !ok {
		return errors.Wrapf(storage.ErrNotFound, "event %d", eventID)
	}
	set := s.likes[userID]
	if set == nil {
		set = make(map[int64]struct{})
		s.likes[userID] = set
	}
	set[eventID] = struct{}{}
	return nil
}

func (s *Store) Unlike(_ context.Context, userID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.likes[userID], eventID)
	return nil
}

func (s *Store) IsLiked(_ context.Context, userID, eventID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.likes[userID][eventID]
	return ok, nil
}

func (s *Store) LikedEvents(_ context.Context, userID int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.Event{}
	for id := range s.likes[userID] {
		if ev, ok := s.events[id]; ok {
			out = append(out, s.load(ev))
		}
	}
	sortByStart(out)
	return out, nil
}
