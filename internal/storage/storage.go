// Package storage defines the persistence contracts shared by the Postgres
// and in-memory stores.
package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique or foreign-key constraint rejects a write.
	ErrConflict = errors.New("constraint conflict")
)

// EventFilter narrows ListEvents. Zero values mean "no constraint";
// a zero From means "from now".
type EventFilter struct {
	From         time.Time
	To           time.Time
	Tags         []string
	StudentsOnly *bool
	HostID       *int64
	OrgID        *int64
	Limit        int
	Offset       int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Normalize fills defaults and clamps the page size.
func (f EventFilter) Normalize(now time.Time) EventFilter {
	if f.From.IsZero() {
		f.From = now
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// EventStore persists events and their repeat links. Tags on the passed
// events are ignored on write; TagStore owns the association.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *domain.Event) error
	UpdateEvent(ctx context.Context, ev *domain.Event) error
	DeleteEvent(ctx context.Context, id int64) error
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	EventByLiveWhaleID(ctx context.Context, liveWhaleID int64) (*domain.Event, error)
	// DuplicateEvents returns events hosted by hostID with the same title,
	// start and end, ordered by id.
	DuplicateEvents(ctx context.Context, hostID int64, title string, start, end time.Time) ([]*domain.Event, error)
	// NewerDuplicateExists reports whether an event with a greater id than
	// afterID shares the title, start and end.
	NewerDuplicateExists(ctx context.Context, afterID int64, title string, start, end time.Time) (bool, error)
	// Predecessor returns the event whose next repeat is id.
	Predecessor(ctx context.Context, id int64) (*domain.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]*domain.Event, error)
}

// TagStore persists tags and the event/tag association.
type TagStore interface {
	TagByName(ctx context.Context, name string) (domain.Tag, error)
	GetOrCreateTag(ctx context.Context, name string, selectedDefault bool) (domain.Tag, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
	SetEventTags(ctx context.Context, eventID int64, tagIDs []int64) error
	AddEventTags(ctx context.Context, eventID int64, tagIDs []int64) error
	EventTags(ctx context.Context, eventID int64) ([]string, error)
}

// UserStore reads accounts and organizations.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateOrganization(ctx context.Context, o *domain.Organization) error
}

// FavoriteStore persists per-user liked events.
type FavoriteStore interface {
	Like(ctx context.Context, userID, eventID int64) error
	Unlike(ctx context.Context, userID, eventID int64) error
	IsLiked(ctx context.Context, userID, eventID int64) (bool, error)
	LikedEvents(ctx context.Context, userID int64) ([]*domain.Event, error)
}

// Store is the full persistence surface.
type Store interface {
	EventStore
	TagStore
	UserStore
	FavoriteStore
	Ready(ctx context.Context) error
}

// Claim is a pending ownership request awaiting email confirmation.
type Claim struct {
	EventID int64 `json:"eventId"`
	UserID  int64 `json:"userId"`
}

// ClaimStore keeps claim tokens until they are confirmed or expire.
type ClaimStore interface {
	PutClaim(ctx context.Context, token string, c Claim, ttl time.Duration) error
	GetClaim(ctx context.Context, token string) (Claim, error)
	DeleteClaim(ctx context.Context, token string) error
}
