package domain

import "time"

// Event is the central stored entity. Optional columns are pointers so
// that "unset" survives a round trip through the store.
type Event struct {
	ID           int64     `json:"id"`
	LiveWhaleID  *int64    `json:"liveWhaleID,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	Lat          *float64  `json:"lat,omitempty"`
	Long         *float64  `json:"long,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Tags         []string  `json:"tags"`
	StudentsOnly bool      `json:"studentsOnly"`
	HostID       *int64    `json:"host,omitempty"`
	ParentOrgID  *int64    `json:"parentOrg,omitempty"`
	NextRepeatID *int64    `json:"nextRepeat,omitempty"`
	ContactEmail *string   `json:"contactEmail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HostedBy reports whether the event's host is the given user.
func (e *Event) HostedBy(userID int64) bool {
	return e.HostID != nil && *e.HostID == userID
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	c := *e
	c.LiveWhaleID = cloneInt(e.LiveWhaleID)
	c.HostID = cloneInt(e.HostID)
	c.ParentOrgID = cloneInt(e.ParentOrgID)
	c.NextRepeatID = cloneInt(e.NextRepeatID)
	c.Lat = cloneFloat(e.Lat)
	c.Long = cloneFloat(e.Long)
	if e.ContactEmail != nil {
		s := *e.ContactEmail
		c.ContactEmail = &s
	}
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	return &c
}

// Tag is a normalized classification label.
type Tag struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	SelectedDefault bool   `json:"selectedDefault"`
}

// UserType classifies accounts.
type UserType string

const (
	UserStudent   UserType = "STU"
	UserFaculty   UserType = "FAL"
	UserCommunity UserType = "COM"
)

type User struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Type      UserType `json:"type"`
}

type Organization struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	LeaderIDs []int64 `json:"leaders"`
}

// Field limits, kept in sync with the migration.
const (
	MaxTitleLen    = 256
	MaxLocationLen = 256
	MaxTagLen      = 64
	MaxTagsCount   = 50
)

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
