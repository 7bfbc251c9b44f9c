// Package feed fetches the LiveWhale events JSON and turns its records into
// reconciliation candidates.
package feed

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
)

// ErrNotAnEvent marks records with no location at all, such as all-day
// holiday markers. They are skipped rather than counted as failures.
var ErrNotAnEvent = errors.New("record has no location")

// TimeLayout is the feed's timestamp format; values are UTC.
const TimeLayout = "2006-01-02 15:04:05"

// EndPolicy picks the end time for records without one.
type EndPolicy int

const (
	// EndPlusHour ends the event one hour after it starts.
	EndPlusHour EndPolicy = iota
	// EndOfDay ends the event at 23:59 on its start's UTC day.
	EndOfDay
)

func (p EndPolicy) String() string {
	if p == EndOfDay {
		return "day"
	}
	return "hour"
}

// ParseEndPolicy accepts "hour" or "day"; empty means hour.
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hour":
		return EndPlusHour, nil
	case "day":
		return EndOfDay, nil
	default:
		return EndPlusHour, errors.Errorf("unknown end policy %q", s)
	}
}

func (p EndPolicy) endFor(start time.Time) time.Time {
	if p == EndOfDay {
		y, m, d := start.Date()
		return time.Date(y, m, d, 23, 59, 0, 0, time.UTC)
	}
	return start.Add(time.Hour)
}

// Resolver fills coordinates the feed does not provide.
type Resolver interface {
	Resolve(text string) (lat, long float64, ok bool)
}

type Parser struct {
	Resolver  Resolver
	EndPolicy EndPolicy
}

func NewParser(r Resolver, p EndPolicy) *Parser {
	return &Parser{Resolver: r, EndPolicy: p}
}

var (
	emailPattern   = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	mentorMarkers  = []string{"mentor session", "scl "}
	studentActRepl = strings.NewReplacer("Student Activity", "Student Activities")
)

const (
	tagStudentActivities = "Student Activities"
	tagTabling           = "Tabling"
	tagMentorSession     = "Mentor Session"
)

// Parse decodes and normalizes one raw record.
func (p *Parser) Parse(raw json.RawMessage) (domain.Candidate, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Candidate{}, errors.Wrap(err, "decode record")
	}
	return p.ParseRecord(rec)
}

// ParseRecord normalizes an already decoded record.
func (p *Parser) ParseRecord(rec Record) (domain.Candidate, error) {
	var c domain.Candidate

	if !rec.ID.Set {
		return c, errors.New("record has no id")
	}
	c.ExternalID = rec.ID.Value

	c.Title = strings.ReplaceAll(strings.TrimSpace(rec.Title.Value), "&amp;", "&")
	if c.Title == "" {
		return c, errors.Errorf("record %d: empty title", c.ExternalID)
	}

	start, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(rec.DateUTC.Value), time.UTC)
	if err != nil {
		return c, errors.Wrapf(err, "record %d: date_utc", c.ExternalID)
	}
	c.Start = start
	if end := strings.TrimSpace(rec.Date2UTC.Value); end != "" {
		c.End, err = time.ParseInLocation(TimeLayout, end, time.UTC)
		if err != nil {
			return c, errors.Wrapf(err, "record %d: date2_utc", c.ExternalID)
		}
	} else {
		c.End = p.EndPolicy.endFor(start)
	}
	if !c.Start.Before(c.End) {
		return c, errors.Errorf("record %d: end %s is not after start %s",
			c.ExternalID, c.End.Format(TimeLayout), c.Start.Format(TimeLayout))
	}

	loc := rec.LocationTitle.Value
	if strings.TrimSpace(loc) == "" {
		loc = rec.Location.Value
	}
	if strings.TrimSpace(loc) == "" {
		return c, ErrNotAnEvent
	}
	loc = strings.ReplaceAll(loc, "&#160;", "")
	c.Location = strings.ReplaceAll(loc, "&amp;", "&")

	if rec.Latitude.Set && rec.Longitude.Set && (rec.Latitude.Value != 0 || rec.Longitude.Value != 0) {
		c.Lat, c.Long = domain.Float64(rec.Latitude.Value), domain.Float64(rec.Longitude.Value)
	} else if p.Resolver != nil {
		if lat, long, ok := p.Resolver.Resolve(c.Location); ok {
			c.Lat, c.Long = domain.Float64(lat), domain.Float64(long)
		}
	}

	c.Description = strings.TrimSpace(rec.Description.Value)
	c.Tags = recordTags(rec, c.Title, c.Description)

	email, err := contactEmail(rec)
	if err != nil {
		return c, errors.Wrapf(err, "record %d", c.ExternalID)
	}
	c.ContactEmail = email
	return c, nil
}

func recordTags(rec Record, title, description string) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(t string) {
		if t = strings.TrimSpace(t); t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	for _, t := range rec.Tags {
		add(studentActRepl.Replace(t))
	}
	for _, t := range rec.EventTypes {
		add(t)
	}

	lt, ld := strings.ToLower(title), strings.ToLower(description)
	if strings.Contains(lt, "tabling") || strings.Contains(ld, "tabling") {
		add(tagTabling)
	}
	for _, m := range mentorMarkers {
		if strings.Contains(lt, m) || strings.Contains(ld, m) {
			add(tagMentorSession)
			tags = remove(tags, tagStudentActivities)
			break
		}
	}
	return tags
}

func remove(tags []string, name string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t != name {
			out = append(out, t)
		}
	}
	return out
}

// contactEmail prefers an address found in contact_info, then the
// registration owner. A non-empty contact_info without an address is an
// error for the record.
func contactEmail(rec Record) (*string, error) {
	if rec.HasContactInfo && strings.TrimSpace(rec.ContactInfo.Value) != "" {
		m := emailPattern.FindString(rec.ContactInfo.Value)
		if m == "" {
			return nil, errors.Errorf("no email address in contact_info %q", rec.ContactInfo.Value)
		}
		return domain.String(strings.ToLower(m)), nil
	}
	if rec.HasRegistrationOwner {
		if v := rec.RegistrationOwnerEmail.Value; strings.TrimSpace(v) != "" {
			return domain.String(v), nil
		}
	}
	return nil, nil
}
