package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Record is one object of the feed's "data" array. The upstream feed is
// loose about types, so coordinates and ids accept numbers or numeric
// strings and most text fields may be null.
type Record struct {
	ID            flexInt    `json:"id"`
	Title         flexString `json:"title"`
	DateUTC       flexString `json:"date_utc"`
	Date2UTC      flexString `json:"date2_utc"`
	LocationTitle flexString `json:"location_title"`
	Location      flexString `json:"location"`
	Latitude      flexFloat  `json:"location_latitude"`
	Longitude     flexFloat  `json:"location_longitude"`
	Description   flexString `json:"description"`
	Tags          []string   `json:"tags"`
	EventTypes    []string   `json:"event_types"`

	ContactInfo            flexString `json:"contact_info"`
	RegistrationOwnerEmail flexString `json:"registration_owner_email"`

	// Key presence, independent of value.
	HasContactInfo       bool `json:"-"`
	HasRegistrationOwner bool `json:"-"`
}

func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	_, p.HasContactInfo = keys["contact_info"]
	_, p.HasRegistrationOwner = keys["registration_owner_email"]
	*r = Record(p)
	return nil
}

var null = []byte("null")

type flexString struct {
	Value string
	Set   bool
}

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		*s = flexString{}
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err == nil {
		*s = flexString{Value: v, Set: true}
		return nil
	}
	// false is used for "absent" in a few feed fields
	var f bool
	if err := json.Unmarshal(b, &f); err == nil && !f {
		*s = flexString{}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Errorf("expected string, got %s", string(b))
	}
	*s = flexString{Value: n.String(), Set: true}
	return nil
}

type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		*f = flexFloat{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			*f = flexFloat{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.Errorf("invalid coordinate %q", s)
		}
		*f = flexFloat{Value: v, Set: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.Errorf("expected number, got %s", string(b))
	}
	*f = flexFloat{Value: v, Set: true}
	return nil
}

type flexInt struct {
	Value int64
	Set   bool
}

func (i *flexInt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		*i = flexInt{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return errors.Errorf("invalid id %q", s)
		}
		*i = flexInt{Value: v, Set: true}
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.Errorf("expected integer, got %s", string(b))
	}
	*i = flexInt{Value: v, Set: true}
	return nil
}
