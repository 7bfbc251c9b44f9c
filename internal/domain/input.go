package domain

import (
	"strings"
	"time"
)

// RepeatInput describes how an event repeats. Either an offset
// (days and/or months) or an RFC 5545 rule may be given.
type RepeatInput struct {
	Days   int    `json:"days" validate:"gte=0,lte=366"`
	Months int    `json:"months" validate:"gte=0,lte=24"`
	RRule  string `json:"rrule" validate:"max=512"`
	Until  string `json:"until" validate:"required"`
}

// CreateEventInput is the request body for creating a single or repeating
// event. The host is the requesting user.
type CreateEventInput struct {
	Title        string       `json:"title" validate:"required,max=256"`
	Description  string       `json:"description"`
	Location     string       `json:"location" validate:"max=256"`
	Start        string       `json:"start" validate:"required"`
	End          string       `json:"end" validate:"required"`
	Lat          *float64     `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Long         *float64     `json:"long" validate:"omitempty,gte=-180,lte=180"`
	Tags         []string     `json:"tags" validate:"max=50,dive,required,max=64"`
	StudentsOnly bool         `json:"studentsOnly"`
	ParentOrg    *int64       `json:"parentOrg"`
	ContactEmail string       `json:"contactEmail" validate:"omitempty,email"`
	Repeat       *RepeatInput `json:"repeat"`
}

// Repeat is a validated repetition request.
type Repeat struct {
	Days   int
	Months int
	RRule  string
	Until  time.Time
}

// EventDraft is the typed result of validating a CreateEventInput.
type EventDraft struct {
	Event  Event
	Tags   []string
	Repeat *Repeat
}

// Validate coerces the input into a draft owned by hostID, or returns
// every failing field.
func (in *CreateEventInput) Validate(hostID int64) (*EventDraft, error) {
	errs := structErrors(in)

	start, ferr := parseTime("start", in.Start)
	if ferr != nil && in.Start != "" {
		errs = append(errs, *ferr)
	}
	end, ferr := parseTime("end", in.End)
	if ferr != nil && in.End != "" {
		errs = append(errs, *ferr)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		errs = append(errs, FieldError{"end", "must be after start"})
	}
	if (in.Lat == nil) != (in.Long == nil) {
		errs = append(errs, FieldError{"lat", "lat and long must be given together"})
	}

	var repeat *Repeat
	if in.Repeat != nil {
		repeat = &Repeat{Days: in.Repeat.Days, Months: in.Repeat.Months, RRule: strings.TrimSpace(in.Repeat.RRule)}
		if repeat.RRule == "" && repeat.Days == 0 && repeat.Months == 0 {
			errs = append(errs, FieldError{"repeat", "days, months or rrule is required"})
		}
		if repeat.RRule != "" && (repeat.Days != 0 || repeat.Months != 0) {
			errs = append(errs, FieldError{"repeat", "rrule cannot be combined with days or months"})
		}
		if in.Repeat.Until != "" {
			until, ferr := parseTime("repeat.until", in.Repeat.Until)
			if ferr != nil {
				errs = append(errs, *ferr)
			} else if !start.IsZero() && until.Before(start) {
				errs = append(errs, FieldError{"repeat.until", "must not be before start"})
			}
			repeat.Until = until
		}
	}
	if len(errs) > 0 {
		return nil, Invalid(errs)
	}

	ev := Event{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Location:     strings.TrimSpace(in.Location),
		Lat:          in.Lat,
		Long:         in.Long,
		Start:        start,
		End:          end,
		StudentsOnly: in.StudentsOnly,
		HostID:       Int64(hostID),
		ParentOrgID:  in.ParentOrg,
	}
	if in.ContactEmail != "" {
		ev.ContactEmail = String(strings.ToLower(in.ContactEmail))
	}
	return &EventDraft{Event: ev, Tags: in.Tags, Repeat: repeat}, nil
}

// EditEventInput is a partial update applied to an event and every later
// event in its repeat chain. Absent fields are left alone.
type EditEventInput struct {
	Title        *string   `json:"title" validate:"omitempty,max=256"`
	Description  *string   `json:"description"`
	Location     *string   `json:"location" validate:"omitempty,max=256"`
	Start        *string   `json:"start"`
	End          *string   `json:"end"`
	Lat          *float64  `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Long         *float64  `json:"long" validate:"omitempty,gte=-180,lte=180"`
	Tags         *[]string `json:"tags" validate:"omitempty,max=50,dive,required,max=64"`
	StudentsOnly *bool     `json:"studentsOnly"`
	ParentOrg    *int64    `json:"parentOrg"`
	RepeatUntil  *string   `json:"repeatUntil"`
}

// EventUpdate is a validated EditEventInput.
type EventUpdate struct {
	Title        *string
	Description  *string
	Location     *string
	Start        *time.Time
	End          *time.Time
	Lat          *float64
	Long         *float64
	Tags         *[]string
	StudentsOnly *bool
	ParentOrg    *int64
}

// Validate coerces the edit against the node being edited so that the
// resulting start/end pair is checked before anything is written.
func (in *EditEventInput) Validate(current *Event) (*EventUpdate, *time.Time, error) {
	errs := structErrors(in)
	u := &EventUpdate{
		Title:        in.Title,
		Description:  in.Description,
		Location:     in.Location,
		Lat:          in.Lat,
		Long:         in.Long,
		Tags:         in.Tags,
		StudentsOnly: in.StudentsOnly,
		ParentOrg:    in.ParentOrg,
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		errs = append(errs, FieldError{"title", "must not be empty"})
	}
	if (in.Lat == nil) != (in.Long == nil) {
		errs = append(errs, FieldError{"lat", "lat and long must be given together"})
	}

	start, end := current.Start, current.End
	if in.Start != nil {
		t, ferr := parseTime("start", *in.Start)
		if ferr != nil {
			errs = append(errs, *ferr)
		} else {
			start = t
			u.Start = &t
		}
	}
	if in.End != nil {
		t, ferr := parseTime("end", *in.End)
		if ferr != nil {
			errs = append(errs, *ferr)
		} else {
			end = t
			u.End = &t
		}
	}
	if !start.Before(end) {
		errs = append(errs, FieldError{"end", "must be after start"})
	}

	var truncate *time.Time
	if in.RepeatUntil != nil {
		t, ferr := parseTime("repeatUntil", *in.RepeatUntil)
		if ferr != nil {
			errs = append(errs, *ferr)
		} else {
			truncate = &t
		}
	}
	if len(errs) > 0 {
		return nil, nil, Invalid(errs)
	}
	return u, truncate, nil
}
