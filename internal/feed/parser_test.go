package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/campusevents/internal/location"
)

func newParser(p EndPolicy) *Parser {
	return NewParser(location.NewResolver(nil), p)
}

func TestParseConvocation(t *testing.T) {
	raw := json.RawMessage(`{"id": 501, "title": " Convocation ", "location_title": "HSSC", "location": null,
		"date_utc": "2024-09-03 17:00:00", "date2_utc": null, "description": null, "tags": null, "event_types": null}`)

	c, err := newParser(EndPlusHour).Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(501), c.ExternalID)
	assert.Equal(t, "Convocation", c.Title)
	assert.Equal(t, "HSSC", c.Location)
	assert.Equal(t, time.Date(2024, 9, 3, 17, 0, 0, 0, time.UTC), c.Start)
	assert.Equal(t, c.Start.Add(time.Hour), c.End)
	require.NotNil(t, c.Lat)
	require.NotNil(t, c.Long)
	assert.Equal(t, 41.750897, *c.Lat)
	assert.Equal(t, -92.72107, *c.Long)
	assert.Equal(t, "", c.Description)
	assert.Empty(t, c.Tags)
	assert.Nil(t, c.ContactEmail)
}

func TestParseEndOfDayPolicy(t *testing.T) {
	raw := json.RawMessage(`{"id": 1, "title": "Open House", "location": "Noyce", "date_utc": "2024-09-03 17:00:00"}`)
	c, err := newParser(EndOfDay).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 3, 23, 59, 0, 0, time.UTC), c.End)
}

func TestParseEndPolicyNames(t *testing.T) {
	p, err := ParseEndPolicy("")
	require.NoError(t, err)
	assert.Equal(t, EndPlusHour, p)
	p, err = ParseEndPolicy("DAY")
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, p)
	_, err = ParseEndPolicy("week")
	assert.Error(t, err)
}

func TestParseSkipsLocationless(t *testing.T) {
	raw := json.RawMessage(`{"id": 2, "title": "Fall Break", "location_title": "", "location": null, "date_utc": "2024-10-14 05:00:00"}`)
	_, err := newParser(EndPlusHour).Parse(raw)
	assert.ErrorIs(t, err, ErrNotAnEvent)
}

func TestParseRecordErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad start", `{"id": 3, "title": "X", "location": "JRC", "date_utc": "09/03/2024"}`},
		{"end before start", `{"id": 3, "title": "X", "location": "JRC", "date_utc": "2024-09-03 17:00:00", "date2_utc": "2024-09-03 16:00:00"}`},
		{"contact without email", `{"id": 3, "title": "X", "location": "JRC", "date_utc": "2024-09-03 17:00:00", "contact_info": "call the front desk"}`},
		{"missing id", `{"title": "X", "location": "JRC", "date_utc": "2024-09-03 17:00:00"}`},
		{"not an object", `[1,2]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newParser(EndPlusHour).Parse(json.RawMessage(tc.raw))
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotAnEvent)
		})
	}
}

func TestParseFields(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "77",
		"title": "Rock &amp; Roll Tabling",
		"location_title": null,
		"location": "Harris&#160;Center &amp; Lawn",
		"location_latitude": "41.5",
		"location_longitude": "-92.5",
		"date_utc": "2024-09-03 17:00:00",
		"date2_utc": "2024-09-03 19:30:00",
		"description": "  <p>Bring snacks</p>  ",
		"tags": ["Student Activity", "Music"],
		"event_types": ["Music", "Performance"],
		"contact_info": "Questions? Email Jane.Doe@Grinnell.EDU or call x1234"
	}`)
	c, err := newParser(EndPlusHour).Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(77), c.ExternalID)
	assert.Equal(t, "Rock & Roll Tabling", c.Title)
	assert.Equal(t, "HarrisCenter & Lawn", c.Location)
	assert.Equal(t, 41.5, *c.Lat)
	assert.Equal(t, -92.5, *c.Long)
	assert.Equal(t, time.Date(2024, 9, 3, 19, 30, 0, 0, time.UTC), c.End)
	assert.Equal(t, "<p>Bring snacks</p>", c.Description)
	assert.ElementsMatch(t, []string{"Student Activities", "Music", "Performance", "Tabling"}, c.Tags)
	require.NotNil(t, c.ContactEmail)
	assert.Equal(t, "jane.doe@grinnell.edu", *c.ContactEmail)
}

func TestParseMentorSession(t *testing.T) {
	raw := json.RawMessage(`{"id": 9, "title": "SCL Chemistry", "location": "Noyce 2022",
		"date_utc": "2024-09-03 17:00:00", "tags": ["Student Activity"], "registration_owner_email": "Owner@grinnell.edu"}`)
	c, err := newParser(EndPlusHour).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mentor Session"}, c.Tags)
	require.NotNil(t, c.ContactEmail)
	assert.Equal(t, "Owner@grinnell.edu", *c.ContactEmail)
}

func TestParseEmptyContactInfoFallsBack(t *testing.T) {
	raw := json.RawMessage(`{"id": 10, "title": "T", "location": "Forum", "date_utc": "2024-09-03 17:00:00",
		"contact_info": "", "registration_owner_email": "reg@grinnell.edu"}`)
	c, err := newParser(EndPlusHour).Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, c.ContactEmail)
	assert.Equal(t, "reg@grinnell.edu", *c.ContactEmail)
}
