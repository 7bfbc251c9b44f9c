package transporthttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/recurrence"
	"example.com/campusevents/internal/storage"
)

type eventResponse struct {
	*domain.Event
	PrevRepeat *int64 `json:"prevRepeat,omitempty"`
	IsFavorite bool   `json:"isFavorite"`
}

type listResponse struct {
	Events []*domain.Event `json:"events"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// parseFilter reads the listing query. Tags may repeat or be comma
// separated.
func parseFilter(q map[string][]string) (storage.EventFilter, map[string][]string) {
	var f storage.EventFilter
	bad := map[string][]string{}
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	parseTime := func(k string) time.Time {
		s := get(k)
		if s == "" {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			bad[k] = append(bad[k], "must be an RFC 3339 datetime")
			return time.Time{}
		}
		return t.UTC()
	}
	parseID := func(k string) *int64 {
		s := get(k)
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			bad[k] = append(bad[k], "must be a positive integer")
			return nil
		}
		return &n
	}
	parseInt := func(k string) int {
		s := get(k)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			bad[k] = append(bad[k], "must be a non-negative integer")
			return 0
		}
		return n
	}

	f.From = parseTime("from")
	f.To = parseTime("to")
	f.HostID = parseID("host")
	f.OrgID = parseID("org")
	f.Limit = parseInt("limit")
	f.Offset = parseInt("offset")
	if s := get("studentsOnly"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			bad["studentsOnly"] = append(bad["studentsOnly"], "must be true or false")
		} else {
			f.StudentsOnly = &b
		}
	}
	for _, v := range q["tag"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		bad["to"] = append(bad["to"], "must be after from")
	}
	return f, bad
}

func (d *ServerDeps) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	f, bad := parseFilter(r.URL.Query())
	if len(bad) > 0 {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "one or more query parameters are invalid", bad)
		return
	}
	f = f.Normalize(d.Now())
	evs, err := d.Store.ListEvents(r.Context(), f)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if evs == nil {
		evs = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, listResponse{Events: evs, Limit: f.Limit, Offset: f.Offset})
}

func (d *ServerDeps) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	ev, err := d.Store.GetEvent(ctx, id)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	resp := eventResponse{Event: ev}

	prev, err := d.Store.Predecessor(ctx, id)
	switch {
	case err == nil:
		resp.PrevRepeat = domain.Int64(prev.ID)
	case !errors.Is(err, storage.ErrNotFound):
		d.writeError(w, r, err)
		return
	}
	if uid, ok := callerID(r); ok {
		if resp.IsFavorite, err = d.Store.IsLiked(ctx, uid, id); err != nil {
			d.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreateEvent stores a single event, or a chain when repeat is given.
func (d *ServerDeps) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	uid, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var in domain.CreateEventInput
	if err := decodeJSONStrict(r, &in); err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	draft, err := in.Validate(uid)
	if err != nil {
		d.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var head *domain.Event
	if draft.Repeat == nil {
		head, err = d.Chain.Create(ctx, draft.Event, draft.Tags)
	} else {
		head, err = d.Chain.CreateRecurring(ctx, draft.Event, draft.Tags, repeatRule(draft.Repeat), draft.Repeat.Until)
	}
	if err != nil {
		if head != nil {
			d.logger().Warn("repeat chain partly created", zap.Int64("head_id", head.ID), zap.Error(err))
		}
		d.writeError(w, r, err)
		return
	}
	d.logger().Info("event created", zap.Int64("event_id", head.ID), zap.Int64("host_id", uid), zap.Bool("repeats", draft.Repeat != nil))
	writeJSON(w, http.StatusCreated, head)
}

func repeatRule(rep *domain.Repeat) recurrence.Rule {
	if rep.RRule != "" {
		return recurrence.RRule{Spec: rep.RRule}
	}
	return recurrence.Offset{Days: rep.Days, Months: rep.Months}
}

// ownedEvent loads the event and checks the caller hosts it.
func (d *ServerDeps) ownedEvent(w http.ResponseWriter, r *http.Request) (*domain.Event, bool) {
	uid, ok := requireCaller(w, r)
	if !ok {
		return nil, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	ev, err := d.Store.GetEvent(r.Context(), id)
	if err != nil {
		d.writeError(w, r, err)
		return nil, false
	}
	if !ev.HostedBy(uid) {
		WriteProblem(w, http.StatusForbidden, "forbidden", "only the host may change this event", nil)
		return nil, false
	}
	return ev, true
}

// HandleEditEvent applies a partial update to the event and every later
// repeat. An edit whose repeatUntil removes the event itself answers 204.
func (d *ServerDeps) HandleEditEvent(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	ev, ok := d.ownedEvent(w, r)
	if !ok {
		return
	}
	var in domain.EditEventInput
	if err := decodeJSONStrict(r, &in); err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	u, truncate, err := in.Validate(ev)
	if err != nil {
		d.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	id, err := d.Chain.EditChain(ctx, ev.ID, u, truncate)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	updated, err := d.Store.GetEvent(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *ServerDeps) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := d.ownedEvent(w, r)
	if !ok {
		return
	}
	if err := d.Chain.DeleteNode(r.Context(), ev.ID); err != nil {
		d.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
