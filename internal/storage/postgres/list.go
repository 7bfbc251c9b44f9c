package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/storage"
)

// ListEvents filters on start time and the optional fields of f, ordered by
// start. Zero-valued filters are ignored.
func (db *DB) ListEvents(ctx context.Context, f storage.EventFilter) ([]*domain.Event, error) {
	f = f.Normalize(time.Now().UTC())

	cond := "WHERE e.start_at >= $1"
	args := []any{f.From}
	idx := 2

	if !f.To.IsZero() {
		cond += fmt.Sprintf(" AND e.start_at < $%d", idx)
		args = append(args, f.To)
		idx++
	}
	if f.StudentsOnly != nil {
		cond += fmt.Sprintf(" AND e.students_only = $%d", idx)
		args = append(args, *f.StudentsOnly)
		idx++
	}
	if f.HostID != nil {
		cond += fmt.Sprintf(" AND e.host_id = $%d", idx)
		args = append(args, *f.HostID)
		idx++
	}
	if f.OrgID != nil {
		cond += fmt.Sprintf(" AND e.parent_org_id = $%d", idx)
		args = append(args, *f.OrgID)
		idx++
	}
	if len(f.Tags) > 0 {
		lowered := make([]string, len(f.Tags))
		for i, t := range f.Tags {
			lowered[i] = strings.ToLower(t)
		}
		cond += fmt.Sprintf(` AND e.id IN (SELECT et2.event_id FROM event_tags et2
  JOIN tags t2 ON t2.id = et2.tag_id WHERE lower(t2.name) = ANY($%d))`, idx)
		args = append(args, lowered)
		idx++
	}

	tail := fmt.Sprintf("%s GROUP BY e.id ORDER BY e.start_at ASC, e.id ASC LIMIT $%d OFFSET $%d", cond, idx, idx+1)
	args = append(args, f.Limit, f.Offset)
	return db.queryEvents(ctx, tail, args...)
}
