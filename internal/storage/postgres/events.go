package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/idempotency"
	"example.com/campusevents/internal/storage"
)

const eventColumns = `e.id, e.live_whale_id, e.title, e.description, e.location, e.latitude, e.longitude,
  e.start_at, e.end_at, e.students_only, e.host_id, e.parent_org_id, e.next_repeat_id,
  e.contact_email, e.created_at,
  COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}')::text[]`

const eventFrom = `FROM events e
  LEFT JOIN event_tags et ON et.event_id = e.id
  LEFT JOIN tags t ON t.id = et.tag_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*domain.Event, error) {
	var ev domain.Event
	err := row.Scan(
		&ev.ID, &ev.LiveWhaleID, &ev.Title, &ev.Description, &ev.Location, &ev.Lat, &ev.Long,
		&ev.Start, &ev.End, &ev.StudentsOnly, &ev.HostID, &ev.ParentOrgID, &ev.NextRepeatID,
		&ev.ContactEmail, &ev.CreatedAt, &ev.Tags,
	)
	if err != nil {
		return nil, err
	}
	ev.Start, ev.End, ev.CreatedAt = ev.Start.UTC(), ev.End.UTC(), ev.CreatedAt.UTC()
	return &ev, nil
}

func (db *DB) queryEvent(ctx context.Context, where string, args ...any) (*domain.Event, error) {
	sql := "SELECT " + eventColumns + " " + eventFrom + " WHERE " + where + " GROUP BY e.id"
	ev, err := scanEvent(db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapErr(err, "select event")
	}
	return ev, nil
}

func (db *DB) queryEvents(ctx context.Context, tail string, args ...any) ([]*domain.Event, error) {
	rows, err := db.Pool.Query(ctx, "SELECT "+eventColumns+" "+eventFrom+" "+tail, args...)
	if err != nil {
		return nil, mapErr(err, "select events")
	}
	defer rows.Close()

	out := []*domain.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (db *DB) CreateEvent(ctx context.Context, ev *domain.Event) error {
	const sql = `INSERT INTO events (live_whale_id, title, description, location, latitude, longitude,
  start_at, end_at, students_only, host_id, parent_org_id, next_repeat_id, contact_email, dedup_key)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id, created_at`
	err := db.Pool.QueryRow(ctx, sql,
		ev.LiveWhaleID, ev.Title, ev.Description, ev.Location, ev.Lat, ev.Long,
		ev.Start, ev.End, ev.StudentsOnly, ev.HostID, ev.ParentOrgID, ev.NextRepeatID, ev.ContactEmail,
		idempotency.DuplicateKey(ev.Title, ev.Start, ev.End),
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return mapErr(err, "insert event")
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return nil
}

func (db *DB) UpdateEvent(ctx context.Context, ev *domain.Event) error {
	const sql = `UPDATE events SET live_whale_id=$2, title=$3, description=$4, location=$5,
  latitude=$6, longitude=$7, start_at=$8, end_at=$9, students_only=$10, host_id=$11,
  parent_org_id=$12, next_repeat_id=$13, contact_email=$14, dedup_key=$15
WHERE id=$1`
	ct, err := db.Pool.Exec(ctx, sql,
		ev.ID, ev.LiveWhaleID, ev.Title, ev.Description, ev.Location, ev.Lat, ev.Long,
		ev.Start, ev.End, ev.StudentsOnly, ev.HostID, ev.ParentOrgID, ev.NextRepeatID, ev.ContactEmail,
		idempotency.DuplicateKey(ev.Title, ev.Start, ev.End),
	)
	if err != nil {
		return mapErr(err, "update event")
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (db *DB) DeleteEvent(ctx context.Context, id int64) error {
	ct, err := db.Pool.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return mapErr(err, "delete event")
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (db *DB) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	return db.queryEvent(ctx, "e.id = $1", id)
}

func (db *DB) EventByLiveWhaleID(ctx context.Context, liveWhaleID int64) (*domain.Event, error) {
	return db.queryEvent(ctx, "e.live_whale_id = $1", liveWhaleID)
}

func (db *DB) Predecessor(ctx context.Context, id int64) (*domain.Event, error) {
	return db.queryEvent(ctx, "e.next_repeat_id = $1", id)
}

func (db *DB) DuplicateEvents(ctx context.Context, hostID int64, title string, start, end time.Time) ([]*domain.Event, error) {
	return db.queryEvents(ctx,
		`WHERE e.dedup_key = $1 AND e.host_id = $2 AND e.title = $3 AND e.start_at = $4 AND e.end_at = $5
GROUP BY e.id ORDER BY e.id`,
		idempotency.DuplicateKey(title, start, end), hostID, title, start, end)
}

func (db *DB) NewerDuplicateExists(ctx context.Context, afterID int64, title string, start, end time.Time) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id > $1 AND dedup_key = $2 AND title = $3 AND start_at = $4 AND end_at = $5)`,
		afterID, idempotency.DuplicateKey(title, start, end), title, start, end,
	).Scan(&exists)
	if err != nil {
		return false, mapErr(err, "newer duplicate")
	}
	return exists, nil
}
