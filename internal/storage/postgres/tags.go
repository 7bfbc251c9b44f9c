package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/storage"
)

func (db *DB) TagByName(ctx context.Context, name string) (domain.Tag, error) {
	var t domain.Tag
	err := db.Pool.QueryRow(ctx, `SELECT id, name, selected_default FROM tags WHERE name = $1`, name).
		Scan(&t.ID, &t.Name, &t.SelectedDefault)
	if err != nil {
		return domain.Tag{}, mapErr(err, "select tag")
	}
	return t, nil
}

func (db *DB) GetOrCreateTag(ctx context.Context, name string, selectedDefault bool) (domain.Tag, error) {
	var t domain.Tag
	err := db.Pool.QueryRow(ctx, `INSERT INTO tags (name, selected_default) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, selected_default`, name, selectedDefault).Scan(&t.ID, &t.Name, &t.SelectedDefault)
	if err != nil {
		return domain.Tag{}, mapErr(err, "upsert tag")
	}
	return t, nil
}

func (db *DB) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name, selected_default FROM tags ORDER BY name`)
	if err != nil {
		return nil, mapErr(err, "select tags")
	}
	defer rows.Close()

	out := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.SelectedDefault); err != nil {
			return nil, errors.Wrap(err, "scan tag")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) SetEventTags(ctx context.Context, eventID int64, tagIDs []int64) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if err := eventExists(ctx, tx, eventID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM event_tags WHERE event_id = $1`, eventID); err != nil {
			return mapErr(err, "clear tags")
		}
		return insertEventTags(ctx, tx, eventID, tagIDs)
	})
}

func (db *DB) AddEventTags(ctx context.Context, eventID int64, tagIDs []int64) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if err := eventExists(ctx, tx, eventID); err != nil {
			return err
		}
		return insertEventTags(ctx, tx, eventID, tagIDs)
	})
}

func (db *DB) EventTags(ctx context.Context, eventID int64) ([]string, error) {
	if err := eventExists(ctx, db.Pool, eventID); err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `SELECT t.name FROM event_tags et JOIN tags t ON t.id = et.tag_id
WHERE et.event_id = $1 ORDER BY t.name`, eventID)
	if err != nil {
		return nil, mapErr(err, "select event tags")
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errors.Wrap(err, "scan tag name")
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func eventExists(ctx context.Context, q querier, id int64) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapErr(err, "event exists")
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

// insertEventTags attaches tag ids, ignoring ones already attached.
func insertEventTags(ctx context.Context, tx pgx.Tx, eventID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO event_tags (event_id, tag_id)
SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, eventID, tagIDs)
	return mapErr(err, "insert event tags")
}
