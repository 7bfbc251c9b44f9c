package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/storage"
)

func (db *DB) CreateUser(ctx context.Context, u *domain.User) error {
	typ := u.Type
	if typ == "" {
		typ = domain.UserStudent
	}
	err := db.Pool.QueryRow(ctx, `INSERT INTO users (email, first_name, last_name, user_type)
VALUES ($1, $2, $3, $4) RETURNING id`, u.Email, u.FirstName, u.LastName, string(typ)).Scan(&u.ID)
	if err != nil {
		return mapErr(err, "insert user")
	}
	u.Type = typ
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return db.queryUser(ctx, `WHERE id = $1`, id)
}

func (db *DB) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return db.queryUser(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (db *DB) queryUser(ctx context.Context, where string, args ...any) (*domain.User, error) {
	var u domain.User
	var typ string
	err := db.Pool.QueryRow(ctx, `SELECT id, email, first_name, last_name, user_type FROM users `+where, args...).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &typ)
	if err != nil {
		return nil, mapErr(err, "select user")
	}
	u.Type = domain.UserType(typ)
	return &u, nil
}

func (db *DB) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO organizations (name) VALUES ($1) RETURNING id`, o.Name).Scan(&o.ID); err != nil {
			return mapErr(err, "insert organization")
		}
		for _, uid := range o.LeaderIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO organization_leaders (org_id, user_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, o.ID, uid); err != nil {
				return mapErr(err, "insert organization leader")
			}
		}
		return nil
	})
}

func (db *DB) Like(ctx context.Context, userID, eventID int64) error {
	_, err := db.Pool.Exec(ctx, `INSERT INTO favorites (user_id, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, eventID)
	if err != nil {
		mapped := mapErr(err, "insert favorite")
		if errors.Is(mapped, storage.ErrConflict) {
			return errors.Wrapf(storage.ErrNotFound, "user %d or event %d", userID, eventID)
		}
		return mapped
	}
	return nil
}

func (db *DB) Unlike(ctx context.Context, userID, eventID int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	return mapErr(err, "delete favorite")
}

func (db *DB) IsLiked(ctx context.Context, userID, eventID int64) (bool, error) {
	var liked bool
	err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID).Scan(&liked)
	if err != nil {
		return false, mapErr(err, "select favorite")
	}
	return liked, nil
}

func (db *DB) LikedEvents(ctx context.Context, userID int64) ([]*domain.Event, error) {
	return db.queryEvents(ctx, `WHERE e.id IN (SELECT event_id FROM favorites WHERE user_id = $1)
GROUP BY e.id ORDER BY e.start_at ASC, e.id ASC`, userID)
}
