// Package claim lets a user take ownership of an imported event after the
// event's listed contact confirms by email.
package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/notify"
	"example.com/campusevents/internal/storage"
)

var (
	// ErrNotClaimable is returned for events no longer owned by the moderator.
	ErrNotClaimable = errors.New("event cannot be claimed")
	// ErrNoContact is returned when the event has no contact to verify with.
	ErrNoContact = errors.New("event has no contact email")
	// ErrInvalidToken is returned for unknown or expired tokens.
	ErrInvalidToken = errors.New("claim token is invalid or expired")
)

const DefaultTokenTTL = 48 * time.Hour

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, m notify.Message) error
}

type Service struct {
	Events    storage.EventStore
	Users     storage.UserStore
	Tokens    storage.ClaimStore
	Mail      Sender
	Moderator int64
	TTL       time.Duration
	// ConfirmURL is formatted with the token to build the link in the email.
	ConfirmURL string
	Logger     *zap.Logger
}

// Request stores a claim token for userID on eventID and emails it to the
// event's contact. If the email cannot be sent the token is removed.
func (s *Service) Request(ctx context.Context, eventID, userID int64) error {
	ev, err := s.claimable(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.ContactEmail == nil || *ev.ContactEmail == "" {
		return ErrNoContact
	}
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return errors.Wrapf(err, "get user %d", userID)
	}

	token := uuid.NewString()
	if err := s.Tokens.PutClaim(ctx, token, storage.Claim{EventID: ev.ID, UserID: user.ID}, s.ttl()); err != nil {
		return errors.Wrap(err, "store claim token")
	}

	msg := notify.Message{
		Subject: fmt.Sprintf("Claim request for %q", ev.Title),
		Body:    s.body(ev, user, token),
		To:      *ev.ContactEmail,
	}
	if err := s.Mail.Send(ctx, msg); err != nil {
		if derr := s.Tokens.DeleteClaim(ctx, token); derr != nil {
			s.logger().Error("claim token rollback failed", zap.String("token", token), zap.Error(derr))
		}
		return errors.Wrap(err, "send claim email")
	}
	s.logger().Info("claim requested", zap.Int64("event_id", ev.ID), zap.Int64("user_id", user.ID))
	return nil
}

// Confirm hands the event to the user who requested it.
func (s *Service) Confirm(ctx context.Context, token string) (*domain.Event, error) {
	c, err := s.Tokens.GetClaim(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, errors.Wrap(err, "get claim token")
	}

	ev, err := s.claimable(ctx, c.EventID)
	if err != nil {
		_ = s.Tokens.DeleteClaim(ctx, token)
		return nil, err
	}
	ev.HostID = domain.Int64(c.UserID)
	if err := s.Events.UpdateEvent(ctx, ev); err != nil {
		return nil, errors.Wrapf(err, "assign event %d", ev.ID)
	}
	if err := s.Tokens.DeleteClaim(ctx, token); err != nil {
		s.logger().Warn("claim token not removed", zap.String("token", token), zap.Error(err))
	}
	s.logger().Info("claim confirmed", zap.Int64("event_id", ev.ID), zap.Int64("user_id", c.UserID))
	return ev, nil
}

func (s *Service) claimable(ctx context.Context, eventID int64) (*domain.Event, error) {
	ev, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, errors.Wrapf(err, "get event %d", eventID)
	}
	if !ev.HostedBy(s.Moderator) {
		return nil, ErrNotClaimable
	}
	return ev, nil
}

func (s *Service) body(ev *domain.Event, u *domain.User, token string) string {
	link := token
	if s.ConfirmURL != "" {
		link = fmt.Sprintf(s.ConfirmURL, token)
	}
	return fmt.Sprintf("%s %s (%s) would like to manage %q on %s.\n\nIf they are the organizer, confirm here: %s\n",
		u.FirstName, u.LastName, u.Email, ev.Title, ev.Start.Format(time.RFC1123), link)
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTokenTTL
	}
	return s.TTL
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
