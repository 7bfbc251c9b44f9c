package claim

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/notify"
	"example.com/campusevents/internal/storage/memory"
)

type outbox struct {
	sent []notify.Message
	err  error
}

func (o *outbox) Send(_ context.Context, m notify.Message) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, m)
	return nil
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	claims *memory.Claims
	mail   *outbox
	event  *domain.Event
	user   int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	mod := &domain.User{Email: "moderator@grinnell.edu"}
	require.NoError(t, s.CreateUser(ctx, mod))
	u := &domain.User{Email: "organizer@grinnell.edu", FirstName: "Ada", LastName: "L"}
	require.NoError(t, s.CreateUser(ctx, u))

	start := time.Date(2024, 9, 3, 17, 0, 0, 0, time.UTC)
	ev := &domain.Event{Title: "Film Night", Start: start, End: start.Add(time.Hour),
		HostID: domain.Int64(mod.ID), ContactEmail: domain.String("films@grinnell.edu")}
	require.NoError(t, s.CreateEvent(ctx, ev))

	claims := memory.NewClaims()
	mail := &outbox{}
	return &fixture{
		svc: &Service{Events: s, Users: s, Tokens: claims, Mail: mail, Moderator: mod.ID,
			ConfirmURL: "https://events.example.edu/claims/%s"},
		store: s, claims: claims, mail: mail, event: ev, user: u.ID,
	}
}

func tokenFrom(t *testing.T, m notify.Message) string {
	t.Helper()
	i := strings.Index(m.Body, "/claims/")
	require.GreaterOrEqual(t, i, 0)
	return strings.TrimSpace(m.Body[i+len("/claims/"):])
}

func TestRequestAndConfirm(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Request(ctx, f.event.ID, f.user))
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "films@grinnell.edu", f.mail.sent[0].To)

	ev, err := f.svc.Confirm(ctx, tokenFrom(t, f.mail.sent[0]))
	require.NoError(t, err)
	assert.True(t, ev.HostedBy(f.user))

	stored, err := f.store.GetEvent(ctx, f.event.ID)
	require.NoError(t, err)
	assert.True(t, stored.HostedBy(f.user))

	// token is single use; the event is no longer claimable anyway
	_, err = f.svc.Confirm(ctx, tokenFrom(t, f.mail.sent[0]))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, f.svc.Request(ctx, f.event.ID, f.user), ErrNotClaimable)
}

func TestRequestRollsBackOnSendFailure(t *testing.T) {
	f := setup(t)
	f.mail.err = errors.New("smtp down")

	err := f.svc.Request(context.Background(), f.event.ID, f.user)
	require.Error(t, err)
	assert.Zero(t, f.claims.Len())
}

func TestRequestNeedsContact(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.event.ContactEmail = nil
	require.NoError(t, f.store.UpdateEvent(ctx, f.event))

	assert.ErrorIs(t, f.svc.Request(ctx, f.event.ID, f.user), ErrNoContact)
	assert.Empty(t, f.mail.sent)
}
