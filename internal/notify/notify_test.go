package notify

import (
	"context"
	"testing"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBuildsMailjetMessage(t *testing.T) {
	var got *mailjet.MessagesV31
	n, err := New(WithSender("events@grinnell.edu"), withTransport(func(m *mailjet.MessagesV31) error {
		got = m
		return nil
	}))
	require.NoError(t, err)

	err = n.Send(context.Background(), Message{Subject: "Claim your event", Body: "token", To: "host@grinnell.edu"})
	require.NoError(t, err)

	require.NotNil(t, got)
	require.Len(t, got.Info, 1)
	info := got.Info[0]
	assert.Equal(t, "events@grinnell.edu", info.From.Email)
	assert.Equal(t, "host@grinnell.edu", (*info.To)[0].Email)
	assert.Equal(t, "Claim your event", info.Subject)
	assert.Equal(t, "token", info.TextPart)
}

func TestSendFailureIsReturned(t *testing.T) {
	n, err := New(withTransport(func(*mailjet.MessagesV31) error { return errors.New("quota exceeded") }))
	require.NoError(t, err)
	assert.Error(t, n.Send(context.Background(), Message{To: "a@b.co"}))
}

func TestSendWithoutSecretsLogsOnly(t *testing.T) {
	n, err := New()
	require.NoError(t, err)
	assert.NoError(t, n.Send(context.Background(), Message{To: "a@b.co"}))
	assert.Error(t, n.Send(context.Background(), Message{}))
}

func TestSecretsMustPair(t *testing.T) {
	_, err := New(WithSecrets("pub", ""))
	assert.Error(t, err)
}
