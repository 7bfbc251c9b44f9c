package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/campusevents/internal/config"
	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/storage/memory"
)

func TestModeratorCreatedOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	first, err := moderator(ctx, s, "moderator@grinnell.edu")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, domain.UserCommunity, first.Type)

	again, err := moderator(ctx, s, "Moderator@Grinnell.edu")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(config.Config{Environment: "production"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1), "production logger drops debug")

	l, err = NewLogger(config.Config{Environment: "development"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}
