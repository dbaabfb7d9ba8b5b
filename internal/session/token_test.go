package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensIssueParse(t *testing.T) {
	tok, err := NewTokens("secret", 30*time.Minute)
	require.NoError(t, err)

	id := uuid.New()
	signed, exp, err := tok.Issue(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 5*time.Second)

	got, err := tok.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokensRejectTampered(t *testing.T) {
	a, err := NewTokens("secret-a", time.Minute)
	require.NoError(t, err)
	b, err := NewTokens("secret-b", time.Minute)
	require.NoError(t, err)

	signed, _, err := a.Issue(uuid.New())
	require.NoError(t, err)

	_, err = b.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensExpire(t *testing.T) {
	tok, err := NewTokens("secret", time.Minute)
	require.NoError(t, err)
	now := time.Now()
	tok.now = func() time.Time { return now }

	signed, _, err := tok.Issue(uuid.New())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = tok.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensEmptySecret(t *testing.T) {
	_, err := NewTokens("", time.Minute)
	assert.Error(t, err)
}
