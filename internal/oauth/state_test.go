package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	s := NewStateSigner([]byte("0123456789abcdef0123456789abcdef"), time.Minute)

	raw, err := s.Sign("google", "n-1")
	require.NoError(t, err)

	c, err := s.Parse(raw, "google")
	require.NoError(t, err)
	assert.Equal(t, "n-1", c.Nonce)

	_, err = s.Parse(raw, "github")
	assert.ErrorIs(t, err, ErrStateProvider)
}

func TestStateRejectsTamperedAndExpired(t *testing.T) {
	s := NewStateSigner([]byte("0123456789abcdef0123456789abcdef"), time.Minute)
	raw, err := s.Sign("github", "n")
	require.NoError(t, err)

	other := NewStateSigner([]byte("ffffffffffffffffffffffffffffffff"), time.Minute)
	_, err = other.Parse(raw, "github")
	assert.ErrorIs(t, err, ErrStateInvalid)

	_, err = s.Parse(raw+"x", "github")
	assert.ErrorIs(t, err, ErrStateInvalid)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Parse(raw, "github")
	assert.ErrorIs(t, err, ErrStateInvalid)
}
