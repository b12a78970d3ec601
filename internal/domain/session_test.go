package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("sid", VariantDesktop, false)
	assert.Equal(t, StateAnonymous, s.State)
	assert.False(t, s.IsAuthenticated())
	_, ok := s.AuthHeader()
	assert.False(t, ok)

	s.BeginLogin()
	assert.Equal(t, StateAuthenticating, s.State)
	assert.False(t, s.IsAuthenticated())

	s.Authenticate("tok", "maria", RoleAdmin, time.Time{})
	require.True(t, s.IsAuthenticated())
	assert.True(t, s.IsAdmin())
	assert.Equal(t, 1, s.Generation)
	h, ok := s.AuthHeader()
	require.True(t, ok)
	assert.Equal(t, "Bearer tok", h)

	s.Clear()
	assert.Equal(t, StateAnonymous, s.State)
	assert.Empty(t, s.Token)
	assert.Empty(t, s.Username)
	assert.False(t, s.IsAdmin())
}

func TestAuthenticateRequiresTokenAndUsername(t *testing.T) {
	s := NewSession("sid", VariantMobile, true)
	s.BeginLogin()
	s.Authenticate("tok", "", "usuario", time.Time{})
	assert.Equal(t, StateAnonymous, s.State)
	assert.Empty(t, s.Token)
	assert.Zero(t, s.Generation)
}

func TestGenerationAdvancesPerLogin(t *testing.T) {
	s := NewSession("sid", VariantDesktop, false)
	s.Authenticate("a", "maria", "usuario", time.Time{})
	s.Clear()
	s.Authenticate("b", "maria", "usuario", time.Time{})
	assert.Equal(t, 2, s.Generation)
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("sid", VariantDesktop, false)
	assert.False(t, s.Expired(now), "no expiry set")

	s.Authenticate("tok", "maria", "usuario", now.Add(time.Hour))
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(2*time.Hour)))
}

func TestSessionFromView(t *testing.T) {
	s := NewSession("sid", VariantMobile, true)
	s.Authenticate("tok", "maria", RoleAdmin, time.Time{})

	restored := SessionFromView(s.View())
	assert.True(t, restored.IsAuthenticated())
	assert.True(t, restored.NeedsValidation())
	assert.Equal(t, 1, restored.Generation)

	restored.MarkValidated()
	assert.False(t, restored.NeedsValidation())
}

func TestSessionFromViewDropsHalfCredential(t *testing.T) {
	restored := SessionFromView(SessionView{ID: "sid", Token: "tok", State: StateAuthenticated})
	assert.Equal(t, StateAnonymous, restored.State)
	assert.Empty(t, restored.Token)
	assert.False(t, restored.NeedsValidation())
}

func TestParseVariant(t *testing.T) {
	v, ok := ParseVariant("mobile")
	assert.True(t, ok)
	assert.Equal(t, VariantMobile, v)

	_, ok = ParseVariant("tablet")
	assert.False(t, ok)
}
