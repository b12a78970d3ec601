package domain

import (
	"sync"
	"time"
)

// ============================================================
// Session
// ============================================================

// SessionState is the position of a browser session in the auth lifecycle.
type SessionState string

const (
	StateAnonymous      SessionState = "ANONYMOUS"
	StateAuthenticating SessionState = "AUTHENTICATING"
	StateAuthenticated  SessionState = "AUTHENTICATED"
)

// Variant identifies which front-end bundle a session belongs to.
type Variant string

const (
	VariantDesktop Variant = "desktop"
	VariantMobile  Variant = "mobile"
)

// ParseVariant maps a path segment or query value to a Variant.
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantDesktop:
		return VariantDesktop, true
	case VariantMobile:
		return VariantMobile, true
	}
	return "", false
}

// Backend roles. Only RoleAdmin may write.
const (
	RoleAdmin  = "administrador"
	RoleUser   = "usuario"
	RoleViewer = "visualizador"
)

// Roles lists the roles an account can be given.
var Roles = []string{RoleAdmin, RoleUser, RoleViewer}

// Session holds the bearer credential of one browser.
// Token and Username are always set and cleared together.
type Session struct {
	mu sync.RWMutex

	ID         string
	Variant    Variant
	Persist    bool
	Token      string
	Username   string
	Role       string
	State      SessionState
	Generation int
	Validated  bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// NewSession returns an empty anonymous session.
func NewSession(id string, variant Variant, persist bool) *Session {
	return &Session{
		ID:        id,
		Variant:   variant,
		Persist:   persist,
		State:     StateAnonymous,
		CreatedAt: time.Now(),
	}
}

// IsAuthenticated reports whether both token and username are present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Token != "" && s.Username != "" && s.State == StateAuthenticated
}

// AuthHeader returns the Authorization header value, if a token exists.
func (s *Session) AuthHeader() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Token == "" {
		return "", false
	}
	return "Bearer " + s.Token, true
}

// IsAdmin reports whether the logged-in user has the administrator role.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Role == RoleAdmin
}

// Expired reports whether the session carries an expiry that has passed.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// BeginLogin moves the session to AUTHENTICATING and drops any old credential.
func (s *Session) BeginLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token, s.Username, s.Role = "", "", ""
	s.State = StateAuthenticating
	s.Validated = false
}

// Authenticate stores the credential returned by the backend.
// It starts a new generation so a later 401 forces exactly one logout.
func (s *Session) Authenticate(token, username, role string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || username == "" {
		s.clearLocked()
		return
	}
	s.Token, s.Username, s.Role = token, username, role
	s.State = StateAuthenticated
	s.ExpiresAt = expiresAt
	s.Validated = true
	s.Generation++
}

// Clear resets the session to ANONYMOUS.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Session) clearLocked() {
	s.Token, s.Username, s.Role = "", "", ""
	s.State = StateAnonymous
	s.ExpiresAt = time.Time{}
	s.Validated = false
}

// MarkValidated records that the token was confirmed by the verify endpoint.
func (s *Session) MarkValidated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Validated = true
}

// NeedsValidation reports whether a rehydrated credential was never verified.
func (s *Session) NeedsValidation() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Token != "" && !s.Validated
}

// SessionView is an immutable copy of the session fields, safe to hand to
// templates and stores.
type SessionView struct {
	ID         string
	Variant    Variant
	Persist    bool
	Token      string
	Username   string
	Role       string
	State      SessionState
	Generation int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// View returns a copy of the session fields.
func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionView{
		ID:         s.ID,
		Variant:    s.Variant,
		Persist:    s.Persist,
		Token:      s.Token,
		Username:   s.Username,
		Role:       s.Role,
		State:      s.State,
		Generation: s.Generation,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

// SessionFromView rebuilds a session from a stored copy. Rehydrated
// credentials are marked unvalidated.
func SessionFromView(v SessionView) *Session {
	s := &Session{
		ID:         v.ID,
		Variant:    v.Variant,
		Persist:    v.Persist,
		Token:      v.Token,
		Username:   v.Username,
		Role:       v.Role,
		State:      v.State,
		Generation: v.Generation,
		CreatedAt:  v.CreatedAt,
		ExpiresAt:  v.ExpiresAt,
	}
	if s.Token == "" || s.Username == "" {
		s.clearLocked()
	}
	return s
}
