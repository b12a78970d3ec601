// Package service holds the use cases of the admin front-end: the session
// state machine, the feature modules and the spreadsheet import. Services
// talk to the REST backend only through port.APIClient.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/cache"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// SessionManager owns the session lifecycle:
// ANONYMOUS -> AUTHENTICATING -> AUTHENTICATED, and back to ANONYMOUS on
// logout, login failure or a 401 from any backend call.
type SessionManager struct {
	api      port.APIClient
	store    port.SessionStore
	authPath string
	ttl      time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger

	// forced remembers "sessionID:generation" keys already logged out so
	// concurrent 401s collapse into one forced logout.
	mu     sync.Mutex
	forced *cache.InMemory[struct{}]
}

// NewSessionManager creates a session manager. authPath is the auth
// collection with a trailing slash ("/auth/"); ttl is used when the token
// carries no readable expiry.
func NewSessionManager(api port.APIClient, store port.SessionStore, authPath string, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		api:      api,
		store:    store,
		authPath: withSlash(authPath),
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "session")),
		forced:   cache.New[struct{}](ttl),
	}
}

// ============================================================
// Lookup
// ============================================================

// NewSession creates and stores an anonymous session.
func (m *SessionManager) NewSession(ctx context.Context, variant domain.Variant, persist bool) (*domain.Session, error) {
	sess := domain.NewSession(uuid.NewString(), variant, persist)
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Load returns the session with the given id. Expired sessions are dropped.
func (m *SessionManager) Load(ctx context.Context, id string) (*domain.Session, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	sess, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	if sess.Expired(time.Now()) {
		m.logger.Debug("session expired", zap.String("session_id", id))
		sess.Clear()
		_ = m.store.Delete(ctx, id)
		return nil, false, nil
	}
	return sess, true, nil
}

// ============================================================
// Login: POST <auth>login
// ============================================================

// Login exchanges credentials for a bearer token. On any failure the
// session ends up ANONYMOUS with every field empty.
func (m *SessionManager) Login(ctx context.Context, sess *domain.Session, username, password string) error {
	ctx, span := authTracer.Start(ctx, "SessionManager.Login")
	defer span.End()
	span.SetAttributes(attribute.String("variant", string(sess.Variant)))

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return &domain.ErrValidation{Field: "usuario", Message: "Preencha usuário e senha"}
	}

	sess.BeginLogin()

	// No token source: a 401 here means bad credentials, not an expired session.
	env := m.api.Post(ctx, nil, m.authPath+"login", domain.LoginRequest{Usuario: username, Senha: password})

	fail := func(outcome string, err error) error {
		sess.Clear()
		_ = m.store.Save(ctx, sess)
		m.metrics.IncrLogin(string(sess.Variant), outcome)
		m.logger.Info("login failed",
			zap.String("usuario", username),
			zap.String("outcome", outcome),
			zap.Int("status", env.Status),
		)
		return err
	}

	switch {
	case env.Unauthorized():
		return fail("invalid_credentials", &domain.ErrInvalidCredentials{})
	case env.Network():
		return fail("network", &domain.ErrNetwork{Service: "auth", Message: env.Error})
	case !env.Success:
		return fail("server_error", &domain.ErrServer{Status: env.Status})
	}

	var resp domain.LoginResponse
	if err := env.DecodeData(&resp); err != nil || resp.AccessToken == "" {
		return fail("server_error", &domain.ErrServer{Status: env.Status})
	}
	if resp.Usuario == "" {
		resp.Usuario = username
	}

	sess.Authenticate(resp.AccessToken, resp.Usuario, resp.TipoUsuario, m.expiryOf(resp.AccessToken))
	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	m.metrics.IncrLogin(string(sess.Variant), "success")
	m.logger.Info("login successful",
		zap.String("usuario", resp.Usuario),
		zap.String("tipo_usuario", resp.TipoUsuario),
		zap.String("variant", string(sess.Variant)),
	)
	return nil
}

// expiryOf reads the exp claim of a JWT without verifying it; the backend
// owns the signing key. Opaque tokens get the configured TTL.
func (m *SessionManager) expiryOf(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(m.ttl)
}

// ============================================================
// Verify: GET <auth>verify
// ============================================================

// ValidateToken checks the session token with the backend. Any failure
// clears the session and returns false.
func (m *SessionManager) ValidateToken(ctx context.Context, sess *domain.Session) bool {
	ctx, span := authTracer.Start(ctx, "SessionManager.ValidateToken")
	defer span.End()

	if _, ok := sess.AuthHeader(); !ok {
		return false
	}

	env := m.api.Get(ctx, sess, m.authPath+"verify")
	if !env.Success {
		// A 401 has already been handled by the client hook.
		if !env.Unauthorized() {
			sess.Clear()
			_ = m.store.Save(ctx, sess)
		}
		m.logger.Info("token rejected", zap.String("session_id", sess.ID), zap.Int("status", env.Status))
		return false
	}

	sess.MarkValidated()
	return true
}

// ============================================================
// Logout
// ============================================================

// Logout clears the session and its persisted copy.
func (m *SessionManager) Logout(ctx context.Context, sess *domain.Session) error {
	user := sess.View().Username
	sess.Clear()
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("logout", zap.String("usuario", user))
	return nil
}

// ForceLogout clears a session after the backend rejected its token.
// It returns true only for the first caller of a session generation.
func (m *SessionManager) ForceLogout(ctx context.Context, sess *domain.Session) bool {
	view := sess.View()
	if view.Token == "" {
		return false
	}
	key := fmt.Sprintf("%s:%d", view.ID, view.Generation)

	m.mu.Lock()
	if _, done := m.forced.Get(key); done {
		m.mu.Unlock()
		return false
	}
	m.forced.Set(key, struct{}{})
	m.mu.Unlock()

	sess.Clear()
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		m.logger.Warn("forced logout: delete session", zap.Error(err))
	}
	m.metrics.IncrForcedLogout()
	m.logger.Warn("session expired by backend, forcing logout",
		zap.String("session_id", view.ID),
		zap.String("usuario", view.Username),
		zap.Int("generation", view.Generation),
	)
	return true
}

// HandleUnauthorized is the API client 401 hook.
func (m *SessionManager) HandleUnauthorized(ctx context.Context, src port.TokenSource) {
	sess, ok := src.(*domain.Session)
	if !ok || sess == nil {
		return
	}
	m.ForceLogout(ctx, sess)
}

// Close stops the background cleanup of the forced-logout cache.
func (m *SessionManager) Close() {
	m.forced.Close()
}

// IsUnauthorized reports whether err means the session is gone.
func IsUnauthorized(err error) bool {
	var unauth *domain.ErrUnauthorized
	return errors.As(err, &unauth)
}
