package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/config"
	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type loginForm struct {
	Next string
}

// ============================================================
// GET /{variant}/login
// ============================================================

func loginPageHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		next := safeNext(r.URL.Query().Get("next"), v, "")
		if sess.IsAuthenticated() {
			http.Redirect(w, r, orDefault(next, a.tabPath(v, a.defaultTab())), http.StatusFound)
			return
		}

		p := a.page(r, v, "login", "Entrar")
		if r.URL.Query().Get("expirada") != "" {
			p.Flash = &Flash{Kind: "warning", Message: SessionExpiredText}
		}
		p.Data = loginForm{Next: next}
		a.Renderer.Render(w, http.StatusOK, "login", p)
	}
}

// ============================================================
// POST /{variant}/login
// ============================================================

func loginSubmitHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /{variant}/login")
		defer span.End()
		span.SetAttributes(attribute.String("variant", string(v)))

		sess := SessionFromContext(ctx)
		username := strings.TrimSpace(r.FormValue("usuario"))
		next := safeNext(r.FormValue("next"), v, "")

		release, ok := a.inflight.Begin("login:" + sess.ID)
		if !ok {
			renderLoginError(a, w, r, v, http.StatusConflict, &domain.ErrInFlight{Key: "login"}, next)
			return
		}
		defer release()

		if err := a.Sessions.Login(ctx, sess, username, r.FormValue("senha")); err != nil {
			renderLoginError(a, w, r, v, loginStatus(err), err, next)
			return
		}

		// A persistent session gets a fresh Max-Age from the login time.
		if a.Config.PolicyFor(v) == config.TokenPersistent {
			setSessionCookie(w, a, sess)
		}
		a.Logger.Info("login succeeded", zap.String("variant", string(v)), zap.String("user", username))
		http.Redirect(w, r, orDefault(next, a.tabPath(v, a.defaultTab())), http.StatusSeeOther)
	}
}

// renderLoginError shows the login form again with cleared fields.
func renderLoginError(a *app, w http.ResponseWriter, r *http.Request, v domain.Variant, status int, err error, next string) {
	p := a.page(r, v, "login", "Entrar")
	p.Error = userMessage(err, "Erro no login")
	p.Data = loginForm{Next: next}
	a.Renderer.Render(w, status, "login", p)
}

func loginStatus(err error) int {
	var validation *domain.ErrValidation
	var invalid *domain.ErrInvalidCredentials
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &invalid):
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// ============================================================
// POST /{variant}/logout
// ============================================================

func logoutHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := SessionFromContext(ctx)

		if err := a.Sessions.Logout(ctx, sess); err != nil {
			a.Logger.Warn("logout: failed to delete session", zap.Error(err))
		}
		a.forget(sess.ID)
		clearSessionCookie(w, a, v)
		http.Redirect(w, r, loginPath(v), http.StatusSeeOther)
	}
}

// forget drops everything the modules remember about a session.
func (a *app) forget(sessionID string) {
	a.flashes.Delete(sessionID)
	if a.Owners != nil {
		a.Owners.Forget(sessionID)
	}
	if a.Properties != nil {
		a.Properties.Forget(sessionID)
	}
	if a.Participations != nil {
		a.Participations.Forget(sessionID)
	}
	if a.Rentals != nil {
		a.Rentals.Forget(sessionID)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
