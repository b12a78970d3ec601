package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/config"
	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	csrfKey    contextKey = "csrf_token"
)

// CSRFCookieName holds the double-submit token; forms echo it as csrf_token.
const CSRFCookieName = "alugueis_csrf"

func sessionCookieName(v domain.Variant) string {
	return "alugueis_sid_" + string(v)
}

// SessionFromContext returns the browser session loaded by sessionMiddleware.
func SessionFromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey).(*domain.Session)
	return s
}

func csrfToken(r *http.Request) string {
	t, _ := r.Context().Value(csrfKey).(string)
	return t
}

// sessionMiddleware loads the session named by the variant cookie, or starts
// an anonymous one. A credential read back from the durable store is
// confirmed with the backend before the request goes on.
func sessionMiddleware(a *app, v domain.Variant) func(http.Handler) http.Handler {
	persist := a.Config.PolicyFor(v) == config.TokenPersistent

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var sess *domain.Session
			if c, err := r.Cookie(sessionCookieName(v)); err == nil && c.Value != "" {
				s, ok, err := a.Sessions.Load(ctx, c.Value)
				if err != nil {
					a.Logger.Warn("session lookup failed", zap.Error(err))
				}
				if ok && s.Variant == v {
					sess = s
				}
			}

			if sess == nil {
				s, err := a.Sessions.NewSession(ctx, v, persist)
				if err != nil {
					a.Logger.Error("failed to start session", zap.Error(err))
					http.Error(w, "Erro ao iniciar sessão", http.StatusInternalServerError)
					return
				}
				sess = s
				setSessionCookie(w, a, sess)
			}

			if sess.NeedsValidation() && !a.Sessions.ValidateToken(ctx, sess) {
				a.Logger.Info("stored credential rejected, session cleared", zap.String("variant", string(v)))
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, sess)))
		})
	}
}

// setSessionCookie writes the session id. Persistent sessions get a Max-Age
// so the browser keeps them across restarts; memory sessions end with the
// browser.
func setSessionCookie(w http.ResponseWriter, a *app, sess *domain.Session) {
	c := &http.Cookie{
		Name:     sessionCookieName(sess.Variant),
		Value:    sess.ID,
		Path:     "/" + string(sess.Variant),
		HttpOnly: true,
		Secure:   a.Config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if sess.Persist {
		c.MaxAge = int(a.Config.SessionTTL.Seconds())
	}
	http.SetCookie(w, c)
}

func clearSessionCookie(w http.ResponseWriter, a *app, v domain.Variant) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName(v),
		Value:    "",
		Path:     "/" + string(v),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// csrfMiddleware issues the double-submit cookie and rejects state-changing
// requests whose form (or X-CSRF-Token header) does not echo it.
func csrfMiddleware(a *app) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil && c.Value != "" {
				token = c.Value
			} else {
				token = strings.ReplaceAll(uuid.NewString(), "-", "")
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   a.Config.SecureCookies,
					SameSite: http.SameSiteStrictMode,
				})
			}

			if r.Method == http.MethodPost {
				sent := r.FormValue("csrf_token")
				if sent == "" {
					sent = r.Header.Get("X-CSRF-Token")
				}
				if sent == "" || sent != token {
					a.Logger.Warn("csrf: token mismatch",
						zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr),
					)
					http.Error(w, "Requisição inválida, recarregue a página e tente novamente.", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey, token)))
		})
	}
}

// requireSession redirects anonymous browsers to the login page of their
// variant, remembering where they were going.
func requireSession(v domain.Variant) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil || !sess.IsAuthenticated() {
				target := loginPath(v)
				if r.Method == http.MethodGet {
					target += "?next=" + url.QueryEscape(r.URL.RequestURI())
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func loginPath(v domain.Variant) string {
	return "/" + string(v) + "/login"
}

// safeNext accepts only same-site paths inside the variant; anything else
// falls back to fallback.
func safeNext(next string, v domain.Variant, fallback string) string {
	if next == "" || strings.Contains(next, `\`) || strings.HasPrefix(next, "//") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	prefix := "/" + string(v) + "/"
	if !strings.HasPrefix(u.Path, prefix) || strings.HasPrefix(u.Path, loginPath(v)) {
		return fallback
	}
	return u.RequestURI()
}
