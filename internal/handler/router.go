package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/config"
	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/cache"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/resilience"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthChecker reports the health of the backend for /healthz.
type HealthChecker interface {
	Check(ctx context.Context, name, baseURL, healthPath string) domain.ServiceHealth
}

// Upstream is the backend client as seen by the operational endpoints.
type Upstream interface {
	BaseURL() string
}

// Deps are the collaborators of the router. A nil module service, or a
// module switched off in Config.Modules, leaves its routes unregistered.
type Deps struct {
	Config         *config.Config
	Sessions       *service.SessionManager
	Owners         *service.OwnerService
	Properties     *service.PropertyService
	Participations *service.ParticipationService
	Rentals        *service.RentalService
	Imports        *service.ImportService
	Dashboard      *service.DashboardService
	Reports        *service.ReportService
	Users          *service.UserService
	Health         HealthChecker
	API            Upstream
	Renderer       *Renderer // nil selects the embedded templates
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// app is the per-router state shared by the handler closures.
type app struct {
	Deps
	flashes  *cache.InMemory[Flash]
	inflight *resilience.InFlight
}

// NewRouter creates the HTTP router with all routes and middleware.
// Both bundles share the screen handlers and differ in layout and session
// cookie.
func NewRouter(d Deps) http.Handler {
	if d.Renderer == nil {
		rnd, err := NewRenderer(DefaultTemplates(), d.Logger)
		if err != nil {
			panic(err)
		}
		d.Renderer = rnd
	}
	a := &app{
		Deps:     d,
		flashes:  cache.New[Flash](5 * time.Minute),
		inflight: resilience.NewInFlight(),
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(a))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- Device routing (entry points only; deep links skip it) ---
	r.Get("/", rootHandler(a))
	r.Get("/index.html", rootHandler(a))

	// --- Static assets and the mobile service worker ---
	r.Handle("/static/*", staticHandler())
	r.Get("/mobile/sw.js", serviceWorkerHandler(a))
	r.Get("/mobile/manifest.webmanifest", manifestHandler(a))

	for _, v := range []domain.Variant{domain.VariantDesktop, domain.VariantMobile} {
		v := v
		r.Route("/"+string(v), func(r chi.Router) {
			r.Use(sessionMiddleware(a, v))
			r.Use(csrfMiddleware(a))

			// =============================================
			// Login gate
			// =============================================
			r.Get("/login", loginPageHandler(a, v))
			r.Post("/login", loginSubmitHandler(a, v))
			r.Post("/logout", logoutHandler(a, v))

			r.Group(func(r chi.Router) {
				r.Use(requireSession(v))

				r.Get("/", homeHandler(a, v))

				if a.enabled("dashboard") && d.Dashboard != nil {
					r.Get("/dashboard", dashboardHandler(a, v))
				}

				// =============================================
				// Proprietários
				// =============================================
				if a.enabled(string(domain.KindOwners)) && d.Owners != nil {
					mountCollection(r, a, v, ownerScreen(d.Owners))
				}

				// =============================================
				// Imóveis
				// =============================================
				if a.enabled(string(domain.KindProperties)) && d.Properties != nil {
					mountCollection(r, a, v, propertyScreen(d.Properties))
				}

				// =============================================
				// Participações
				// =============================================
				if a.enabled(string(domain.KindParticipations)) && d.Participations != nil {
					r.Get("/participacoes", participationsHandler(a, v))
					r.Post("/participacoes/nova-versao", newVersionHandler(a, v))
				}

				// =============================================
				// Aluguéis
				// =============================================
				if a.enabled(string(domain.KindRentals)) && d.Rentals != nil {
					r.Get("/alugueis", rentalsHandler(a, v))
					r.Post("/alugueis", rentalCreateHandler(a, v))
					r.Post("/alugueis/{id}", rentalUpdateHandler(a, v))
					r.Post("/alugueis/{id}/excluir", rentalDeleteHandler(a, v))
				}

				// =============================================
				// Importação
				// =============================================
				if a.enabled("importacao") && d.Imports != nil {
					r.Get("/importacao", importPageHandler(a, v))
					r.Post("/importacao/{tipo}", importUploadHandler(a, v))
				}

				// =============================================
				// Relatórios
				// =============================================
				if a.enabled("relatorios") && d.Reports != nil {
					r.Get("/relatorios", reportsHandler(a, v))
				}

				// =============================================
				// Usuários (admin only, enforced by the service)
				// =============================================
				if a.enabled("usuarios") && d.Users != nil {
					r.Get("/usuarios", usersHandler(a, v))
					r.Post("/usuarios", userCreateHandler(a, v))
					r.Post("/usuarios/{id}", userChangeHandler(a, v))
					r.Post("/usuarios/{id}/excluir", userDeleteHandler(a, v))
				}
			})
		})
	}

	return r
}

func (a *app) enabled(module string) bool {
	return a.Config.Modules.Enabled(module)
}

// defaultTab is the configured landing screen, or the first enabled one.
func (a *app) defaultTab() string {
	if tab := a.Config.UI.DefaultTab; tab != "" && a.enabled(tab) {
		return tab
	}
	for _, m := range []string{"dashboard", "proprietarios", "imoveis", "participacoes", "alugueis", "relatorios", "importacao"} {
		if a.enabled(m) {
			return m
		}
	}
	return ""
}

func (a *app) tabPath(v domain.Variant, tab string) string {
	return "/" + string(v) + "/" + tab
}

// page builds the layout data common to every screen and consumes the
// pending flash of the session.
func (a *app) page(r *http.Request, v domain.Variant, tab, title string) *pageData {
	other := domain.VariantMobile
	if v == domain.VariantMobile {
		other = domain.VariantDesktop
	}
	p := &pageData{
		Title:   title,
		Tab:     tab,
		Variant: v,
		Other:   other,
		Prefix:  "/" + string(v),
		CSRF:    csrfToken(r),
		Modules: a.Config.Modules,
		UI:      a.Config.UI,
		Version: a.Config.Version,
	}
	if sess := SessionFromContext(r.Context()); sess != nil {
		p.User = sess.View()
		p.Admin = sess.IsAdmin()
		if f, ok := a.flashes.Get(sess.ID); ok {
			a.flashes.Delete(sess.ID)
			p.Flash = &f
		}
	}
	return p
}

func (a *app) flash(r *http.Request, f Flash) {
	if sess := SessionFromContext(r.Context()); sess != nil {
		a.flashes.Set(sess.ID, f)
	}
}

// fail reports err on a form post: a backend logout goes to the login page,
// anything else is flashed and the browser is sent back.
func (a *app) fail(w http.ResponseWriter, r *http.Request, v domain.Variant, err error, prefix, back string) {
	if handleServiceError(err, a.Logger) {
		a.expired(w, r, v)
		return
	}
	a.flash(r, errorFlash(userMessage(err, prefix)))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// render writes a protected screen. A session logged out by a 401 from any
// backend call made while the page was built goes to the expired login
// instead.
func (a *app) render(w http.ResponseWriter, r *http.Request, status int, page string, p *pageData) {
	if sess := SessionFromContext(r.Context()); sess != nil && !sess.IsAuthenticated() {
		a.Logger.Info("session logged out while building page", zap.String("page", page))
		a.expired(w, r, p.Variant)
		return
	}
	a.Renderer.Render(w, status, page, p)
}

// expired sends a browser whose session was torn down back to login.
func (a *app) expired(w http.ResponseWriter, r *http.Request, v domain.Variant) {
	http.Redirect(w, r, loginPath(v)+"?expirada=1", http.StatusSeeOther)
}

func homeHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := a.defaultTab()
		if tab == "" {
			http.Error(w, "Nenhum módulo habilitado", http.StatusNotFound)
			return
		}
		http.Redirect(w, r, a.tabPath(v, tab), http.StatusFound)
	}
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "alugueis-admin", Status: "healthy", LastChecked: now},
		}
		if a.Health != nil {
			base := a.Config.RelativeOrigin()
			if a.API != nil && a.API.BaseURL() != "" {
				base = a.API.BaseURL()
			}
			services = append(services, a.Health.Check(r.Context(), "api", base, a.Config.Endpoints.Health))
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		status := http.StatusOK
		if overall == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{
			Status:   overall,
			Version:  a.Config.Version,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
