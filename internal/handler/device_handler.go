package handler

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"text/template"

	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ViewportCookie is written by the page script with window.innerWidth.
const ViewportCookie = "viewport_width"

// ============================================================
// Device routing: GET / and GET /index.html
// ============================================================

func rootHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /")
		defer span.End()

		width := viewportWidth(r)
		v, reason := service.ChooseInterface(r.UserAgent(), width, a.Config.ViewportBreakpoint, r.URL.Query().Get("interface"))
		span.SetAttributes(
			attribute.String("interface", string(v)),
			attribute.String("reason", reason),
			attribute.Int("viewport_width", width),
		)
		a.Metrics.IncrRouting(string(v), reason)
		a.Logger.Debug("interface chosen",
			zap.String("interface", string(v)),
			zap.String("reason", reason),
			zap.Int("viewport_width", width),
		)

		w.Header().Set("Accept-CH", "Sec-CH-Viewport-Width, Viewport-Width")
		w.Header().Set("Vary", "User-Agent, Sec-CH-Viewport-Width, Viewport-Width, Cookie")
		http.Redirect(w, r, "/"+string(v)+"/", http.StatusFound)
	}
}

// viewportWidth reads the client hint headers, then the cookie. 0 means
// unknown.
func viewportWidth(r *http.Request) int {
	for _, h := range []string{"Sec-CH-Viewport-Width", "Viewport-Width"} {
		if n := positiveInt(r.Header.Get(h)); n > 0 {
			return n
		}
	}
	if c, err := r.Cookie(ViewportCookie); err == nil {
		return positiveInt(c.Value)
	}
	return 0
}

func positiveInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ============================================================
// Static assets
// ============================================================

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset URLs carry ?v=<version>, so a release changes every URL.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		files.ServeHTTP(w, r)
	})
}

// staticAssets are precached by the mobile service worker.
var staticAssets = []string{
	"/static/app.css",
	"/static/app.js",
	"/static/mobile.css",
	"/static/icon.svg",
}

// ============================================================
// Service worker: GET /mobile/sw.js
// ============================================================

var swTemplate = template.Must(template.ParseFS(templateFS, "templates/sw.js.tmpl"))

// CacheName is the service worker cache of a release. Changing the version
// renames the cache, and the worker deletes every other name on activate.
func CacheName(version string) string {
	return "alquileres-mobile-v" + version
}

func serviceWorkerHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets := make([]string, 0, len(staticAssets)+1)
		assets = append(assets, "/mobile/manifest.webmanifest")
		for _, s := range staticAssets {
			assets = append(assets, s+"?v="+a.Config.Version)
		}

		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Service-Worker-Allowed", "/mobile/")
		err := swTemplate.Execute(w, map[string]any{
			"CacheName": CacheName(a.Config.Version),
			"Assets":    assets,
		})
		if err != nil {
			a.Logger.Error("failed to render service worker", zap.Error(err))
		}
	}
}

// ============================================================
// Web app manifest: GET /mobile/manifest.webmanifest
// ============================================================

type manifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

type webManifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Lang            string         `json:"lang"`
	Icons           []manifestIcon `json:"icons"`
}

func manifestHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		m := webManifest{
			Name:            "Sistema de Aluguéis",
			ShortName:       "Aluguéis",
			StartURL:        "/mobile/",
			Scope:           "/mobile/",
			Display:         "standalone",
			BackgroundColor: "#ffffff",
			ThemeColor:      "#0d6efd",
			Lang:            "pt-BR",
			Icons: []manifestIcon{
				{Src: "/static/icon.svg?v=" + a.Config.Version, Sizes: "any", Type: "image/svg+xml"},
			},
		}
		w.Header().Set("Content-Type", "application/manifest+json")
		if err := json.NewEncoder(w).Encode(m); err != nil {
			a.Logger.Error("failed to write manifest", zap.Error(err))
		}
	}
}
