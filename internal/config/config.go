package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
)

// TokenPolicy says where an authenticated credential lives.
type TokenPolicy string

const (
	// TokenMemory keeps the credential in server memory only. A restart
	// or a new browser session forces a new login.
	TokenMemory TokenPolicy = "memory"
	// TokenPersistent writes the credential to the session database and
	// gives the cookie a Max-Age, so it survives reloads and restarts.
	TokenPersistent TokenPolicy = "persistent"
)

// Modules holds the enabled feature module flags.
type Modules struct {
	Dashboard     bool `yaml:"dashboard"`
	Proprietarios bool `yaml:"proprietarios"`
	Imoveis       bool `yaml:"imoveis"`
	Participacoes bool `yaml:"participacoes"`
	Alugueis      bool `yaml:"alugueis"`
	Importacao    bool `yaml:"importacao"`
	Relatorios    bool `yaml:"relatorios"`
	Usuarios      bool `yaml:"usuarios"`
}

// Enabled reports whether the module named like its route segment is on.
func (m Modules) Enabled(name string) bool {
	switch name {
	case "dashboard":
		return m.Dashboard
	case string(domain.KindOwners):
		return m.Proprietarios
	case string(domain.KindProperties):
		return m.Imoveis
	case string(domain.KindParticipations):
		return m.Participacoes
	case string(domain.KindRentals):
		return m.Alugueis
	case "importacao":
		return m.Importacao
	case "relatorios":
		return m.Relatorios
	case "usuarios":
		return m.Usuarios
	}
	return false
}

// UI holds the timing and paging constants used by the templates.
type UI struct {
	AlertAutoHide time.Duration `yaml:"alert_auto_hide"`
	FadeIn        time.Duration `yaml:"fade_in"`
	FadeOut       time.Duration `yaml:"fade_out"`
	ItemsPerPage  int           `yaml:"items_per_page"`
	DefaultTab    string        `yaml:"default_tab"`
}

// Endpoints holds the backend collection paths, each with a trailing slash.
// User management lives under Auth.
type Endpoints struct {
	Auth          string `yaml:"auth"`
	Proprietarios string `yaml:"proprietarios"`
	Imoveis       string `yaml:"imoveis"`
	Participacoes string `yaml:"participacoes"`
	Alugueis      string `yaml:"alugueis"`
	Relatorios    string `yaml:"relatorios"`
	Health        string `yaml:"health"`
}

// Collection returns the endpoint for an entity kind.
func (e Endpoints) Collection(kind domain.EntityKind) string {
	switch kind {
	case domain.KindOwners:
		return e.Proprietarios
	case domain.KindProperties:
		return e.Imoveis
	case domain.KindParticipations:
		return e.Participacoes
	case domain.KindRentals:
		return e.Alugueis
	}
	return "/" + string(kind) + "/"
}

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults,
// optionally overlaid by a YAML file.
type Config struct {
	// Server
	Port     int
	LogLevel string
	Version  string

	// Backend API
	APIBaseURL     string // explicit base; skips hostname sniffing
	APIProxyOrigin string // origin used when the relative base is chosen
	PublicHost     string // hostname the browser uses to reach us
	PublicScheme   string // http or https
	APIPort        int
	HostOverrides  map[string]string
	Endpoints      Endpoints

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Sessions
	SessionTTL         time.Duration
	TokenPolicy        map[domain.Variant]TokenPolicy
	SessionDBPath      string
	SecureCookies      bool
	ViewportBreakpoint int

	// Observability
	OTLPEndpoint string

	// Front-end
	Modules Modules
	UI      UI
}

// RelativeOrigin is where requests go when the API base resolved to the
// relative base: the reverse proxy in front of this server.
func (c *Config) RelativeOrigin() string {
	if c.APIProxyOrigin != "" {
		return c.APIProxyOrigin
	}
	return c.PublicScheme + "://" + c.PublicHost
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Version:  getEnv("APP_VERSION", "2.1.0"),

		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		APIProxyOrigin: strings.TrimRight(getEnv("API_PROXY_ORIGIN", ""), "/"),
		PublicHost:     getEnv("PUBLIC_HOST", "localhost"),
		PublicScheme:   getEnv("PUBLIC_SCHEME", "http"),
		APIPort:        getEnvInt("API_PORT", 8000),
		HostOverrides: map[string]string{
			"zeus.kronos.cloudns.ph": "http://zeus.kronos.cloudns.ph:8000",
		},
		Endpoints: Endpoints{
			Auth:          getEnv("API_AUTH_PATH", "/api/auth/"),
			Proprietarios: getEnv("API_PROPRIETARIOS_PATH", "/api/proprietarios/"),
			Imoveis:       getEnv("API_IMOVEIS_PATH", "/api/imoveis/"),
			Participacoes: getEnv("API_PARTICIPACOES_PATH", "/api/participacoes/"),
			Alugueis:      getEnv("API_ALUGUEIS_PATH", "/api/alugueis/"),
			Relatorios:    getEnv("API_RELATORIOS_PATH", "/api/reportes/"),
			Health:        getEnv("API_HEALTH_PATH", "/api/health"),
		},

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		SessionTTL: getEnvDuration("SESSION_TTL", 8*time.Hour),
		TokenPolicy: map[domain.Variant]TokenPolicy{
			domain.VariantDesktop: parseTokenPolicy(getEnv("DESKTOP_TOKEN_POLICY", string(TokenMemory))),
			domain.VariantMobile:  parseTokenPolicy(getEnv("MOBILE_TOKEN_POLICY", string(TokenPersistent))),
		},
		SessionDBPath:      getEnv("SESSION_DB_PATH", "data/sessions.db"),
		SecureCookies:      getEnvBool("SECURE_COOKIES", false),
		ViewportBreakpoint: getEnvInt("VIEWPORT_BREAKPOINT", 768),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		Modules: Modules{
			Dashboard:     getEnvBool("MODULE_DASHBOARD", true),
			Proprietarios: getEnvBool("MODULE_PROPRIETARIOS", true),
			Imoveis:       getEnvBool("MODULE_IMOVEIS", true),
			Participacoes: getEnvBool("MODULE_PARTICIPACOES", true),
			Alugueis:      getEnvBool("MODULE_ALUGUEIS", true),
			Importacao:    getEnvBool("MODULE_IMPORTACAO", true),
			Relatorios:    getEnvBool("MODULE_RELATORIOS", true),
			Usuarios:      getEnvBool("MODULE_USUARIOS", true),
		},
		UI: UI{
			AlertAutoHide: getEnvDuration("UI_ALERT_AUTO_HIDE", 5*time.Second),
			FadeIn:        getEnvDuration("UI_FADE_IN", 300*time.Millisecond),
			FadeOut:       getEnvDuration("UI_FADE_OUT", 200*time.Millisecond),
			ItemsPerPage:  getEnvInt("UI_ITEMS_PER_PAGE", 10),
			DefaultTab:    getEnv("UI_DEFAULT_TAB", "dashboard"),
		},
	}
}

// PolicyFor returns the token policy of a variant, defaulting to memory.
func (c *Config) PolicyFor(v domain.Variant) TokenPolicy {
	if p, ok := c.TokenPolicy[v]; ok {
		return p
	}
	return TokenMemory
}

func parseTokenPolicy(s string) TokenPolicy {
	if TokenPolicy(strings.ToLower(s)) == TokenPersistent {
		return TokenPersistent
	}
	return TokenMemory
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
