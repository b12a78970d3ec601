package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/boddenberg/alugueis-admin-go/internal/config"
	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"go.uber.org/zap"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Pages every variant must be able to render.
var pageNames = []string{
	"login", "dashboard", "proprietarios", "imoveis",
	"participacoes", "alugueis", "relatorios", "importacao", "usuarios",
}

// pageData is what every layout receives. Data holds the screen payload.
type pageData struct {
	Title   string
	Tab     string
	Variant domain.Variant
	Other   domain.Variant
	Prefix  string
	User    domain.SessionView
	Admin   bool
	CSRF    string
	Flash   *Flash
	Error   string
	Modules config.Modules
	UI      config.UI
	Version string
	Data    any
}

// Renderer executes the page templates of both variants. A mobile page that
// failed to parse or fails to execute is rendered with the desktop set.
type Renderer struct {
	sets   map[domain.Variant]map[string]*template.Template
	logger *zap.Logger
}

// DefaultTemplates returns the embedded template tree.
func DefaultTemplates() fs.FS {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewRenderer parses "<variant>/layout.html" with every "pages/<name>.html"
// from fsys. Desktop pages are required; a broken mobile page is logged and
// left to fall back.
func NewRenderer(fsys fs.FS, logger *zap.Logger) (*Renderer, error) {
	r := &Renderer{
		sets:   make(map[domain.Variant]map[string]*template.Template),
		logger: logger,
	}
	for _, v := range []domain.Variant{domain.VariantDesktop, domain.VariantMobile} {
		r.sets[v] = make(map[string]*template.Template)
		for _, name := range pageNames {
			t, err := template.New("layout.html").Funcs(templateFuncs).
				ParseFS(fsys, string(v)+"/layout.html", "pages/"+name+".html")
			if err != nil {
				if v == domain.VariantDesktop {
					return nil, fmt.Errorf("parsing desktop page %s: %w", name, err)
				}
				logger.Warn("mobile template unavailable, desktop will be used",
					zap.String("page", name), zap.Error(err))
				continue
			}
			r.sets[v][name] = t
		}
	}
	return r, nil
}

// Render writes page with status. It buffers the output so a failing
// mobile template can still be replaced by the desktop one.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data *pageData) {
	var buf bytes.Buffer
	if err := r.execute(&buf, data.Variant, page, data); err != nil {
		if data.Variant != domain.VariantMobile {
			r.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
			http.Error(w, "Erro ao exibir a página", http.StatusInternalServerError)
			return
		}
		r.logger.Warn("mobile render failed, falling back to desktop", zap.String("page", page), zap.Error(err))
		buf.Reset()
		if err := r.execute(&buf, domain.VariantDesktop, page, data); err != nil {
			r.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
			http.Error(w, "Erro ao exibir a página", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (r *Renderer) execute(buf *bytes.Buffer, v domain.Variant, page string, data *pageData) error {
	t, ok := r.sets[v][page]
	if !ok {
		return fmt.Errorf("page %s not available for %s", page, v)
	}
	return t.Execute(buf, data)
}

var templateFuncs = template.FuncMap{
	"money":       formatMoney,
	"moneyf":      formatMoneyFloat,
	"number":      formatNumber,
	"monthName":   monthName,
	"checked":     isChecked,
	"importKinds": func() []domain.EntityKind { return domain.ImportKinds },
	"months":      func() []int { return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12} },
}
