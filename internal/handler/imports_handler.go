package handler

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/security"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxUploadBytes caps one spreadsheet upload.
const maxUploadBytes = 20 << 20

// importPage is the Data of the import screen. Result is set right after an
// upload.
type importPage struct {
	Result  *domain.ImportResult
	Summary template.HTML
	Details template.HTML
}

// ============================================================
// GET /{variant}/importacao
// ============================================================

func importPageHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := a.page(r, v, "importacao", "Importação")
		p.Data = importPage{}
		a.render(w, r, http.StatusOK, "importacao", p)
	}
}

// ============================================================
// POST /{variant}/importacao/{tipo}
// ============================================================

func importUploadHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /importacao/{tipo}")
		defer span.End()

		sess := SessionFromContext(ctx)
		kind, err := domain.ParseEntityKind(chi.URLParam(r, "tipo"))
		if err != nil {
			a.fail(w, r, v, err, "", a.tabPath(v, "importacao"))
			return
		}
		span.SetAttributes(attribute.String("tipo", string(kind)))

		release, ok := a.inflight.Begin(sess.ID + ":import:" + string(kind))
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: string(kind)}, "", a.tabPath(v, "importacao"))
			return
		}
		defer release()

		filename, content, err := readUpload(r)
		if err != nil {
			a.Logger.Warn("import: unreadable upload", zap.String("tipo", string(kind)), zap.Error(err))
			a.fail(w, r, v, &domain.ErrValidation{Field: "file", Message: "Não foi possível ler o arquivo enviado."}, "", a.tabPath(v, "importacao"))
			return
		}

		res, err := a.Imports.Import(ctx, sess, kind, filename, content)
		p := a.page(r, v, "importacao", "Importação")
		if err != nil {
			if handleServiceError(err, a.Logger) {
				a.expired(w, r, v)
				return
			}
			if res == nil {
				p.Flash = &Flash{Kind: "danger", Message: userMessage(err, kind.ImportErrorPrefix())}
				p.Data = importPage{}
				a.render(w, r, http.StatusBadRequest, "importacao", p)
				return
			}
		}

		status := http.StatusOK
		if res.Success {
			p.Flash = &Flash{Kind: "success", Message: res.Message}
		} else {
			p.Flash = &Flash{Kind: "danger", Message: res.Message}
			status = http.StatusBadGateway
		}
		p.Data = importPage{Result: res, Summary: importSummary(filename, res), Details: importDetails(res.Details)}
		a.render(w, r, status, "importacao", p)
	}
}

// readUpload returns the "file" part. A missing part is not an error; the
// import service reports it to the user.
func readUpload(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", nil, err
	}
	if len(content) > maxUploadBytes {
		return "", nil, errors.New("upload too large")
	}
	return header.Filename, content, nil
}

// importSummary describes what was read locally. The file name comes from
// the browser and is escaped.
func importSummary(filename string, res *domain.ImportResult) template.HTML {
	if len(res.Sheets) == 0 {
		return security.Interpolate(`Arquivo <strong>${file}</strong> enviado.`, map[string]any{"file": filename})
	}
	return security.Interpolate(
		`Arquivo <strong>${file}</strong>: ${rows} linha(s) de dados em ${sheets} planilha(s); ${refreshed} tela(s) atualizada(s).`,
		map[string]any{
			"file":      filename,
			"rows":      res.LocalRows,
			"sheets":    len(res.Sheets),
			"refreshed": len(res.Refreshed),
		},
	)
}

// importDetails lists the extra fields of the backend answer. Both keys
// and values come from the server and are escaped before the markup is
// built around them.
func importDetails(details map[string]any) template.HTML {
	if len(details) == 0 {
		return ""
	}
	clean := security.SanitizeMap(details)
	var b strings.Builder
	b.WriteString(`<ul class="small mb-1">`)
	for _, k := range sortedKeys(clean) {
		fmt.Fprintf(&b, "<li><strong>%s</strong>: %s</li>", security.Escape(k), detailText(clean[k]))
	}
	b.WriteString("</ul>")
	return template.HTML(b.String())
}

// detailText flattens an already sanitized value. Nested map keys are
// escaped here since SanitizeMap only escapes values.
func detailText(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = detailText(e)
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		keys := sortedKeys(t)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = security.Escape(k) + " " + detailText(t[k])
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
