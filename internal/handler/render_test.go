package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTemplates(mobileLayout string) fstest.MapFS {
	fsys := fstest.MapFS{
		"desktop/layout.html": {Data: []byte(`<html data-variant="desktop">{{template "content" .}}</html>`)},
		"mobile/layout.html":  {Data: []byte(mobileLayout)},
	}
	for _, name := range pageNames {
		fsys["pages/"+name+".html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}<h1>{{.Title}}</h1>{{end}}`)}
	}
	return fsys
}

func TestRenderer_UsesVariantLayout(t *testing.T) {
	r, err := NewRenderer(testTemplates(`<html data-variant="mobile">{{template "content" .}}</html>`), zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "login", &pageData{Title: "Entrar", Variant: domain.VariantMobile})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-variant="mobile"`)
	assert.Contains(t, rec.Body.String(), "<h1>Entrar</h1>")
}

func TestRenderer_BrokenMobileLayoutFallsBackToDesktop(t *testing.T) {
	r, err := NewRenderer(testTemplates(`<html>{{template "content" .}`), zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "dashboard", &pageData{Title: "Painel", Variant: domain.VariantMobile})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-variant="desktop"`)
}

func TestRenderer_MobileExecutionErrorFallsBackToDesktop(t *testing.T) {
	// Parses, but fails at execution time on a missing method.
	r, err := NewRenderer(testTemplates(`<html>{{.Missing}}{{template "content" .}}</html>`), zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "dashboard", &pageData{Title: "Painel", Variant: domain.VariantMobile})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-variant="desktop"`)
}

func TestRenderer_BrokenDesktopLayoutIsFatal(t *testing.T) {
	fsys := testTemplates(`{{template "content" .}}`)
	fsys["desktop/layout.html"] = &fstest.MapFile{Data: []byte(`{{if}}`)}

	_, err := NewRenderer(fsys, zap.NewNop())
	assert.Error(t, err)
}

func TestDefaultTemplates_ParseForBothVariants(t *testing.T) {
	r, err := NewRenderer(DefaultTemplates(), zap.NewNop())
	require.NoError(t, err)

	for _, v := range []domain.Variant{domain.VariantDesktop, domain.VariantMobile} {
		for _, name := range pageNames {
			_, ok := r.sets[v][name]
			assert.True(t, ok, "%s/%s", v, name)
		}
	}
}
