package handler

import (
	"net/http"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
)

// ============================================================
// GET /{variant}/dashboard
// ============================================================

func dashboardHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /dashboard")
		defer span.End()

		p := a.page(r, v, "dashboard", "Painel")
		stats, err := a.Dashboard.Stats(ctx, SessionFromContext(ctx))
		if err != nil {
			if handleServiceError(err, a.Logger) {
				a.expired(w, r, v)
				return
			}
			p.Error = userMessage(err, "Erro ao carregar o painel")
			a.render(w, r, http.StatusBadGateway, "dashboard", p)
			return
		}
		p.Data = stats
		a.render(w, r, http.StatusOK, "dashboard", p)
	}
}
