package handler

import (
	"net/http"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
)

// reportPage is the Data of the reports screen.
type reportPage struct {
	View   *service.ReportView
	Filter service.ReportFilter
	Owners []domain.Owner
}

// ============================================================
// GET /{variant}/relatorios?ano=&mes=&proprietario_id=
// ============================================================

func reportsHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /relatorios")
		defer span.End()

		sess := SessionFromContext(ctx)
		filter := service.ReportFilter{
			Ano:            formInt(r, "ano"),
			Mes:            formInt(r, "mes"),
			ProprietarioID: formInt(r, "proprietario_id"),
		}
		span.SetAttributes(attribute.Int("ano", filter.Ano), attribute.Int("mes", filter.Mes))

		p := a.page(r, v, "relatorios", "Relatórios")
		data := reportPage{Filter: filter}

		// Owner options only feed the filter; without them the select
		// offers "Todos" alone.
		if a.Owners != nil {
			owners, err := a.Owners.List(ctx, sess)
			if err != nil {
				if err := secondary(a, "reports: owner options failed", err); err != nil {
					handleServiceError(err, a.Logger)
					a.expired(w, r, v)
					return
				}
			}
			data.Owners = owners
		}

		view, err := a.Reports.Report(ctx, sess, filter)
		if err != nil {
			if handleServiceError(err, a.Logger) {
				a.expired(w, r, v)
				return
			}
			p.Error = userMessage(err, "Erro ao carregar relatório")
			p.Data = data
			a.render(w, r, http.StatusBadGateway, "relatorios", p)
			return
		}

		data.View = view
		p.Data = data
		a.render(w, r, http.StatusOK, "relatorios", p)
	}
}
