package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
)

// participationPage is the Data of the participations screen.
type participationPage struct {
	View      *service.ParticipationView
	EmptyText string
}

// ============================================================
// GET /{variant}/participacoes?data=<data_registro>
// ============================================================

func participationsHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /participacoes")
		defer span.End()

		date := r.URL.Query().Get("data")
		span.SetAttributes(attribute.String("data_registro", date))

		p := a.page(r, v, string(domain.KindParticipations), "Participações")
		data := participationPage{EmptyText: service.EmptyMatrixText}

		view, err := a.Participations.Load(ctx, SessionFromContext(ctx), date)
		if err != nil {
			if handleServiceError(err, a.Logger) {
				a.expired(w, r, v)
				return
			}
			p.Error = userMessage(err, "Erro ao carregar participações")
			p.Data = data
			a.render(w, r, http.StatusBadGateway, string(domain.KindParticipations), p)
			return
		}

		data.View = view
		p.Data = data
		a.render(w, r, http.StatusOK, string(domain.KindParticipations), p)
	}
}

// ============================================================
// POST /{variant}/participacoes/nova-versao (admin only)
// ============================================================

// newVersionHandler reads data, imovel_id and one pct_<owner id> field per
// owner of the edited property.
func newVersionHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /participacoes/nova-versao")
		defer span.End()

		sess := SessionFromContext(ctx)
		date := r.FormValue("data")
		back := a.tabPath(v, string(domain.KindParticipations))
		if date != "" {
			back += "?data=" + url.QueryEscape(date)
		}

		if err := r.ParseForm(); err != nil {
			a.fail(w, r, v, &domain.ErrValidation{Message: "Formulário inválido"}, "", back)
			return
		}
		propertyID := formInt(r, "imovel_id")
		edited := make(map[int]float64)
		for key := range r.PostForm {
			raw, ok := strings.CutPrefix(key, "pct_")
			if !ok {
				continue
			}
			ownerID, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			pct, ok := formFloat(r, key)
			if !ok {
				pct = 0
			}
			edited[ownerID] = pct
		}
		span.SetAttributes(attribute.Int("imovel_id", propertyID), attribute.Int("owners", len(edited)))

		release, ok := a.inflight.Begin(sess.ID + ":nova-versao")
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: "nova-versao"}, "", back)
			return
		}
		defer release()

		if err := a.Participations.NewVersion(ctx, sess, date, propertyID, edited); err != nil {
			a.fail(w, r, v, err, "Erro ao criar nova versão", back)
			return
		}
		a.flash(r, successFlash("Nova versão de participações criada com sucesso."))
		// The new version is the newest date, which the screen selects by default.
		http.Redirect(w, r, a.tabPath(v, string(domain.KindParticipations)), http.StatusSeeOther)
	}
}
