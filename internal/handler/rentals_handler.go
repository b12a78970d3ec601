package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// rentalPage is the Data of the rentals screen. Editing is set by
// ?editar=<id>.
type rentalPage struct {
	View       *service.RentalView
	Rentals    []domain.Rental
	Owners     []domain.Owner
	Properties []domain.Property
	Editing    *domain.Rental
	AllMonths  string
	MinYear    int
	MaxYear    int
}

// ============================================================
// GET /{variant}/alugueis?ano=<ano>&mes=<mes|todos>
// ============================================================

func rentalsHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /alugueis")
		defer span.End()

		sess := SessionFromContext(ctx)
		q := service.RentalQuery{
			Ano: formInt(r, "ano"),
			Mes: r.URL.Query().Get("mes"),
		}
		span.SetAttributes(attribute.Int("ano", q.Ano), attribute.String("mes", q.Mes))

		p := a.page(r, v, string(domain.KindRentals), "Aluguéis")
		data := rentalPage{AllMonths: service.AllMonths, MinYear: service.MinYear, MaxYear: service.MaxYear}

		view, err := a.Rentals.Overview(ctx, sess, q)
		if err != nil {
			if handleServiceError(err, a.Logger) {
				a.expired(w, r, v)
				return
			}
			p.Error = userMessage(err, "Erro ao carregar aluguéis")
			p.Data = data
			a.render(w, r, http.StatusBadGateway, string(domain.KindRentals), p)
			return
		}
		data.View = view

		// The record list and the form options are secondary: a failure
		// there is logged and leaves the distribution on screen. A rejected
		// token is not secondary.
		g, gctx := errgroup.WithContext(ctx)
		if view.Query.Ano != 0 {
			g.Go(func() error {
				filter := service.RentalFilter{Ano: view.Query.Ano}
				if m, err := strconv.Atoi(view.Query.Mes); err == nil {
					filter.Mes = m
				}
				rentals, err := a.Rentals.List(gctx, sess, filter)
				if err != nil {
					return secondary(a, "rentals: list failed", err)
				}
				data.Rentals = rentals
				return nil
			})
		}
		if raw := r.URL.Query().Get("editar"); raw != "" {
			g.Go(func() error {
				id, err := pathID(raw)
				if err == nil {
					data.Editing, err = a.Rentals.Get(gctx, sess, id)
				}
				if err != nil {
					if service.IsUnauthorized(err) {
						return err
					}
					p.Error = userMessage(err, "Erro ao carregar aluguel")
				}
				return nil
			})
		}
		if a.Owners != nil {
			g.Go(func() error {
				owners, err := a.Owners.List(gctx, sess)
				if err != nil {
					return secondary(a, "rentals: owner options failed", err)
				}
				data.Owners = owners
				return nil
			})
		}
		if a.Properties != nil {
			g.Go(func() error {
				properties, err := a.Properties.List(gctx, sess)
				if err != nil {
					return secondary(a, "rentals: property options failed", err)
				}
				data.Properties = properties
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			handleServiceError(err, a.Logger)
			a.expired(w, r, v)
			return
		}

		p.Data = data
		a.render(w, r, http.StatusOK, string(domain.KindRentals), p)
	}
}

// secondary logs a failed side fetch of a screen and swallows it, except
// for a rejected token, which is returned so the screen can log out.
func secondary(a *app, msg string, err error) error {
	if service.IsUnauthorized(err) {
		return err
	}
	a.Logger.Warn(msg, zap.Error(err))
	return nil
}

// ============================================================
// POST /{variant}/alugueis
// ============================================================

func rentalCreateHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /alugueis")
		defer span.End()

		sess := SessionFromContext(ctx)
		rental := rentalFromForm(r)
		back := rentalsBack(a, v, rental.Ano, strconv.Itoa(rental.Mes))

		release, ok := a.inflight.Begin(sess.ID + ":create:alugueis")
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: "alugueis"}, "", back)
			return
		}
		defer release()

		if err := a.Rentals.Create(ctx, sess, rental); err != nil {
			a.fail(w, r, v, err, "Erro ao criar aluguel", back)
			return
		}
		a.flash(r, successFlash("Aluguel cadastrado com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// ============================================================
// POST /{variant}/alugueis/{id}
// ============================================================

func rentalUpdateHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /alugueis/{id}")
		defer span.End()

		sess := SessionFromContext(ctx)
		rental := rentalFromForm(r)
		back := rentalsBack(a, v, rental.Ano, strconv.Itoa(rental.Mes))
		id, err := pathID(chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, r, v, err, "Erro ao atualizar aluguel", back)
			return
		}
		span.SetAttributes(attribute.Int("id", id))

		release, ok := a.inflight.Begin(sess.ID + ":update:alugueis")
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: "alugueis"}, "", back)
			return
		}
		defer release()

		if err := a.Rentals.Update(ctx, sess, id, rental); err != nil {
			a.fail(w, r, v, err, "Erro ao atualizar aluguel", back)
			return
		}
		a.flash(r, successFlash("Aluguel atualizado com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// ============================================================
// POST /{variant}/alugueis/{id}/excluir
// ============================================================

func rentalDeleteHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /alugueis/{id}/excluir")
		defer span.End()

		sess := SessionFromContext(ctx)
		back := rentalsBack(a, v, formInt(r, "ano"), r.FormValue("mes"))
		id, err := pathID(chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, r, v, err, "Erro ao excluir aluguel", back)
			return
		}

		release, ok := a.inflight.Begin(sess.ID + ":delete:alugueis:" + strconv.Itoa(id))
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: "alugueis"}, "", back)
			return
		}
		defer release()

		if err := a.Rentals.Delete(ctx, sess, id); err != nil {
			a.fail(w, r, v, err, "Erro ao excluir aluguel", back)
			return
		}
		a.flash(r, successFlash("Aluguel excluído com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

func rentalsBack(a *app, v domain.Variant, ano int, mes string) string {
	back := a.tabPath(v, string(domain.KindRentals))
	if ano == 0 {
		return back
	}
	back += "?ano=" + strconv.Itoa(ano)
	if mes != "" && mes != "0" {
		back += "&mes=" + url.QueryEscape(mes)
	}
	return back
}

func rentalFromForm(r *http.Request) *domain.Rental {
	valor, _ := formFloat(r, "valor_aluguel_proprietario")
	taxa, _ := formFloat(r, "taxa_administracao_total")
	return &domain.Rental{
		ImovelID:                 formInt(r, "imovel_id"),
		ProprietarioID:           formInt(r, "proprietario_id"),
		Mes:                      formInt(r, "mes"),
		Ano:                      formInt(r, "ano"),
		ValorAluguelProprietario: valor,
		TaxaAdministracaoTotal:   taxa,
		Observacoes:              r.FormValue("observacoes"),
	}
}
