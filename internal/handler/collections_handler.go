package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

// collectionScreen describes one list/create/update/delete screen.
type collectionScreen[T any] struct {
	svc      *service.Collection[T]
	tab      string
	title    string
	parse    func(r *http.Request) *T
	singular string // "proprietário", used in alert texts
}

// collectionPage is the Data of a collection screen.
type collectionPage[T any] struct {
	Items   []T
	Editing *T
	EditID  int
}

func ownerScreen(svc *service.OwnerService) collectionScreen[domain.Owner] {
	return collectionScreen[domain.Owner]{
		svc:      svc,
		tab:      string(domain.KindOwners),
		title:    "Proprietários",
		parse:    ownerFromForm,
		singular: "proprietário",
	}
}

func propertyScreen(svc *service.PropertyService) collectionScreen[domain.Property] {
	return collectionScreen[domain.Property]{
		svc:      svc,
		tab:      string(domain.KindProperties),
		title:    "Imóveis",
		parse:    propertyFromForm,
		singular: "imóvel",
	}
}

// mountCollection registers:
//
//	GET  /{tab}               list (?editar=<id> opens the edit form)
//	POST /{tab}               create
//	POST /{tab}/{id}          update
//	POST /{tab}/{id}/excluir  delete
//
// Every mutation redirects back to the list, which is fetched again.
func mountCollection[T any](r chi.Router, a *app, v domain.Variant, s collectionScreen[T]) {
	r.Get("/"+s.tab, collectionListHandler(a, v, s))
	r.Post("/"+s.tab, collectionCreateHandler(a, v, s))
	r.Post("/"+s.tab+"/{id}", collectionUpdateHandler(a, v, s))
	r.Post("/"+s.tab+"/{id}/excluir", collectionDeleteHandler(a, v, s))
}

func collectionListHandler[T any](a *app, v domain.Variant, s collectionScreen[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /"+s.tab)
		defer span.End()

		sess := SessionFromContext(ctx)
		p := a.page(r, v, s.tab, s.title)
		data := collectionPage[T]{}

		items, err := s.svc.List(ctx, sess)
		if err != nil {
			if handleServiceError(err, a.Logger) {
				a.expired(w, r, v)
				return
			}
			p.Error = userMessage(err, "Erro ao carregar "+s.svc.Kind().Label())
			p.Data = data
			a.render(w, r, http.StatusBadGateway, s.tab, p)
			return
		}
		data.Items = items

		if raw := r.URL.Query().Get("editar"); raw != "" {
			item, id, err := editTarget(ctx, s, sess, raw)
			if err != nil {
				if handleServiceError(err, a.Logger) {
					a.expired(w, r, v)
					return
				}
				p.Error = userMessage(err, "Erro ao carregar "+s.singular)
			}
			data.Editing, data.EditID = item, id
		}

		p.Data = data
		a.render(w, r, http.StatusOK, s.tab, p)
	}
}

func editTarget[T any](ctx context.Context, s collectionScreen[T], sess *domain.Session, raw string) (*T, int, error) {
	id, err := pathID(raw)
	if err != nil {
		return nil, 0, err
	}
	item, err := s.svc.Get(ctx, sess, id)
	if err != nil {
		return nil, 0, err
	}
	return item, id, nil
}

func collectionCreateHandler[T any](a *app, v domain.Variant, s collectionScreen[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /"+s.tab)
		defer span.End()

		sess := SessionFromContext(ctx)
		back := a.tabPath(v, s.tab)
		release, ok := a.inflight.Begin(sess.ID + ":create:" + s.tab)
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: s.tab}, "", back)
			return
		}
		defer release()

		if _, err := s.svc.Create(ctx, sess, s.parse(r)); err != nil {
			a.fail(w, r, v, err, "Erro ao criar "+s.singular, back)
			return
		}
		a.flash(r, successFlash(capitalize(s.singular)+" cadastrado com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

func collectionUpdateHandler[T any](a *app, v domain.Variant, s collectionScreen[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /"+s.tab+"/{id}")
		defer span.End()

		sess := SessionFromContext(ctx)
		back := a.tabPath(v, s.tab)
		id, err := pathID(chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, r, v, err, "Erro ao atualizar "+s.singular, back)
			return
		}
		span.SetAttributes(attribute.Int("id", id))

		release, ok := a.inflight.Begin(sess.ID + ":update:" + s.tab)
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: s.tab}, "", back)
			return
		}
		defer release()

		if err := s.svc.Update(ctx, sess, id, s.parse(r)); err != nil {
			a.fail(w, r, v, err, "Erro ao atualizar "+s.singular, back)
			return
		}
		a.flash(r, successFlash(capitalize(s.singular)+" atualizado com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

func collectionDeleteHandler[T any](a *app, v domain.Variant, s collectionScreen[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /"+s.tab+"/{id}/excluir")
		defer span.End()

		sess := SessionFromContext(ctx)
		back := a.tabPath(v, s.tab)
		id, err := pathID(chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, r, v, err, "Erro ao excluir "+s.singular, back)
			return
		}

		release, ok := a.inflight.Begin(sess.ID + ":delete:" + s.tab + ":" + strconv.Itoa(id))
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: s.tab}, "", back)
			return
		}
		defer release()

		if err := s.svc.Delete(ctx, sess, id); err != nil {
			a.fail(w, r, v, err, "Erro ao excluir "+s.singular, back)
			return
		}
		a.flash(r, successFlash(capitalize(s.singular)+" excluído com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// ============================================================
// Form parsing
// ============================================================

func ownerFromForm(r *http.Request) *domain.Owner {
	return &domain.Owner{
		Nome:          r.FormValue("nome"),
		Sobrenome:     r.FormValue("sobrenome"),
		Documento:     strings.TrimSpace(r.FormValue("documento")),
		TipoDocumento: r.FormValue("tipo_documento"),
		Endereco:      strings.TrimSpace(r.FormValue("endereco")),
		Telefone:      strings.TrimSpace(r.FormValue("telefone")),
		Email:         r.FormValue("email"),
		Banco:         strings.TrimSpace(r.FormValue("banco")),
		Agencia:       strings.TrimSpace(r.FormValue("agencia")),
		Conta:         strings.TrimSpace(r.FormValue("conta")),
		TipoConta:     r.FormValue("tipo_conta"),
		Observacoes:   strings.TrimSpace(r.FormValue("observacoes")),
		Ativo:         formBoolPtr(r, "ativo"),
	}
}

func propertyFromForm(r *http.Request) *domain.Property {
	return &domain.Property{
		Nome:             r.FormValue("nome"),
		Endereco:         r.FormValue("endereco"),
		TipoImovel:       r.FormValue("tipo_imovel"),
		AreaTotal:        formFloatPtr(r, "area_total"),
		AreaConstruida:   formFloatPtr(r, "area_construida"),
		ValorCadastral:   formFloatPtr(r, "valor_cadastral"),
		ValorMercado:     formFloatPtr(r, "valor_mercado"),
		IPTUAnual:        formFloatPtr(r, "iptu_anual"),
		CondominioMensal: formFloatPtr(r, "condominio_mensal"),
		Ativo:            formBoolPtr(r, "ativo"),
		Observacoes:      strings.TrimSpace(r.FormValue("observacoes")),
	}
}
