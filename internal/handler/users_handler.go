package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

// userPage is the Data of the user management screen.
type userPage struct {
	Users []domain.User
	Roles []string
	Self  string
}

// ============================================================
// GET /{variant}/usuarios (admin only)
// ============================================================

func usersHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /usuarios")
		defer span.End()

		sess := SessionFromContext(ctx)
		p := a.page(r, v, "usuarios", "Usuários")
		data := userPage{Roles: domain.Roles, Self: sess.View().Username}

		users, err := a.Users.List(ctx, sess)
		if err != nil {
			if handleServiceError(err, a.Logger) {
				a.expired(w, r, v)
				return
			}
			status := http.StatusBadGateway
			var forbidden *domain.ErrForbidden
			if errors.As(err, &forbidden) {
				status = http.StatusForbidden
			}
			p.Error = userMessage(err, "Erro ao carregar usuários")
			p.Data = data
			a.render(w, r, status, "usuarios", p)
			return
		}
		span.SetAttributes(attribute.Int("users", len(users)))

		data.Users = users
		p.Data = data
		a.render(w, r, http.StatusOK, "usuarios", p)
	}
}

// ============================================================
// POST /{variant}/usuarios
// ============================================================

func userCreateHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /usuarios")
		defer span.End()

		sess := SessionFromContext(ctx)
		back := a.tabPath(v, "usuarios")
		req := &domain.NewUserRequest{
			Usuario:       r.FormValue("usuario"),
			Senha:         r.FormValue("senha"),
			TipoDeUsuario: r.FormValue("tipo_de_usuario"),
		}

		release, ok := a.inflight.Begin(sess.ID + ":create:usuarios")
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: "usuarios"}, "", back)
			return
		}
		defer release()

		if err := a.Users.Create(ctx, sess, req); err != nil {
			a.fail(w, r, v, err, "Erro ao cadastrar usuário", back)
			return
		}
		a.flash(r, successFlash("Usuário "+strings.TrimSpace(req.Usuario)+" cadastrado com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// ============================================================
// POST /{variant}/usuarios/{id}
// ============================================================

func userChangeHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /usuarios/{id}")
		defer span.End()

		sess := SessionFromContext(ctx)
		back := a.tabPath(v, "usuarios")
		id, err := pathID(chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, r, v, err, "Erro ao alterar usuário", back)
			return
		}
		span.SetAttributes(attribute.Int("id", id))

		release, ok := a.inflight.Begin(sess.ID + ":update:usuarios:" + strconv.Itoa(id))
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: "usuarios"}, "", back)
			return
		}
		defer release()

		change := domain.UserChange{
			NovaSenha:       r.FormValue("nova_senha"),
			NovoTipoUsuario: r.FormValue("novo_tipo_usuario"),
		}
		if err := a.Users.Change(ctx, sess, id, change); err != nil {
			a.fail(w, r, v, err, "Erro ao alterar usuário", back)
			return
		}
		a.flash(r, successFlash("Usuário alterado com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// ============================================================
// POST /{variant}/usuarios/{id}/excluir
// ============================================================

func userDeleteHandler(a *app, v domain.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /usuarios/{id}/excluir")
		defer span.End()

		sess := SessionFromContext(ctx)
		back := a.tabPath(v, "usuarios")
		id, err := pathID(chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, r, v, err, "Erro ao excluir usuário", back)
			return
		}

		release, ok := a.inflight.Begin(sess.ID + ":delete:usuarios:" + strconv.Itoa(id))
		if !ok {
			a.fail(w, r, v, &domain.ErrInFlight{Key: "usuarios"}, "", back)
			return
		}
		defer release()

		if err := a.Users.Delete(ctx, sess, id, r.FormValue("usuario")); err != nil {
			a.fail(w, r, v, err, "Erro ao excluir usuário", back)
			return
		}
		a.flash(r, successFlash("Usuário excluído com sucesso."))
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}
