package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var userTracer = otel.Tracer("service/users")

// Account rules enforced before a request is sent.
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// UserService manages backend accounts. Every operation is admin only.
type UserService struct {
	api    port.APIClient
	path   string
	logger *zap.Logger
}

// NewUserService creates the user management module over the auth path.
func NewUserService(api port.APIClient, authPath string, logger *zap.Logger) *UserService {
	return &UserService{
		api:    api,
		path:   withSlash(authPath),
		logger: logger.With(zap.String("module", "usuarios")),
	}
}

// List returns every account.
func (s *UserService) List(ctx context.Context, sess *domain.Session) ([]domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.List")
	defer span.End()

	if err := requireAdmin(sess, "usuarios"); err != nil {
		return nil, err
	}
	var users []domain.User
	if err := fetchInto(ctx, s.api, sess, s.path+"usuarios", "usuarios", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Create validates and registers a new account.
func (s *UserService) Create(ctx context.Context, sess *domain.Session, req *domain.NewUserRequest) error {
	ctx, span := userTracer.Start(ctx, "UserService.Create")
	defer span.End()

	if err := requireAdmin(sess, "cadastrar-usuario"); err != nil {
		return err
	}
	req.Usuario = strings.TrimSpace(req.Usuario)
	if err := ValidateNewUser(req); err != nil {
		return err
	}
	env := s.api.Post(ctx, sess, s.path+"cadastrar-usuario", req)
	if err := env.Err("usuarios"); err != nil {
		return err
	}
	s.logger.Info("user created", zap.String("usuario", req.Usuario), zap.String("tipo", req.TipoDeUsuario))
	return nil
}

// Change sets a new password or role on an account.
func (s *UserService) Change(ctx context.Context, sess *domain.Session, id int, ch domain.UserChange) error {
	ctx, span := userTracer.Start(ctx, "UserService.Change")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	if err := requireAdmin(sess, "alterar-usuario"); err != nil {
		return err
	}
	if id <= 0 {
		return &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	if err := ValidateUserChange(ch); err != nil {
		return err
	}
	env := s.api.Put(ctx, sess, s.path+"alterar-usuario/"+strconv.Itoa(id), ch)
	if err := env.Err("usuarios"); err != nil {
		return err
	}
	s.logger.Info("user changed",
		zap.Int("id", id),
		zap.Bool("senha", ch.NovaSenha != ""),
		zap.String("tipo", ch.NovoTipoUsuario),
	)
	return nil
}

// Delete removes an account. An admin cannot remove their own.
func (s *UserService) Delete(ctx context.Context, sess *domain.Session, id int, username string) error {
	ctx, span := userTracer.Start(ctx, "UserService.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	if err := requireAdmin(sess, "excluir-usuario"); err != nil {
		return err
	}
	if id <= 0 {
		return &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	if username != "" && strings.EqualFold(username, sess.View().Username) {
		return &domain.ErrValidation{Field: "id", Message: "Você não pode excluir seu próprio usuário"}
	}
	env := s.api.Delete(ctx, sess, s.path+"usuario/"+strconv.Itoa(id))
	if err := env.Err("usuarios"); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Int("id", id))
	return nil
}

// ValidateNewUser checks the account fields the backend would reject.
func ValidateNewUser(req *domain.NewUserRequest) error {
	if len([]rune(req.Usuario)) < MinUsernameLength {
		return &domain.ErrValidation{Field: "usuario", Message: "Usuário deve ter pelo menos 3 caracteres"}
	}
	if len([]rune(req.Senha)) < MinPasswordLength {
		return &domain.ErrValidation{Field: "senha", Message: "Senha deve ter pelo menos 6 caracteres"}
	}
	if !validRole(req.TipoDeUsuario) {
		return &domain.ErrValidation{Field: "tipo_de_usuario", Message: "Tipo de usuário inválido"}
	}
	return nil
}

// ValidateUserChange requires at least one field and checks each one set.
func ValidateUserChange(ch domain.UserChange) error {
	if ch.NovaSenha == "" && ch.NovoTipoUsuario == "" {
		return &domain.ErrValidation{Field: "nova_senha", Message: "Informe a nova senha ou o novo tipo de usuário"}
	}
	if ch.NovaSenha != "" && len([]rune(ch.NovaSenha)) < MinPasswordLength {
		return &domain.ErrValidation{Field: "nova_senha", Message: "Senha deve ter pelo menos 6 caracteres"}
	}
	if ch.NovoTipoUsuario != "" && !validRole(ch.NovoTipoUsuario) {
		return &domain.ErrValidation{Field: "novo_tipo_usuario", Message: "Tipo de usuário inválido"}
	}
	return nil
}

func validRole(role string) bool {
	for _, r := range domain.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func requireAdmin(sess *domain.Session, action string) error {
	if !sess.IsAdmin() {
		return &domain.ErrForbidden{Action: action, Message: "Apenas administradores podem gerenciar usuários."}
	}
	return nil
}
