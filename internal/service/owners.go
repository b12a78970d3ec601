package service

import (
	"strings"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"go.uber.org/zap"
)

// OwnerService manages proprietários.
type OwnerService = Collection[domain.Owner]

// NewOwnerService creates the owners module over the given collection path.
func NewOwnerService(api port.APIClient, path string, ttl time.Duration, logger *zap.Logger) *OwnerService {
	return newCollection(domain.KindOwners, api, path, ttl, validateOwner, logger)
}

func validateOwner(o *domain.Owner) error {
	o.Nome = strings.TrimSpace(o.Nome)
	o.Sobrenome = strings.TrimSpace(o.Sobrenome)
	o.Email = strings.TrimSpace(o.Email)
	if err := requireFields([2]string{"nome", o.Nome}); err != nil {
		return err
	}
	if o.Email != "" && !strings.Contains(o.Email, "@") {
		return &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	}
	return nil
}
