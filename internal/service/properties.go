package service

import (
	"strings"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"go.uber.org/zap"
)

// PropertyService manages imóveis.
type PropertyService = Collection[domain.Property]

// NewPropertyService creates the properties module over the given collection path.
func NewPropertyService(api port.APIClient, path string, ttl time.Duration, logger *zap.Logger) *PropertyService {
	return newCollection(domain.KindProperties, api, path, ttl, validateProperty, logger)
}

func validateProperty(p *domain.Property) error {
	p.Nome = strings.TrimSpace(p.Nome)
	p.Endereco = strings.TrimSpace(p.Endereco)
	if err := requireFields([2]string{"nome", p.Nome}, [2]string{"endereco", p.Endereco}); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"area_total", p.AreaTotal},
		{"area_construida", p.AreaConstruida},
		{"valor_cadastral", p.ValorCadastral},
		{"valor_mercado", p.ValorMercado},
		{"iptu_anual", p.IPTUAnual},
		{"condominio_mensal", p.CondominioMensal},
	} {
		if f.v != nil && *f.v < 0 {
			return &domain.ErrValidation{Field: f.name, Message: "Valor negativo no campo: " + f.name}
		}
	}
	return nil
}
