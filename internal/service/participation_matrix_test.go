package service_test

import (
	"testing"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayPercent(t *testing.T) {
	assert.Equal(t, "25.00", service.DisplayPercent(0.25))
	assert.Equal(t, "25.00", service.DisplayPercent(25))
	assert.Equal(t, "1.00", service.DisplayPercent(1))
	assert.Equal(t, "0.00", service.DisplayPercent(0))
	assert.Equal(t, "33.33", service.DisplayPercent(0.3333))
	assert.Equal(t, "100.00", service.DisplayPercent(100))
}

func TestNormalizePercent_ExplicitUnit(t *testing.T) {
	assert.InDelta(t, 50.0, service.NormalizePercent(domain.Participation{Porcentagem: 0.5}), 1e-9)
	assert.InDelta(t, 0.5, service.NormalizePercent(domain.Participation{Porcentagem: 0.5, Unidade: domain.UnitPercent}), 1e-9)
	assert.InDelta(t, 100.0, service.NormalizePercent(domain.Participation{Porcentagem: 1, Unidade: domain.UnitFraction}), 1e-9)
	assert.InDelta(t, 40.0, service.NormalizePercent(domain.Participation{Porcentagem: 40, Unidade: "unknown"}), 1e-9)
}

func matrixFixture() ([]domain.Owner, []domain.Property) {
	owners := []domain.Owner{{ID: 1, Nome: "Ana"}, {ID: 2, Nome: "Bruno"}, {ID: 3, Nome: "Carla"}}
	properties := []domain.Property{{ID: 10, Nome: "Casa Centro"}, {ID: 20, Nome: "Sala 301"}}
	return owners, properties
}

func TestBuildMatrix_FractionRowTotal(t *testing.T) {
	owners, properties := matrixFixture()
	parts := []domain.Participation{
		{ImovelID: 10, ProprietarioID: 1, Porcentagem: 0.5},
		{ImovelID: 10, ProprietarioID: 2, Porcentagem: 0.3},
		{ImovelID: 10, ProprietarioID: 3, Porcentagem: 0.2},
	}

	m := service.BuildMatrix(owners, properties, parts)

	require.Len(t, m.Rows, 2)
	row := m.Rows[0]
	assert.Equal(t, "Casa Centro", row.Property.Nome)
	assert.Equal(t, "50.00 %", row.Cells[0].Text())
	assert.Equal(t, "30.00 %", row.Cells[1].Text())
	assert.Equal(t, "20.00 %", row.Cells[2].Text())
	assert.Equal(t, "100%", row.TotalText())
}

func TestBuildMatrix_MixedEncodingsAndPlaceholders(t *testing.T) {
	owners, properties := matrixFixture()
	parts := []domain.Participation{
		{ImovelID: 20, ProprietarioID: 1, Porcentagem: 60},
		{ImovelID: 20, ProprietarioID: 3, Porcentagem: 0.4},
	}

	m := service.BuildMatrix(owners, properties, parts)

	require.Len(t, m.Rows, 2)
	first := m.Rows[0]
	for _, c := range first.Cells {
		assert.Equal(t, "-", c.Text())
	}
	assert.Equal(t, "0%", first.TotalText())

	second := m.Rows[1]
	assert.Equal(t, "60.00 %", second.Cells[0].Text())
	assert.Equal(t, "-", second.Cells[1].Text())
	assert.Equal(t, "40.00 %", second.Cells[2].Text())
	assert.Equal(t, "100%", second.TotalText())
}

func TestBuildMatrix_FirstRecordWinsAndZeroIsShown(t *testing.T) {
	owners, properties := matrixFixture()
	parts := []domain.Participation{
		{ImovelID: 10, ProprietarioID: 1, Porcentagem: 0.25},
		{ImovelID: 10, ProprietarioID: 1, Porcentagem: 0.75},
		{ImovelID: 10, ProprietarioID: 2, Porcentagem: 0},
	}

	m := service.BuildMatrix(owners, properties, parts)

	assert.Equal(t, "25.00 %", m.Rows[0].Cells[0].Text())
	assert.Equal(t, "0.00 %", m.Rows[0].Cells[1].Text())
	assert.Equal(t, "25%", m.Rows[0].TotalText())
}

func TestBuildMatrix_RoundsTotalHalfUp(t *testing.T) {
	owners, properties := matrixFixture()
	parts := []domain.Participation{
		{ImovelID: 10, ProprietarioID: 1, Porcentagem: 33.25},
		{ImovelID: 10, ProprietarioID: 2, Porcentagem: 33.25},
	}

	m := service.BuildMatrix(owners, properties, parts)

	assert.Equal(t, "67%", m.Rows[0].TotalText())
}

func TestBuildMatrix_EmptyInputs(t *testing.T) {
	owners, properties := matrixFixture()
	parts := []domain.Participation{{ImovelID: 10, ProprietarioID: 1, Porcentagem: 1}}

	assert.True(t, service.BuildMatrix(owners, properties, nil).Empty())
	assert.True(t, service.BuildMatrix(nil, properties, parts).Empty())
	assert.True(t, service.BuildMatrix(owners, nil, parts).Empty())
	assert.Equal(t, "Nenhuma participação encontrada.", service.EmptyMatrixText)
}
