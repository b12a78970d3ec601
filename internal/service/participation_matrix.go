package service

import (
	"math"
	"strconv"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
)

// EmptyMatrixText is shown when there is nothing to cross.
const EmptyMatrixText = "Nenhuma participação encontrada."

// MatrixCell is one property × owner share.
type MatrixCell struct {
	OwnerID int
	Present bool
	Percent float64 // already scaled to 0..100
}

// Text renders the cell as "25.00 %", or "-" when the pair has no record.
func (c MatrixCell) Text() string {
	if !c.Present {
		return "-"
	}
	return formatPercent(c.Percent) + " %"
}

// MatrixRow is one property line with its computed total.
type MatrixRow struct {
	Property domain.Property
	Cells    []MatrixCell
	Total    float64
}

// TotalText renders the row total as a rounded integer percentage.
func (r MatrixRow) TotalText() string {
	return strconv.FormatFloat(roundHalfUp(r.Total), 'f', 0, 64) + "%"
}

// Matrix is the dense property × owner table: one row per property and one
// column per owner, both in the order given.
type Matrix struct {
	Owners []domain.Owner
	Rows   []MatrixRow
}

// Empty reports whether the placeholder text must be shown instead.
func (m Matrix) Empty() bool {
	return len(m.Rows) == 0
}

// BuildMatrix crosses owners and properties with the sparse participation
// records. When a pair appears more than once the first record wins. Any
// empty input yields an empty matrix.
func BuildMatrix(owners []domain.Owner, properties []domain.Property, parts []domain.Participation) Matrix {
	if len(owners) == 0 || len(properties) == 0 || len(parts) == 0 {
		return Matrix{Owners: owners}
	}

	type pair struct{ property, owner int }
	index := make(map[pair]domain.Participation, len(parts))
	for _, p := range parts {
		k := pair{p.ImovelID, p.ProprietarioID}
		if _, seen := index[k]; !seen {
			index[k] = p
		}
	}

	rows := make([]MatrixRow, 0, len(properties))
	for _, prop := range properties {
		row := MatrixRow{Property: prop, Cells: make([]MatrixCell, 0, len(owners))}
		for _, o := range owners {
			cell := MatrixCell{OwnerID: o.ID}
			if p, ok := index[pair{prop.ID, o.ID}]; ok {
				cell.Present = true
				cell.Percent = NormalizePercent(p)
				row.Total += cell.Percent
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return Matrix{Owners: owners, Rows: rows}
}

// NormalizePercent scales a participation to 0..100. An explicit unit from
// the backend is honored; otherwise a value below 1 is read as a fraction.
func NormalizePercent(p domain.Participation) float64 {
	switch p.Unidade {
	case domain.UnitFraction:
		return p.Porcentagem * 100
	case domain.UnitPercent:
		return p.Porcentagem
	}
	return scalePercent(p.Porcentagem)
}

// DisplayPercent formats a raw share with two decimals:
// 0.25 and 25 both render "25.00".
func DisplayPercent(v float64) string {
	return formatPercent(scalePercent(v))
}

func scalePercent(v float64) float64 {
	if v < 1 {
		return v * 100
	}
	return v
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// roundHalfUp rounds .5 toward +Inf, the way browsers round totals.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
