package domain

import "fmt"

// ============================================================
// Import batches & entity events
// ============================================================

// EntityKind names one of the backend collections.
type EntityKind string

const (
	KindOwners         EntityKind = "proprietarios"
	KindProperties     EntityKind = "imoveis"
	KindParticipations EntityKind = "participacoes"
	KindRentals        EntityKind = "alugueis"
)

// ImportKinds lists the collections that accept spreadsheet imports, in
// form order.
var ImportKinds = []EntityKind{KindOwners, KindProperties, KindParticipations, KindRentals}

// ParseEntityKind validates a path segment.
func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range ImportKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &ErrValidation{Field: "tipo", Message: fmt.Sprintf("tipo de importação desconhecido: %s", s)}
}

// Label returns the Portuguese plural used in user messages.
func (k EntityKind) Label() string {
	switch k {
	case KindOwners:
		return "proprietários"
	case KindProperties:
		return "imóveis"
	case KindParticipations:
		return "participações"
	case KindRentals:
		return "aluguéis"
	}
	return string(k)
}

// ImportSuccessText is the fallback message when the server sends none.
func (k EntityKind) ImportSuccessText() string {
	switch k {
	case KindOwners:
		return "Proprietários importados com sucesso."
	case KindProperties:
		return "Imóveis importados com sucesso."
	case KindParticipations:
		return "Participações importadas com sucesso."
	case KindRentals:
		return "Aluguéis importados com sucesso."
	}
	return "Importação concluída."
}

// ImportErrorPrefix is the fixed part of every import failure message.
func (k EntityKind) ImportErrorPrefix() string {
	return "Erro ao importar " + k.Label()
}

// ImportBatch is one uploaded file waiting to be sent. It is never stored.
type ImportBatch struct {
	ID       string
	Kind     EntityKind
	Filename string
	Content  []byte
}

// ImportResult is what the import screen shows after an upload.
type ImportResult struct {
	BatchID   string
	Kind      EntityKind
	Success   bool
	Message   string
	LocalRows int
	Sheets    []string
	Refreshed []RefreshResult
	// Details holds the extra fields of the backend answer, such as
	// counters or per-row errors.
	Details map[string]any
}

// EntityChanged is published after a collection was modified in bulk.
// Session is the browser whose lists must be reloaded.
type EntityChanged struct {
	Kind    EntityKind
	BatchID string
	Session *Session
}

// RefreshResult reports what one subscriber did with an EntityChanged event.
type RefreshResult struct {
	Subscriber string
	Kind       EntityKind
	Err        error
}
