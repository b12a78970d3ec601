package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var importTracer = otel.Tracer("service/imports")

// MissingFileText is shown when the form is posted without a file.
const MissingFileText = "Selecione um arquivo Excel para importar."

// ImportService sends spreadsheets to the backend import endpoints and
// announces the change to the modules that display the imported entity.
type ImportService struct {
	api       port.APIClient
	paths     map[domain.EntityKind]string
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewImportService creates the import module. paths maps each kind to its
// collection endpoint; the import endpoint is "<collection>importar/".
func NewImportService(api port.APIClient, paths map[domain.EntityKind]string, publisher port.EventPublisher, metrics *observability.Metrics, logger *zap.Logger) *ImportService {
	normalized := make(map[domain.EntityKind]string, len(paths))
	for k, p := range paths {
		normalized[k] = withSlash(p)
	}
	return &ImportService{
		api:       api,
		paths:     normalized,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With(zap.String("module", "importacao")),
	}
}

// Import checks the workbook locally, uploads it and publishes an
// EntityChanged event on success. A failed upload returns a result with
// Success false together with the underlying error.
func (s *ImportService) Import(ctx context.Context, sess *domain.Session, kind domain.EntityKind, filename string, content []byte) (*domain.ImportResult, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.Import")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)), attribute.String("filename", filename))

	path, ok := s.paths[kind]
	if !ok {
		return nil, &domain.ErrValidation{Field: "tipo", Message: fmt.Sprintf("tipo de importação desconhecido: %s", kind)}
	}
	if filename == "" || len(content) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: MissingFileText}
	}

	batch := domain.ImportBatch{ID: uuid.NewString(), Kind: kind, Filename: filepath.Base(filename), Content: content}
	result := &domain.ImportResult{BatchID: batch.ID, Kind: kind}

	sheets, rows, err := inspectWorkbook(batch)
	if err != nil {
		s.metrics.IncrImport(string(kind), "invalid_file")
		return nil, err
	}
	result.Sheets, result.LocalRows = sheets, rows

	env := s.api.Upload(ctx, sess, path+"importar/", "file", batch.Filename, bytes.NewReader(batch.Content))
	result.Details = importDetails(env)
	if !env.Success {
		result.Message = kind.ImportErrorPrefix()
		if env.Error != "" {
			result.Message += ": " + env.Error
		}
		s.metrics.IncrImport(string(kind), "error")
		s.logger.Warn("import failed",
			zap.String("batch_id", batch.ID),
			zap.String("kind", string(kind)),
			zap.Int("status", env.Status),
			zap.String("error", env.Error),
		)
		return result, env.Err(string(kind))
	}

	result.Success = true
	result.Message = env.Message(kind.ImportSuccessText())
	s.metrics.IncrImport(string(kind), "success")
	s.logger.Info("import completed",
		zap.String("batch_id", batch.ID),
		zap.String("kind", string(kind)),
		zap.String("filename", batch.Filename),
		zap.Int("local_rows", rows),
	)

	result.Refreshed = s.publisher.Publish(ctx, domain.EntityChanged{Kind: kind, BatchID: batch.ID, Session: sess})
	return result, nil
}

// importDetails returns the fields of an import answer beyond its status
// and message. A wrapped data object is flattened in.
func importDetails(env *domain.Envelope) map[string]any {
	var body map[string]any
	if len(env.Raw) == 0 || json.Unmarshal(env.Raw, &body) != nil {
		return nil
	}
	if data, ok := body["data"].(map[string]any); ok {
		for k, v := range data {
			body[k] = v
		}
	}
	for _, k := range []string{"success", "data", "mensagem", "message", "detail", "error"} {
		delete(body, k)
	}
	if len(body) == 0 {
		return nil
	}
	return body
}

// inspectWorkbook opens an .xlsx/.xlsm upload and counts its data rows
// (every non-empty sheet minus its header row). Legacy .xls files are
// passed through unchecked.
func inspectWorkbook(b domain.ImportBatch) ([]string, int, error) {
	if strings.EqualFold(filepath.Ext(b.Filename), ".xls") {
		return nil, 0, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(b.Content))
	if err != nil {
		return nil, 0, &domain.ErrValidation{Field: "file", Message: "O arquivo selecionado não é uma planilha Excel válida."}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, &domain.ErrValidation{Field: "file", Message: "A planilha não contém abas."}
	}

	total := 0
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, 0, &domain.ErrValidation{Field: "file", Message: fmt.Sprintf("Não foi possível ler a aba %q.", sheet)}
		}
		if len(rows) > 1 {
			total += len(rows) - 1
		}
	}
	return sheets, total, nil
}
