package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var reportTracer = otel.Tracer("service/reports")

// ReportFilter narrows the monthly summary. Zero fields mean "all".
type ReportFilter struct {
	Ano            int
	Mes            int
	ProprietarioID int
}

// ReportView is the reports screen: the year options and the filtered
// owner × month totals.
type ReportView struct {
	Years      []int
	Filter     ReportFilter
	Rows       []domain.MonthlySummary
	Total      decimal.Decimal
	Properties int
}

// Empty reports whether no row matched the filter.
func (v *ReportView) Empty() bool {
	return len(v.Rows) == 0
}

// ReportService reads the backend report endpoints.
type ReportService struct {
	api    port.APIClient
	path   string
	logger *zap.Logger
}

// NewReportService creates the reports module over the given path.
func NewReportService(api port.APIClient, path string, logger *zap.Logger) *ReportService {
	return &ReportService{
		api:    api,
		path:   withSlash(path),
		logger: logger.With(zap.String("module", "relatorios")),
	}
}

// Years returns the years with rent data, newest first.
func (s *ReportService) Years(ctx context.Context, sess *domain.Session) ([]int, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Years")
	defer span.End()

	var years []int
	if err := s.fetch(ctx, sess, s.path+"anos-disponiveis", &years); err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// Summary returns the monthly totals per owner matching f, newest period
// first and by owner name within a period.
func (s *ReportService) Summary(ctx context.Context, sess *domain.Session, f ReportFilter) ([]domain.MonthlySummary, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Summary")
	defer span.End()
	span.SetAttributes(
		attribute.Int("ano", f.Ano),
		attribute.Int("mes", f.Mes),
		attribute.Int("proprietario_id", f.ProprietarioID),
	)

	if err := ValidateReportFilter(f); err != nil {
		return nil, err
	}
	params := url.Values{}
	for key, v := range map[string]int{
		"ano":             f.Ano,
		"mes":             f.Mes,
		"proprietario_id": f.ProprietarioID,
	} {
		if v > 0 {
			params.Set(key, strconv.Itoa(v))
		}
	}
	path := s.path + "resumen-mensual"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var rows []domain.MonthlySummary
	if err := s.fetch(ctx, sess, path, &rows); err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Ano != b.Ano {
			return a.Ano > b.Ano
		}
		if a.Mes != b.Mes {
			return a.Mes > b.Mes
		}
		return a.NomeProprietario < b.NomeProprietario
	})
	return rows, nil
}

// Report loads the year options and the summary together. The totals are
// summed in decimal arithmetic.
func (s *ReportService) Report(ctx context.Context, sess *domain.Session, f ReportFilter) (*ReportView, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Report")
	defer span.End()

	view := &ReportView{Filter: f, Total: decimal.Zero}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		years, err := s.Years(gctx, sess)
		view.Years = years
		return err
	})
	g.Go(func() error {
		rows, err := s.Summary(gctx, sess, f)
		view.Rows = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, row := range view.Rows {
		view.Total = view.Total.Add(decimal.NewFromFloat(row.ValorTotal))
		view.Properties += row.QuantidadeImoveis
	}
	s.logger.Debug("report loaded", zap.Int("rows", len(view.Rows)), zap.String("total", view.Total.StringFixed(2)))
	return view, nil
}

// ValidateReportFilter rejects a month or year outside the accepted range.
func ValidateReportFilter(f ReportFilter) error {
	if f.Mes < 0 || f.Mes > 12 {
		return &domain.ErrValidation{Field: "mes", Message: "Mês inválido"}
	}
	if f.Ano != 0 && (f.Ano < MinYear || f.Ano > MaxYear) {
		return &domain.ErrValidation{Field: "ano", Message: fmt.Sprintf("Ano deve estar entre %d e %d", MinYear, MaxYear)}
	}
	if f.ProprietarioID < 0 {
		return &domain.ErrValidation{Field: "proprietario_id", Message: "Proprietário inválido"}
	}
	return nil
}

func (s *ReportService) fetch(ctx context.Context, sess *domain.Session, path string, dst any) error {
	env := s.api.Get(ctx, sess, path)
	if err := env.Err("relatorios"); err != nil {
		return err
	}
	if err := env.DecodeData(dst); err != nil {
		return &domain.ErrUnexpectedFormat{Endpoint: path}
	}
	return nil
}
