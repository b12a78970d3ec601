package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var rentalTracer = otel.Tracer("service/rentals")

// AllMonths selects the whole-year distribution.
const AllMonths = "todos"

// Accepted rental periods.
const (
	MinYear = 2000
	MaxYear = 2050
)

// RentalQuery is the period picked on the rentals screen. Mes is a month
// number or AllMonths.
type RentalQuery struct {
	Ano int
	Mes string
}

// DistributionLine is one owner row with values in column order.
type DistributionLine struct {
	OwnerID   int
	OwnerName string
	Values    []decimal.Decimal
	Total     decimal.Decimal
}

// DistributionView is the owner × property rent matrix with totals.
type DistributionView struct {
	Query        RentalQuery
	Columns      []domain.DistributionNamed
	Lines        []DistributionLine
	ColumnTotals []decimal.Decimal
	GrandTotal   decimal.Decimal
}

// Empty reports whether no rent was recorded for the period.
func (d *DistributionView) Empty() bool {
	return len(d.Lines) == 0
}

// RentalView is everything the rentals screen shows.
type RentalView struct {
	Years        []int
	Months       []int
	Query        RentalQuery
	Distribution *DistributionView
}

// RentalFilter narrows /alugueis/listar. Zero fields are not sent.
type RentalFilter struct {
	Ano            int
	Mes            int
	ImovelID       int
	ProprietarioID int
}

// RentalService reads rent distributions and manages rent records.
type RentalService struct {
	api    port.APIClient
	path   string
	loaded *snapshots[*RentalView]
	logger *zap.Logger
}

// NewRentalService creates the rentals module over the given collection path.
func NewRentalService(api port.APIClient, path string, ttl time.Duration, logger *zap.Logger) *RentalService {
	return &RentalService{
		api:    api,
		path:   withSlash(path),
		loaded: newSnapshots[*RentalView](ttl),
		logger: logger.With(zap.String("module", string(domain.KindRentals))),
	}
}

// ============================================================
// Periods
// ============================================================

// Years returns the years that have rent records, newest first.
func (s *RentalService) Years(ctx context.Context, sess *domain.Session) ([]int, error) {
	ctx, span := rentalTracer.Start(ctx, "RentalService.Years")
	defer span.End()

	env := s.api.Get(ctx, sess, s.path+"anos-disponiveis/")
	if err := env.Err(string(domain.KindRentals)); err != nil {
		return nil, err
	}
	var years domain.AvailableYears
	if err := env.DecodeData(&years); err != nil {
		return nil, &domain.ErrUnexpectedFormat{Endpoint: "alugueis/anos-disponiveis"}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years.Anos)))
	return years.Anos, nil
}

// LastPeriod returns the most recent year/month with data. ok is false
// when the backend has no rent at all.
func (s *RentalService) LastPeriod(ctx context.Context, sess *domain.Session) (domain.Period, bool, error) {
	ctx, span := rentalTracer.Start(ctx, "RentalService.LastPeriod")
	defer span.End()

	env := s.api.Get(ctx, sess, s.path+"ultimo-periodo/")
	if err := env.Err(string(domain.KindRentals)); err != nil {
		return domain.Period{}, false, err
	}
	var p struct {
		Ano *int `json:"ano"`
		Mes *int `json:"mes"`
	}
	if err := env.DecodeData(&p); err != nil || p.Ano == nil || p.Mes == nil {
		return domain.Period{}, false, nil
	}
	return domain.Period{Ano: *p.Ano, Mes: *p.Mes}, true, nil
}

// Months returns the months offered for a year. Backends without the
// months endpoint get the full calendar; a rejected token is an error.
func (s *RentalService) Months(ctx context.Context, sess *domain.Session, year int) ([]int, error) {
	env := s.api.Get(ctx, sess, s.path+"meses/"+strconv.Itoa(year))
	if env.Unauthorized() {
		return nil, env.Err(string(domain.KindRentals))
	}
	var months []int
	if env.Success && env.DecodeData(&months) == nil && len(months) > 0 {
		valid := months[:0]
		for _, m := range months {
			if m >= 1 && m <= 12 {
				valid = append(valid, m)
			}
		}
		sort.Ints(valid)
		if len(valid) > 0 {
			return valid, nil
		}
	}
	all := make([]int, 12)
	for i := range all {
		all[i] = i + 1
	}
	return all, nil
}

// ============================================================
// Overview: the rentals screen
// ============================================================

// Overview resolves the period to show and loads its distribution.
// Without an explicit choice the latest year is used, with the month of
// the last recorded period, or the whole year when there is none. A view
// reloaded by an import is returned without a new fetch when it matches q.
func (s *RentalService) Overview(ctx context.Context, sess *domain.Session, q RentalQuery) (*RentalView, error) {
	ctx, span := rentalTracer.Start(ctx, "RentalService.Overview")
	defer span.End()

	if view, ok := s.loaded.take(sess.ID, func(v *RentalView) bool {
		return q == (RentalQuery{}) || v.Query == q
	}); ok {
		span.SetAttributes(attribute.Bool("refreshed", true))
		return view, nil
	}
	view, err := s.overview(ctx, sess, q)
	if err != nil {
		return nil, err
	}
	s.loaded.remember(sess.ID, view)
	return view, nil
}

func (s *RentalService) overview(ctx context.Context, sess *domain.Session, q RentalQuery) (*RentalView, error) {
	years, err := s.Years(ctx, sess)
	if err != nil {
		return nil, err
	}
	view := &RentalView{Years: years}
	if len(years) == 0 {
		return view, nil
	}

	if !containsInt(years, q.Ano) {
		q.Ano = years[0]
	}
	if q.Mes == "" {
		q.Mes = AllMonths
		if lp, ok, err := s.LastPeriod(ctx, sess); err == nil && ok && lp.Ano == q.Ano {
			q.Mes = strconv.Itoa(lp.Mes)
		} else if IsUnauthorized(err) {
			return nil, err
		}
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("ano", q.Ano), attribute.String("mes", q.Mes))

	dist, err := s.Distribution(ctx, sess, q)
	if err != nil {
		return nil, err
	}
	months, err := s.Months(ctx, sess, q.Ano)
	if err != nil {
		return nil, err
	}
	view.Query = q
	view.Months = months
	view.Distribution = dist
	return view, nil
}

// Distribution loads the owner × property matrix of one month, or of the
// whole year when q.Mes is AllMonths.
func (s *RentalService) Distribution(ctx context.Context, sess *domain.Session, q RentalQuery) (*DistributionView, error) {
	ctx, span := rentalTracer.Start(ctx, "RentalService.Distribution")
	defer span.End()

	if err := validatePeriod(q.Ano, 1); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ano", strconv.Itoa(q.Ano))
	path := s.path + "distribuicao-todos-meses/"
	if q.Mes != AllMonths && q.Mes != "" {
		mes, err := strconv.Atoi(q.Mes)
		if err != nil || mes < 1 || mes > 12 {
			return nil, &domain.ErrValidation{Field: "mes", Message: "Mês inválido"}
		}
		params.Set("mes", q.Mes)
		path = s.path + "distribuicao-matriz/"
	}

	env := s.api.Get(ctx, sess, path+"?"+params.Encode())
	if err := env.Err(string(domain.KindRentals)); err != nil {
		return nil, err
	}
	var raw domain.Distribution
	if err := env.DecodeData(&raw); err != nil || raw.Matriz == nil {
		return nil, &domain.ErrUnexpectedFormat{Endpoint: "alugueis/distribuicao"}
	}
	return BuildDistribution(q, raw), nil
}

// BuildDistribution lays the backend matrix out in column order and
// computes row, column and grand totals in decimal arithmetic.
func BuildDistribution(q RentalQuery, raw domain.Distribution) *DistributionView {
	view := &DistributionView{
		Query:        q,
		Columns:      raw.Imoveis,
		ColumnTotals: make([]decimal.Decimal, len(raw.Imoveis)),
		GrandTotal:   decimal.Zero,
	}
	for i := range view.ColumnTotals {
		view.ColumnTotals[i] = decimal.Zero
	}

	for _, row := range raw.Matriz {
		line := DistributionLine{
			OwnerID:   row.ProprietarioID,
			OwnerName: row.OwnerName(),
			Values:    make([]decimal.Decimal, len(raw.Imoveis)),
			Total:     decimal.Zero,
		}
		for i, col := range raw.Imoveis {
			v := decimal.NewFromFloat(row.Valores[col.Nome])
			line.Values[i] = v
			line.Total = line.Total.Add(v)
			view.ColumnTotals[i] = view.ColumnTotals[i].Add(v)
		}
		view.GrandTotal = view.GrandTotal.Add(line.Total)
		view.Lines = append(view.Lines, line)
	}
	return view
}

// ============================================================
// Records: /alugueis/listar, /alugueis/obter/{id}, POST, PUT and DELETE
// ============================================================

// List returns rent records, newest period first.
func (s *RentalService) List(ctx context.Context, sess *domain.Session, f RentalFilter) ([]domain.Rental, error) {
	ctx, span := rentalTracer.Start(ctx, "RentalService.List")
	defer span.End()

	params := url.Values{}
	for key, v := range map[string]int{
		"ano":             f.Ano,
		"mes":             f.Mes,
		"imovel_id":       f.ImovelID,
		"proprietario_id": f.ProprietarioID,
	} {
		if v > 0 {
			params.Set(key, strconv.Itoa(v))
		}
	}
	path := s.path + "listar"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var rentals []domain.Rental
	if err := fetchInto(ctx, s.api, sess, path, domain.KindRentals, &rentals); err != nil {
		return nil, err
	}
	return rentals, nil
}

// Create validates and stores a rent record.
func (s *RentalService) Create(ctx context.Context, sess *domain.Session, r *domain.Rental) error {
	ctx, span := rentalTracer.Start(ctx, "RentalService.Create")
	defer span.End()

	if err := ValidateRental(r); err != nil {
		return err
	}
	env := s.api.Post(ctx, sess, s.path, r)
	if err := env.Err(string(domain.KindRentals)); err != nil {
		return err
	}
	s.loaded.invalidate(sess.ID)
	s.logger.Info("rental created",
		zap.Int("imovel_id", r.ImovelID),
		zap.Int("proprietario_id", r.ProprietarioID),
		zap.String("periodo", fmt.Sprintf("%02d/%d", r.Mes, r.Ano)),
	)
	return nil
}

// Get fetches one rent record for the edit form.
func (s *RentalService) Get(ctx context.Context, sess *domain.Session, id int) (*domain.Rental, error) {
	ctx, span := rentalTracer.Start(ctx, "RentalService.Get")
	defer span.End()

	if id <= 0 {
		return nil, &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	var r domain.Rental
	if err := fetchInto(ctx, s.api, sess, s.path+"obter/"+strconv.Itoa(id), domain.KindRentals, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Update validates and replaces a rent record.
func (s *RentalService) Update(ctx context.Context, sess *domain.Session, id int, r *domain.Rental) error {
	ctx, span := rentalTracer.Start(ctx, "RentalService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	if id <= 0 {
		return &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	if err := ValidateRental(r); err != nil {
		return err
	}
	env := s.api.Put(ctx, sess, s.path+strconv.Itoa(id), r)
	if err := env.Err(string(domain.KindRentals)); err != nil {
		return err
	}
	s.loaded.invalidate(sess.ID)
	s.logger.Info("rental updated", zap.Int("id", id), zap.String("periodo", fmt.Sprintf("%02d/%d", r.Mes, r.Ano)))
	return nil
}

// Delete removes a rent record.
func (s *RentalService) Delete(ctx context.Context, sess *domain.Session, id int) error {
	ctx, span := rentalTracer.Start(ctx, "RentalService.Delete")
	defer span.End()

	if id <= 0 {
		return &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	env := s.api.Delete(ctx, sess, s.path+strconv.Itoa(id))
	if err := env.Err(string(domain.KindRentals)); err != nil {
		return err
	}
	s.loaded.invalidate(sess.ID)
	return nil
}

// ValidateRental checks a record before it is sent.
func ValidateRental(r *domain.Rental) error {
	if r.ImovelID <= 0 || r.ProprietarioID <= 0 {
		return &domain.ErrValidation{Field: "imovel_id", Message: "Selecione o imóvel e o proprietário"}
	}
	if err := validatePeriod(r.Ano, r.Mes); err != nil {
		return err
	}
	if r.ValorAluguelProprietario < 0 {
		return &domain.ErrValidation{Field: "valor_aluguel_proprietario", Message: "O valor do aluguel não pode ser negativo"}
	}
	return nil
}

func validatePeriod(ano, mes int) error {
	if mes < 1 || mes > 12 {
		return &domain.ErrValidation{Field: "mes", Message: "Mês inválido"}
	}
	if ano < MinYear || ano > MaxYear {
		return &domain.ErrValidation{Field: "ano", Message: fmt.Sprintf("Ano deve estar entre %d e %d", MinYear, MaxYear)}
	}
	return nil
}

// Reload is the event-bus listener. It re-runs the last period a session
// looked at; the rentals screen shows the result on its next load.
func (s *RentalService) Reload(ctx context.Context, ev domain.EntityChanged) error {
	if ev.Session == nil {
		return nil
	}
	last, ok := s.loaded.last(ev.Session.ID)
	if !ok {
		return nil
	}
	view, err := s.overview(ctx, ev.Session, last.Query)
	if err != nil {
		return fmt.Errorf("reload alugueis: %w", err)
	}
	s.loaded.refresh(ev.Session.ID, view)
	s.logger.Info("rentals reloaded", zap.String("batch_id", ev.BatchID))
	return nil
}

// Forget drops the remembered period of a session.
func (s *RentalService) Forget(sessionID string) {
	s.loaded.forget(sessionID)
}

// Close stops the period cache.
func (s *RentalService) Close() {
	s.loaded.close()
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
