package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var participationTracer = otel.Tracer("service/participations")

// sumTolerance is how far a new version's per-property total may drift
// from 100 before it is rejected locally.
const sumTolerance = 0.5

// ParticipationView is everything the participations screen shows.
type ParticipationView struct {
	Dates          []string
	Selected       string
	Owners         []domain.Owner
	Properties     []domain.Property
	Participations []domain.Participation
	Matrix         Matrix
}

// ParticipationService loads version sets and creates new versions.
type ParticipationService struct {
	api            port.APIClient
	path           string
	ownersPath     string
	propertiesPath string
	loaded         *snapshots[*ParticipationView]
	logger         *zap.Logger
}

// NewParticipationService creates the participations module. The paths are
// collection endpoints with trailing slashes.
func NewParticipationService(api port.APIClient, path, ownersPath, propertiesPath string, ttl time.Duration, logger *zap.Logger) *ParticipationService {
	return &ParticipationService{
		api:            api,
		path:           withSlash(path),
		ownersPath:     withSlash(ownersPath),
		propertiesPath: withSlash(propertiesPath),
		loaded:         newSnapshots[*ParticipationView](ttl),
		logger:         logger.With(zap.String("module", string(domain.KindParticipations))),
	}
}

// ============================================================
// Version dates: GET <participacoes>datas
// ============================================================

// VersionDates returns the distinct version dates, newest first as the
// backend orders them.
func (s *ParticipationService) VersionDates(ctx context.Context, sess *domain.Session) ([]string, error) {
	ctx, span := participationTracer.Start(ctx, "ParticipationService.VersionDates")
	defer span.End()

	env := s.api.Get(ctx, sess, s.path+"datas")
	if err := env.Err(string(domain.KindParticipations)); err != nil {
		return nil, err
	}
	dates, err := NormalizeVersionDates(env)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("dates", len(dates)))
	return dates, nil
}

// NormalizeVersionDates accepts every shape the backend has used for the
// version list ({datas}, {data: [...]}, {data: {datas}} or a bare array)
// and removes exact duplicates, keeping the first occurrence.
func NormalizeVersionDates(env *domain.Envelope) ([]string, error) {
	var candidates []json.RawMessage
	for _, key := range []string{"datas", "data"} {
		var field json.RawMessage
		if ok, _ := env.Field(key, &field); ok {
			candidates = append(candidates, field)
		}
	}
	candidates = append(candidates, env.Data, env.Raw)

	for _, raw := range candidates {
		if dates, ok := datesFrom(raw); ok {
			return dedupe(dates), nil
		}
	}
	return nil, &domain.ErrUnexpectedFormat{Endpoint: "participacoes/datas"}
}

func datesFrom(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var dates []string
	if json.Unmarshal(raw, &dates) == nil && dates != nil {
		return dates, true
	}
	var nested struct {
		Datas []string `json:"datas"`
	}
	if json.Unmarshal(raw, &nested) == nil && nested.Datas != nil {
		return nested.Datas, true
	}
	return nil, false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, d := range in {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ============================================================
// Load: three concurrent fetches, all or none
// ============================================================

// Load fetches the version dates and the set for date (the newest when
// date is empty or unknown), then builds the matrix. A view reloaded by an
// import is returned without a new fetch when it matches date.
func (s *ParticipationService) Load(ctx context.Context, sess *domain.Session, date string) (*ParticipationView, error) {
	ctx, span := participationTracer.Start(ctx, "ParticipationService.Load")
	defer span.End()

	if view, ok := s.loaded.take(sess.ID, func(v *ParticipationView) bool {
		return date == "" || date == v.Selected
	}); ok {
		span.SetAttributes(attribute.Bool("refreshed", true))
		return view, nil
	}
	view, err := s.load(ctx, sess, date)
	if err != nil {
		return nil, err
	}
	s.loaded.remember(sess.ID, view)
	return view, nil
}

func (s *ParticipationService) load(ctx context.Context, sess *domain.Session, date string) (*ParticipationView, error) {
	dates, err := s.VersionDates(ctx, sess)
	if err != nil {
		return nil, err
	}

	selected := ""
	if len(dates) > 0 {
		selected = dates[0]
		for _, d := range dates {
			if d == date {
				selected = d
				break
			}
		}
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("data_registro", selected))

	view, err := s.loadSet(ctx, sess, selected)
	if err != nil {
		return nil, err
	}
	view.Dates = dates
	return view, nil
}

func (s *ParticipationService) loadSet(ctx context.Context, sess *domain.Session, date string) (*ParticipationView, error) {
	view := &ParticipationView{Selected: date}

	partsPath := s.path
	if date != "" {
		partsPath += "?data_registro=" + url.QueryEscape(date)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fetchInto(gctx, s.api, sess, partsPath, domain.KindParticipations, &view.Participations)
	})
	g.Go(func() error {
		return fetchInto(gctx, s.api, sess, s.ownersPath, domain.KindOwners, &view.Owners)
	})
	g.Go(func() error {
		return fetchInto(gctx, s.api, sess, s.propertiesPath, domain.KindProperties, &view.Properties)
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("participations load failed", zap.Error(err))
		return nil, &domain.ErrLoad{Screen: string(domain.KindParticipations), Err: err}
	}

	view.Matrix = BuildMatrix(view.Owners, view.Properties, view.Participations)
	return view, nil
}

func fetchInto(ctx context.Context, api port.APIClient, sess *domain.Session, path string, kind domain.EntityKind, dst any) error {
	env := api.Get(ctx, sess, path)
	if err := env.Err(string(kind)); err != nil {
		return err
	}
	if err := env.DecodeData(dst); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// ============================================================
// New version: POST <participacoes>nova-versao (admin only)
// ============================================================

// NewVersion copies the set of date and replaces the shares of one
// property with edited (owner id -> percent). Owners missing from edited
// keep their current share.
func (s *ParticipationService) NewVersion(ctx context.Context, sess *domain.Session, date string, propertyID int, edited map[int]float64) error {
	ctx, span := participationTracer.Start(ctx, "ParticipationService.NewVersion")
	defer span.End()
	span.SetAttributes(attribute.Int("imovel_id", propertyID))

	if !sess.IsAdmin() {
		return &domain.ErrForbidden{Action: "nova-versao", Message: "Apenas administradores podem criar nova versão."}
	}

	view, err := s.loadSet(ctx, sess, date)
	if err != nil {
		return err
	}

	req, err := BuildNewVersion(view, propertyID, edited)
	if err != nil {
		return err
	}

	env := s.api.Post(ctx, sess, s.path+"nova-versao", req)
	if err := env.Err(string(domain.KindParticipations)); err != nil {
		return err
	}

	s.loaded.invalidate(sess.ID)
	s.logger.Info("participation version created",
		zap.String("usuario", sess.View().Username),
		zap.Int("imovel_id", propertyID),
		zap.Int("items", len(req.Participacoes)),
	)
	return nil
}

// BuildNewVersion produces the full payload of a new version: every
// property × owner pair of view, with the edited property's shares
// replaced. The edited shares must each lie in 0..100 and add up to 100.
func BuildNewVersion(view *ParticipationView, propertyID int, edited map[int]float64) (*domain.NewVersionRequest, error) {
	found := false
	for _, p := range view.Properties {
		if p.ID == propertyID {
			found = true
			break
		}
	}
	if !found {
		return nil, &domain.ErrValidation{Field: "imovel_id", Message: "Imóvel não encontrado no conjunto atual"}
	}

	current := make(map[[2]int]float64, len(view.Participations))
	for _, p := range view.Participations {
		k := [2]int{p.ImovelID, p.ProprietarioID}
		if _, seen := current[k]; !seen {
			current[k] = NormalizePercent(p)
		}
	}

	sum := 0.0
	for _, o := range view.Owners {
		v, ok := edited[o.ID]
		if !ok {
			v = current[[2]int{propertyID, o.ID}]
		}
		if v < 0 || v > 100 {
			return nil, &domain.ErrValidation{Field: "porcentagem", Message: "Percentuais devem estar entre 0 e 100"}
		}
		sum += v
	}
	if math.Abs(sum-100) > sumTolerance {
		return nil, &domain.ErrValidation{
			Field:   "porcentagem",
			Message: fmt.Sprintf("A soma deve ser 100%% (atual: %s%%)", strings.TrimSuffix(formatPercent(sum), ".00")),
		}
	}

	req := &domain.NewVersionRequest{Participacoes: make([]domain.ParticipationInput, 0, len(view.Properties)*len(view.Owners))}
	for _, prop := range view.Properties {
		for _, o := range view.Owners {
			v := current[[2]int{prop.ID, o.ID}]
			if prop.ID == propertyID {
				if e, ok := edited[o.ID]; ok {
					v = e
				}
			}
			req.Participacoes = append(req.Participacoes, domain.ParticipationInput{
				ImovelID:       prop.ID,
				ProprietarioID: o.ID,
				Porcentagem:    math.Round(v*100) / 100,
			})
		}
	}
	return req, nil
}

// Reload is the event-bus listener. It re-fetches the version list and the
// newest set for sessions that opened the screen; the screen shows the
// result on its next load.
func (s *ParticipationService) Reload(ctx context.Context, ev domain.EntityChanged) error {
	if ev.Session == nil {
		return nil
	}
	if _, ok := s.loaded.last(ev.Session.ID); !ok {
		return nil
	}
	// A participation import creates a new version; jump to it.
	view, err := s.load(ctx, ev.Session, "")
	if err != nil {
		return fmt.Errorf("reload participacoes: %w", err)
	}
	s.loaded.refresh(ev.Session.ID, view)
	s.logger.Info("participations reloaded", zap.String("batch_id", ev.BatchID), zap.String("data_registro", view.Selected))
	return nil
}

// Forget drops the remembered selection of a session.
func (s *ParticipationService) Forget(sessionID string) {
	s.loaded.forget(sessionID)
}

// Close stops the selection cache.
func (s *ParticipationService) Close() {
	s.loaded.close()
}

func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
