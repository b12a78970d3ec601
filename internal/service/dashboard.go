package service

import (
	"context"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashboardTracer = otel.Tracer("service/dashboard")

// DashboardStats are the landing-page counters.
type DashboardStats struct {
	Owners       int
	Properties   int
	Rentals      int
	LatestPeriod domain.Period
	YearIncome   decimal.Decimal // net owner income of the latest year
	MonthIncome  decimal.Decimal // net owner income of the latest month
}

// DashboardService aggregates the three collections for the landing page.
type DashboardService struct {
	api            port.APIClient
	ownersPath     string
	propertiesPath string
	rentalsPath    string
	logger         *zap.Logger
}

// NewDashboardService creates the dashboard module.
func NewDashboardService(api port.APIClient, ownersPath, propertiesPath, rentalsPath string, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		api:            api,
		ownersPath:     withSlash(ownersPath),
		propertiesPath: withSlash(propertiesPath),
		rentalsPath:    withSlash(rentalsPath),
		logger:         logger.With(zap.String("module", "dashboard")),
	}
}

// Stats fetches owners, properties and rentals concurrently. Any failure
// fails the whole dashboard.
func (s *DashboardService) Stats(ctx context.Context, sess *domain.Session) (*DashboardStats, error) {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.Stats")
	defer span.End()

	var (
		owners     []domain.Owner
		properties []domain.Property
		rentals    []domain.Rental
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fetchInto(gctx, s.api, sess, s.ownersPath, domain.KindOwners, &owners) })
	g.Go(func() error { return fetchInto(gctx, s.api, sess, s.propertiesPath, domain.KindProperties, &properties) })
	g.Go(func() error { return fetchInto(gctx, s.api, sess, s.rentalsPath+"listar", domain.KindRentals, &rentals) })
	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard load failed", zap.Error(err))
		return nil, &domain.ErrLoad{Screen: "dashboard", Err: err}
	}

	stats := SummarizeRentals(rentals)
	stats.Owners = len(owners)
	stats.Properties = len(properties)
	return stats, nil
}

// SummarizeRentals finds the latest period and sums net income for its
// year and its month.
func SummarizeRentals(rentals []domain.Rental) *DashboardStats {
	stats := &DashboardStats{Rentals: len(rentals), YearIncome: decimal.Zero, MonthIncome: decimal.Zero}
	for _, r := range rentals {
		if r.Ano > stats.LatestPeriod.Ano || (r.Ano == stats.LatestPeriod.Ano && r.Mes > stats.LatestPeriod.Mes) {
			stats.LatestPeriod = domain.Period{Ano: r.Ano, Mes: r.Mes}
		}
	}
	for _, r := range rentals {
		if r.Ano != stats.LatestPeriod.Ano {
			continue
		}
		v := decimal.NewFromFloat(r.ValorLiquidoProprietario)
		stats.YearIncome = stats.YearIncome.Add(v)
		if r.Mes == stats.LatestPeriod.Mes {
			stats.MonthIncome = stats.MonthIncome.Add(v)
		}
	}
	return stats
}
