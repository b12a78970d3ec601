package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// HealthProber checks the backend health endpoint. Transport failures are
// retried with backoff so a backend that is still booting is not mistaken
// for an absent one.
type HealthProber struct {
	httpClient *http.Client
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewHealthProber creates a prober.
func NewHealthProber(httpClient *http.Client, cfg resilience.Config, logger *zap.Logger) *HealthProber {
	return &HealthProber{httpClient: httpClient, cfg: cfg, logger: logger}
}

// Probe GETs url and returns the status code. A non-nil error means no
// response was ever received.
func (p *HealthProber) Probe(ctx context.Context, url string) (int, error) {
	ctx, span := tracer.Start(ctx, "HealthProber.Probe")
	defer span.End()

	status := 0
	err := resilience.RetryWithBackoff(ctx, p.cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			p.logger.Debug("health probe attempt failed", zap.String("url", url), zap.Error(err))
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		status = resp.StatusCode
		return nil
	})
	return status, err
}

// Check reports the backend health for /healthz.
func (p *HealthProber) Check(ctx context.Context, name, baseURL, healthPath string) domain.ServiceHealth {
	start := time.Now()
	h := domain.ServiceHealth{
		Name:        name,
		BaseURL:     baseURL,
		LastChecked: start.UTC().Format(time.RFC3339),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+healthPath, nil)
	if err != nil {
		h.Status = "unhealthy"
		return h
	}
	resp, err := p.httpClient.Do(req)
	h.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		h.Status = "unhealthy"
		return h
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.Status = "healthy"
	} else {
		h.Status = "degraded"
	}
	return h
}
