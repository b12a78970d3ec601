package config

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// HostEnv describes how the browser reaches the admin front-end.
type HostEnv struct {
	Hostname string
	Protocol string // "http" or "https"
}

// BaseRules are the inputs of the base URL precedence.
type BaseRules struct {
	HostOverrides map[string]string
	APIPort       int
	HealthPath    string
}

// Prober checks the backend health endpoint. A non-nil error means the
// request never got an answer.
type Prober interface {
	Probe(ctx context.Context, url string) (status int, err error)
}

// RelativeBase is the resolved base when the backend is reached through the
// same origin as the front-end.
const RelativeBase = ""

// SniffAPIBaseURL applies the hostname/protocol precedence:
// exact-hostname override, then HTTPS same origin, then localhost, then the
// same host on the API port.
func SniffAPIBaseURL(env HostEnv, rules BaseRules) string {
	host := strings.ToLower(strings.TrimSpace(env.Hostname))
	port := rules.APIPort
	if port == 0 {
		port = 8000
	}

	if base, ok := rules.HostOverrides[host]; ok && base != "" {
		return strings.TrimRight(base, "/")
	}
	if strings.EqualFold(strings.TrimSuffix(env.Protocol, ":"), "https") {
		return "https://" + host
	}
	if host == "localhost" || host == "127.0.0.1" || host == "" {
		return fmt.Sprintf("http://localhost:%d", port)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// ResolveAPIBaseURL sniffs the base and confirms it with one health probe.
// When the probe cannot reach the backend the relative base is returned.
func ResolveAPIBaseURL(ctx context.Context, env HostEnv, rules BaseRules, prober Prober, logger *zap.Logger) string {
	base := SniffAPIBaseURL(env, rules)
	if prober == nil {
		return base
	}

	health := rules.HealthPath
	if health == "" {
		health = "/api/health"
	}

	status, err := prober.Probe(ctx, base+health)
	if err != nil {
		logger.Warn("api base: health probe failed, using relative base",
			zap.String("candidate", base),
			zap.Error(err),
		)
		return RelativeBase
	}
	if status < 200 || status >= 300 {
		logger.Warn("api base: backend reachable but unhealthy",
			zap.String("base_url", base),
			zap.Int("status", status),
		)
	} else {
		logger.Info("api base: backend reachable", zap.String("base_url", base))
	}
	return base
}
