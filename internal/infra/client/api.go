// Package client is the single HTTP client of the REST backend. It turns
// every response into a domain.Envelope and reports 401s to the session
// layer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/resilience"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// ConnectionErrorMessage is shown when the backend cannot be reached.
const ConnectionErrorMessage = "Erro de conexão com o servidor"

const maxBodyBytes = 10 << 20

// UnauthorizedHandler is called once per 401 response with the caller's
// token source.
type UnauthorizedHandler func(ctx context.Context, src port.TokenSource)

// APIClient implements port.APIClient over net/http.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger

	mu             sync.RWMutex
	onUnauthorized UnauthorizedHandler
}

// NewAPIClient creates a client for the backend at baseURL.
func NewAPIClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *APIClient {
	return &APIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		bulkhead:   bulkhead,
		metrics:    metrics,
		logger:     logger,
	}
}

// OnUnauthorized registers the hook invoked on every 401.
func (c *APIClient) OnUnauthorized(fn UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// BaseURL returns the resolved backend base URL.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request.
func (c *APIClient) Get(ctx context.Context, src port.TokenSource, path string) *domain.Envelope {
	return c.do(ctx, src, http.MethodGet, path, nil, "application/json")
}

// Post issues a POST request with a JSON body.
func (c *APIClient) Post(ctx context.Context, src port.TokenSource, path string, body any) *domain.Envelope {
	return c.doJSON(ctx, src, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *APIClient) Put(ctx context.Context, src port.TokenSource, path string, body any) *domain.Envelope {
	return c.doJSON(ctx, src, http.MethodPut, path, body)
}

// Delete issues a DELETE request.
func (c *APIClient) Delete(ctx context.Context, src port.TokenSource, path string) *domain.Envelope {
	return c.do(ctx, src, http.MethodDelete, path, nil, "application/json")
}

// Upload posts r as a multipart file under field. The JSON content type is
// not set; the multipart writer supplies the boundary.
func (c *APIClient) Upload(ctx context.Context, src port.TokenSource, path, field, filename string, r io.Reader) *domain.Envelope {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return failure(0, err.Error())
	}
	if _, err := io.Copy(part, r); err != nil {
		return failure(0, err.Error())
	}
	if err := mw.Close(); err != nil {
		return failure(0, err.Error())
	}
	return c.do(ctx, src, http.MethodPost, path, &buf, mw.FormDataContentType())
}

func (c *APIClient) doJSON(ctx context.Context, src port.TokenSource, method, path string, body any) *domain.Envelope {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return failure(0, fmt.Sprintf("encoding request: %v", err))
		}
		rdr = bytes.NewReader(b)
	}
	return c.do(ctx, src, method, path, rdr, "application/json")
}

// errUpstream5xx marks a server-side failure for the circuit breaker while
// the envelope still carries the response.
var errUpstream5xx = errors.New("upstream 5xx")

func (c *APIClient) do(ctx context.Context, src port.TokenSource, method, path string, body io.Reader, contentType string) *domain.Envelope {
	ctx, span := tracer.Start(ctx, "APIClient."+method)
	defer span.End()
	endpoint := endpointLabel(path)
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("api.endpoint", endpoint),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		c.metrics.IncrUpstreamError(endpoint, "network")
		return failure(0, ConnectionErrorMessage)
	}
	defer c.bulkhead.Release()

	start := time.Now()
	var env *domain.Envelope

	_, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if src != nil {
			if h, ok := src.AuthHeader(); ok {
				req.Header.Set("Authorization", h)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}

		env = classify(resp, raw)
		if resp.StatusCode >= 500 {
			return nil, errUpstream5xx
		}
		return nil, nil
	})
	c.metrics.RecordUpstream(endpoint, method, time.Since(start))

	if env == nil {
		// No HTTP response: transport failure or open breaker.
		msg := ConnectionErrorMessage
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			msg = "Servidor temporariamente indisponível"
		}
		c.logger.Error("api: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		c.metrics.IncrUpstreamError(endpoint, "network")
		span.SetStatus(codes.Error, "network")
		return failure(0, msg)
	}

	span.SetAttributes(attribute.Int("http.status_code", env.Status))
	switch {
	case env.Status == http.StatusUnauthorized:
		c.logger.Warn("api: unauthorized, forcing logout",
			zap.String("method", method),
			zap.String("path", path),
		)
		c.metrics.IncrUpstreamError(endpoint, "unauthorized")
		c.notifyUnauthorized(ctx, src)
	case !env.Success:
		c.logger.Warn("api: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", env.Status),
			zap.String("error", env.Error),
		)
		c.metrics.IncrUpstreamError(endpoint, "http")
	default:
		c.logger.Debug("api: request OK",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", env.Status),
		)
	}
	return env
}

func (c *APIClient) notifyUnauthorized(ctx context.Context, src port.TokenSource) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil && src != nil {
		fn(ctx, src)
	}
}

// classify maps an HTTP response to an envelope.
func classify(resp *http.Response, raw []byte) *domain.Envelope {
	status := resp.StatusCode

	if status == http.StatusUnauthorized {
		msg := extractMessage(raw)
		if msg == "" {
			msg = "Sessão expirada. Faça login novamente."
		}
		return &domain.Envelope{Success: false, Status: status, Error: msg, Raw: jsonOrNil(raw)}
	}

	if status < 200 || status >= 300 {
		msg := extractMessage(raw)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
		return &domain.Envelope{Success: false, Status: status, Error: msg, Raw: jsonOrNil(raw)}
	}

	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "json") {
		return &domain.Envelope{Success: true, Status: status, Text: string(raw)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &domain.Envelope{Success: true, Status: status}
	}

	env := &domain.Envelope{Success: true, Status: status, Raw: raw, Data: raw}

	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return env
	}
	flag, wrapped := obj["success"]
	if !wrapped {
		return env
	}

	// Bodies that already carry "success" are passed through as-is.
	var ok bool
	_ = json.Unmarshal(flag, &ok)
	env.Success = ok
	env.Data = obj["data"]
	if !ok {
		env.Error = extractMessage(raw)
	}
	return env
}

// extractMessage pulls a human-readable message out of an error body.
func extractMessage(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(trimmed, &obj) != nil {
		return truncate(string(trimmed), 300)
	}

	for _, key := range []string{"detail", "error", "message", "mensagem"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
		// FastAPI validation errors: [{"loc": [...], "msg": "..."}]
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(v, &items) == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}

func jsonOrNil(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return raw
	}
	return nil
}

func failure(status int, msg string) *domain.Envelope {
	return &domain.Envelope{Success: false, Status: status, Error: msg}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// endpointLabel keeps metric cardinality low: the first path segment only.
func endpointLabel(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(p, "/?"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}
