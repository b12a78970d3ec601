package domain

// ============================================================
// Health API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Version  string          `json:"version"`
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual upstream.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	BaseURL     string `json:"baseUrl"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}
