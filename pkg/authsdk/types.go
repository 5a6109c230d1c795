package authsdk

import "time"

// LoginResponse is the body of a successful POST /v1/login.
type LoginResponse struct {
	Success bool `json:"success"`
}

// IdentityResponse describes the resolved client identity of a session.
type IdentityResponse struct {
	SessionID  string    `json:"session_id"`
	Address    string    `json:"address"`
	Source     string    `json:"source"`
	Confidence string    `json:"confidence"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// IsSynthetic reports whether the address was generated by the service
// rather than observed.
func (r IdentityResponse) IsSynthetic() bool { return r.Source == "synthetic" }

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the user store connection status
	Database string `json:"database"`
}

// ErrorResponse is the JSON error body returned by every endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
