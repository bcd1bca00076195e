package api

// ErrorResponse is the JSON body of a non-streaming error response.
// Path is set for validation failures, Details for upstream connectivity
// failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
	Details string `json:"details,omitempty"`
}

// LivenessResponse is the JSON body of GET /api/chat.
type LivenessResponse struct {
	Message string `json:"message"`
}

// HealthCheck is one named check inside a health response.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the JSON body of GET /api/health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}
