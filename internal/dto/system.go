package dto

// HealthResponse reports process and store health.
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Server    string `json:"server,omitempty"`
	Message   string `json:"message"`
	Platform  string `json:"platform,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// IndexResponse describes the service at GET /.
type IndexResponse struct {
	Message   string   `json:"message"`
	Platform  string   `json:"platform"`
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
	Version   string   `json:"version"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}
