package server

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Prompt string `json:"prompt"`
}

// ChatResponse is the POST /chat success body.
type ChatResponse struct {
	RequestID string       `json:"request_id"`
	Response  string       `json:"response"`
	Metadata  ChatMetadata `json:"metadata"`
}

// ChatMetadata carries the evaluation summary returned with a response.
type ChatMetadata struct {
	LatencyMS         float64 `json:"latency_ms"`
	Confidence        float64 `json:"confidence"`
	HallucinationRisk float64 `json:"hallucination_risk"`
	RiskTier          string  `json:"risk_tier"`
	Model             string  `json:"model"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
