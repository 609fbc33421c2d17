// Package server is the HTTP transport of the service: POST /chat runs one
// instrumented exchange, GET /health reports liveness and GET /metrics
// exposes the Prometheus registry.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-vigil/internal/application"
	"github.com/ahrav/go-vigil/internal/domain"
)

// maxBodyBytes bounds the /chat request body.
const maxBodyBytes = 1 << 20

// Chatter runs one exchange. *application.ChatService implements it.
type Chatter interface {
	Chat(ctx context.Context, prompt string) (application.ChatResult, error)
}

// Server is the HTTP API server.
type Server struct {
	chat    Chatter
	handler http.Handler
	server  *http.Server
	now     func() time.Time
}

// NewServer creates a server listening on addr. gatherer backs /metrics
// and may be nil to omit the endpoint.
func NewServer(chat Chatter, gatherer prometheus.Gatherer, addr string) *Server {
	s := &Server{chat: chat, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.handler = loggingMiddleware(mux)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until Shutdown. Request contexts carry
// ctx's values (its logger) but not its cancellation: canceling ctx does
// not abort in-flight requests, which Shutdown lets finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	base := context.WithoutCancel(ctx)
	s.server.BaseContext = func(net.Listener) context.Context { return base }
	clog.InfoContextf(ctx, "Starting API server on %s", ln.Addr())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	clog.InfoContextf(ctx, "Shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleChat handles POST /chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := s.now()

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	out, err := s.chat.Chat(r.Context(), req.Prompt)
	if err != nil {
		s.respondChatError(w, r, err)
		return
	}

	res := out.Result
	respondJSON(w, http.StatusOK, ChatResponse{
		RequestID: res.RequestID,
		Response:  out.Response,
		Metadata: ChatMetadata{
			LatencyMS:         round(float64(s.now().Sub(start))/float64(time.Millisecond), 2),
			Confidence:        round(res.SelfConfidence, 3),
			HallucinationRisk: round(res.RiskScore, 3),
			RiskTier:          res.Tier.String(),
			Model:             res.Model,
		},
	})
}

func (s *Server) respondChatError(w http.ResponseWriter, r *http.Request, err error) {
	var mce *domain.ModelCallError
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		respondError(w, http.StatusBadRequest, domain.ErrEmptyPrompt.Error(), "")
	case errors.As(err, &mce):
		// Provider text stays in the server log.
		respondError(w, http.StatusBadGateway, "model call failed", mce.RequestID)
	case errors.Is(err, domain.ErrEvaluationAbandoned):
		respondError(w, http.StatusGatewayTimeout, "request abandoned", "")
	default:
		clog.FromContext(r.Context()).With("error", err.Error()).Error("chat request failed")
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, requestID string) {
	respondJSON(w, status, ErrorResponse{Error: message, RequestID: requestID})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		clog.FromContext(r.Context()).
			With("method", r.Method).
			With("path", r.URL.Path).
			With("status", rec.status).
			With("duration", time.Since(start)).
			Info("http request")
	})
}
