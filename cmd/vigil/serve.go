package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-vigil/infrastructure/llm"
	"github.com/ahrav/go-vigil/infrastructure/middleware"
	"github.com/ahrav/go-vigil/infrastructure/telemetry"
	"github.com/ahrav/go-vigil/internal/application"
	"github.com/ahrav/go-vigil/internal/ports"
	"github.com/ahrav/go-vigil/internal/server"
)

// Circuit breaker and retry settings for the model client.
const (
	breakerMaxFailures = 5
	breakerCooldown    = 30 * time.Second
	retryBaseDelay     = 500 * time.Millisecond
	retryMaxDelay      = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Run the HTTP service. POST /chat answers a prompt and returns the
response with its risk metadata; GET /health and GET /metrics are also served.

Examples:
  # Local run with telemetry written to the log
  MODEL_API_KEY=... SINK=log vigil serve

  # Datadog delivery with tuned thresholds
  MODEL_API_KEY=... DATADOG_API_KEY=... vigil serve --config vigil.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := application.LoadConfig(ctx, nil)
	if err != nil {
		return err
	}
	evalCfg, err := loadEvaluationConfig(cfg.EvaluationConfigPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewPrometheusMetrics(reg)

	client, err := newModelClient(cfg, metrics)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	sink, err := newSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to create telemetry sink: %w", err)
	}

	app, err := newApp(cfg, evalCfg, client, sink, metrics)
	if err != nil {
		return err
	}
	if err := app.emitter.Start(ctx); err != nil {
		return fmt.Errorf("failed to start emitter: %w", err)
	}

	srv := server.NewServer(app.chat, reg, net.JoinHostPort("", strconv.Itoa(cfg.Port)))
	clog.InfoContextf(ctx, "Serving model %s with %s sink", app.chat.Model(), cfg.Sink)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		// Requests drain before the queue so their events are enqueued.
		return errors.Join(srv.Shutdown(shutdownCtx), app.emitter.Close(shutdownCtx))
	})

	err = g.Wait()
	stats := app.emitter.Stats()
	clog.FromContext(ctx).
		With("submitted", stats.Submitted).
		With("delivered", stats.Delivered).
		With("dropped", stats.Dropped).
		With("failed", stats.Failed).
		Info("telemetry emitter stopped")
	return err
}

// app holds the wired request path.
type app struct {
	chat    *application.ChatService
	emitter *telemetry.Emitter
}

// newApp wires evaluator, emitter and chat service around client and sink.
func newApp(cfg application.Config, evalCfg application.EvaluationConfig, client ports.LLMClient, sink ports.TelemetrySink, metrics ports.MetricsCollector) (*app, error) {
	rater, err := llm.NewConfidenceRater(client)
	if err != nil {
		return nil, err
	}
	elicitor, err := application.NewConfidenceElicitor(evalCfg.Confidence, rater, cfg.ModelTimeout)
	if err != nil {
		return nil, err
	}
	evaluator, err := application.NewEvaluator(evalCfg, elicitor, metrics)
	if err != nil {
		return nil, err
	}
	emitter, err := telemetry.NewEmitter(sink, cfg.Tags(), metrics, evalCfg.Emitter)
	if err != nil {
		return nil, err
	}
	chat, err := application.NewChatService(client, evaluator, emitter, nil)
	if err != nil {
		return nil, err
	}
	return &app{chat: chat, emitter: emitter}, nil
}

// newModelClient builds the provider client. The first middleware is the
// outermost, so the timeout bounds each retry attempt separately.
func newModelClient(cfg application.Config, metrics ports.MetricsCollector) (*llm.Client, error) {
	chain := []llm.Middleware{
		llm.TracingMiddleware(cfg.ServiceName),
		llm.MetricsMiddleware(cfg.ModelProvider, metrics),
	}
	if cfg.ModelRateLimit > 0 {
		chain = append(chain, llm.RateLimitMiddleware(rate.Limit(cfg.ModelRateLimit), max(1, int(cfg.ModelRateLimit))))
	}
	chain = append(chain,
		llm.CircuitBreakerMiddleware(breakerMaxFailures, breakerCooldown, metrics),
		llm.RetryMiddleware(cfg.ModelMaxRetries, retryBaseDelay, retryMaxDelay),
		llm.TimeoutMiddleware(cfg.ModelTimeout),
	)

	return llm.NewClient(cfg.ModelProvider, llm.ClientConfig{
		APIKey:     cfg.ModelAPIKey,
		Model:      cfg.ModelName,
		BaseURL:    cfg.ModelBaseURL,
		Middleware: chain,
	})
}

func newSink(cfg application.Config) (ports.TelemetrySink, error) {
	switch cfg.Sink {
	case application.SinkLog:
		return telemetry.NewLogSink(nil), nil
	case application.SinkDatadog:
		return telemetry.NewDatadogSink(telemetry.DatadogConfig{
			APIKey:  cfg.DatadogAPIKey,
			AppKey:  cfg.DatadogAppKey,
			Site:    cfg.DatadogSite,
			Service: cfg.ServiceName,
		})
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}

// loadEvaluationConfig prefers the --config flag over VIGIL_CONFIG.
func loadEvaluationConfig(envPath string) (application.EvaluationConfig, error) {
	path := envPath
	if configFile != "" {
		path = configFile
	}
	return application.LoadEvaluationConfig(path)
}
