// Package application wires the quality-risk pipeline together: it loads
// configuration, runs the evaluator over completed model exchanges and
// hands results to the telemetry emitter.
package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-vigil/infrastructure/signals"
	"github.com/ahrav/go-vigil/infrastructure/telemetry"
	"github.com/ahrav/go-vigil/internal/domain"
)

// Sink names accepted in SINK.
const (
	SinkDatadog = "datadog"
	SinkLog     = "log"
)

// Confidence strategies accepted in the evaluation config.
const (
	ConfidenceInline = "inline"
	ConfidenceQuery  = "query"
	ConfidenceChain  = "chain"
)

// Config holds the deployment settings read from the environment. It is
// loaded once at start and passed by value.
type Config struct {
	Port        int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	Environment string `env:"ENVIRONMENT,default=dev" validate:"required"`
	ServiceName string `env:"SERVICE_NAME,default=llm-observability-service" validate:"required"`

	ModelProvider   string        `env:"MODEL_PROVIDER,default=google" validate:"oneof=google openai anthropic"`
	ModelName       string        `env:"MODEL_NAME,default=gemini-2.5-flash" validate:"required"`
	ModelAPIKey     string        `env:"MODEL_API_KEY" validate:"required"`
	ModelBaseURL    string        `env:"MODEL_BASE_URL" validate:"omitempty,url"`
	ModelTimeout    time.Duration `env:"MODEL_TIMEOUT,default=30s" validate:"min=1s"`
	ModelMaxRetries int           `env:"MODEL_MAX_RETRIES,default=2" validate:"min=0,max=10"`
	// ModelRateLimit is requests per second; zero disables limiting.
	ModelRateLimit float64 `env:"MODEL_RATE_LIMIT,default=10" validate:"gte=0"`

	Sink          string `env:"SINK,default=datadog" validate:"oneof=datadog log"`
	DatadogAPIKey string `env:"DATADOG_API_KEY" validate:"required_if=Sink datadog"`
	DatadogAppKey string `env:"DATADOG_APP_KEY"`
	DatadogSite   string `env:"DATADOG_SITE,default=us5.datadoghq.com" validate:"hostname"`

	// EvaluationConfigPath points at an optional YAML tuning file.
	EvaluationConfigPath string        `env:"VIGIL_CONFIG"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gte=0"`
}

// LoadConfig reads Config from lookuper, or from the process environment
// when lookuper is nil, and validates it.
func LoadConfig(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, validationError("config", err)
	}
	return cfg, nil
}

// Tags returns the fixed telemetry tag set for this deployment.
func (c Config) Tags() domain.Tags {
	return domain.Tags{
		Source:      domain.DefaultSource,
		Environment: c.Environment,
		Service:     c.ServiceName,
		Model:       c.ModelName,
	}
}

// EvaluationConfig tunes the pipeline. Every field has a usable zero value.
type EvaluationConfig struct {
	Thresholds domain.RiskThresholds   `yaml:"thresholds"`
	Confidence ConfidenceConfig        `yaml:"confidence"`
	Hedging    signals.HedgingConfig   `yaml:"hedging"`
	Verbosity  signals.VerbosityConfig `yaml:"verbosity"`
	Emitter    telemetry.EmitterConfig `yaml:"emitter"`
}

// ConfidenceConfig selects the elicitation strategy. Query is the default.
// Inline and chain read a rating closing the response, so they suit models
// whose instructions ask for one.
type ConfidenceConfig struct {
	Strategy string `yaml:"strategy" validate:"omitempty,oneof=inline query chain"`
	// Timeout bounds the follow-up rating call. Zero means the model timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// DefaultEvaluationConfig returns the built-in tuning.
func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		Thresholds: domain.DefaultRiskThresholds(),
		Confidence: ConfidenceConfig{Strategy: ConfidenceQuery},
	}
}

// LoadEvaluationConfig reads the YAML tuning file at path. An empty path
// yields the defaults.
func LoadEvaluationConfig(path string) (EvaluationConfig, error) {
	if path == "" {
		return DefaultEvaluationConfig(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return EvaluationConfig{}, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseEvaluationConfig(bytes.NewReader(data))
}

// ParseEvaluationConfig decodes YAML from r over the defaults and
// validates the result. Unknown keys are rejected.
func ParseEvaluationConfig(r io.Reader) (EvaluationConfig, error) {
	cfg := DefaultEvaluationConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return EvaluationConfig{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if cfg.Confidence.Strategy == "" {
		cfg.Confidence.Strategy = ConfidenceQuery
	}

	if err := validate.Struct(cfg); err != nil {
		return EvaluationConfig{}, validationError("evaluation config", err)
	}
	return cfg, nil
}

// validate carries the custom rules registered by RegisterValidators.
var validate = func() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}()

// validationError flattens validator output into a domain.ValidationError.
func validationError(entity string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfiguration, entity, err)
	}
	ve := domain.NewValidationError(entity)
	for _, fe := range fieldErrs {
		ve.AddError(fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return ve
}
