package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/ahrav/go-vigil/internal/domain"
	"github.com/ahrav/go-vigil/internal/ports"
)

// DefaultDatadogSite is the intake site used when none is configured.
const DefaultDatadogSite = "us5.datadoghq.com"

// DatadogConfig holds the intake credentials and identity of the sink.
type DatadogConfig struct {
	APIKey   string `validate:"required"`
	AppKey   string
	Site     string `validate:"omitempty,hostname"`
	Service  string `validate:"required"`
	Hostname string
	// HTTPClient overrides the transport; tests inject a recording client.
	HTTPClient *http.Client
}

// DatadogSink ships metric batches through the v2 series intake and log
// events through the v2 logs intake.
type DatadogSink struct {
	metrics *datadogV2.MetricsApi
	logs    *datadogV2.LogsApi
	cfg     DatadogConfig
}

var _ ports.TelemetrySink = (*DatadogSink)(nil)

// NewDatadogSink creates a sink from cfg.
func NewDatadogSink(cfg DatadogConfig) (*DatadogSink, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("datadog sink configuration validation failed: %w", err)
	}
	if cfg.Site == "" {
		cfg.Site = DefaultDatadogSite
	}
	if cfg.Hostname == "" {
		cfg.Hostname = cfg.Service
	}

	conf := datadog.NewConfiguration()
	if cfg.HTTPClient != nil {
		conf.HTTPClient = cfg.HTTPClient
	}
	client := datadog.NewAPIClient(conf)

	return &DatadogSink{
		metrics: datadogV2.NewMetricsApi(client),
		logs:    datadogV2.NewLogsApi(client),
		cfg:     cfg,
	}, nil
}

// authContext attaches the keys and site the client reads from ctx.
func (s *DatadogSink) authContext(ctx context.Context) context.Context {
	keys := map[string]datadog.APIKey{
		"apiKeyAuth": {Key: s.cfg.APIKey},
	}
	if s.cfg.AppKey != "" {
		keys["appKeyAuth"] = datadog.APIKey{Key: s.cfg.AppKey}
	}
	ctx = context.WithValue(ctx, datadog.ContextAPIKeys, keys)
	return context.WithValue(ctx, datadog.ContextServerVariables, map[string]string{
		"site": s.cfg.Site,
	})
}

// SubmitMetrics implements ports.TelemetrySink. All points go out in one
// payload, one series per point.
func (s *DatadogSink) SubmitMetrics(ctx context.Context, points []domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	series := make([]datadogV2.MetricSeries, 0, len(points))
	for _, p := range points {
		series = append(series, datadogV2.MetricSeries{
			Metric: p.Name,
			Type:   datadogV2.METRICINTAKETYPE_UNSPECIFIED.Ptr(),
			Points: []datadogV2.MetricPoint{{
				Timestamp: datadog.PtrInt64(p.Timestamp),
				Value:     datadog.PtrFloat64(p.Value),
			}},
			Resources: []datadogV2.MetricResource{{
				Name: datadog.PtrString(s.cfg.Service),
				Type: datadog.PtrString("service"),
			}},
			Tags: p.Tags,
		})
	}

	_, resp, err := s.metrics.SubmitMetrics(
		s.authContext(ctx),
		datadogV2.MetricPayload{Series: series},
		*datadogV2.NewSubmitMetricsOptionalParameters(),
	)
	if err != nil {
		return fmt.Errorf("submit metrics%s: %w", statusSuffix(resp), err)
	}
	return nil
}

// SubmitLog implements ports.TelemetrySink. Attribute values are sent as
// strings, the form the logs intake indexes without a pipeline.
func (s *DatadogSink) SubmitLog(ctx context.Context, event domain.LogEvent) error {
	source := event.Source
	if source == "" {
		source = domain.DefaultSource
	}
	service := event.Service
	if service == "" {
		service = s.cfg.Service
	}

	item := datadogV2.HTTPLogItem{
		Ddsource:             datadog.PtrString(source),
		Ddtags:               datadog.PtrString(fmt.Sprintf("env:%s,service:%s", event.Environment, service)),
		Hostname:             datadog.PtrString(s.cfg.Hostname),
		Message:              event.Message(),
		Service:              datadog.PtrString(service),
		AdditionalProperties: stringFields(event.Fields()),
	}

	_, resp, err := s.logs.SubmitLog(
		s.authContext(ctx),
		[]datadogV2.HTTPLogItem{item},
		*datadogV2.NewSubmitLogOptionalParameters(),
	)
	if err != nil {
		return fmt.Errorf("submit log%s: %w", statusSuffix(resp), err)
	}
	return nil
}

func statusSuffix(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return fmt.Sprintf(" (HTTP %d)", resp.StatusCode)
}

// stringFields renders every attribute as a string value of the log
// item's additional properties.
func stringFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = formatValue(v)
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
