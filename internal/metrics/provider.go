package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/any-hub/math-hub"

// Provider 持有 MeterProvider 与 Recorder；Handler 仅在 prometheus 导出时非空。
type Provider struct {
	Recorder Recorder
	Handler  http.Handler

	meterProvider *sdkmetric.MeterProvider
}

// Setup 根据导出器名称构建指标管线：none、prometheus 或 stdout。
func Setup(exporter string) (*Provider, error) {
	switch exporter {
	case "", "none":
		return &Provider{Recorder: Noop()}, nil

	case "prometheus":
		registry := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		provider, err := newProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)))
		if err != nil {
			return nil, err
		}
		provider.Handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		return provider, nil

	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return newProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))))

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", exporter)
	}
}

func newProvider(mp *sdkmetric.MeterProvider) (*Provider, error) {
	recorder, err := NewRecorder(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	return &Provider{Recorder: recorder, meterProvider: mp}, nil
}

// Shutdown 刷新并关闭底层 MeterProvider。
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
