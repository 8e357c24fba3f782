package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder 记录缓存查找、渲染与持久化失败指标。实现必须并发安全且不 panic。
type Recorder interface {
	RecordLookup(ctx context.Context, route string, hit bool)
	RecordRender(ctx context.Context, route string, duration time.Duration, errKind string)
	RecordPersistFailure(ctx context.Context, format string)
}

type recorder struct {
	lookups         metric.Int64Counter
	renders         metric.Int64Counter
	renderErrors    metric.Int64Counter
	renderDuration  metric.Float64Histogram
	persistFailures metric.Int64Counter
}

// NewRecorder 基于给定 Meter 创建指标。
func NewRecorder(meter metric.Meter) (Recorder, error) {
	lookups, err := meter.Int64Counter(
		"mathhub.lookup.total",
		metric.WithDescription("Cache lookups by route and hit status"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	renders, err := meter.Int64Counter(
		"mathhub.render.total",
		metric.WithDescription("Render pipeline invocations"),
		metric.WithUnit("{render}"),
	)
	if err != nil {
		return nil, err
	}

	renderErrors, err := meter.Int64Counter(
		"mathhub.render.errors",
		metric.WithDescription("Failed render pipeline invocations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	renderDuration, err := meter.Float64Histogram(
		"mathhub.render.duration_ms",
		metric.WithDescription("Render pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	persistFailures, err := meter.Int64Counter(
		"mathhub.cache.persist_failures",
		metric.WithDescription("Best-effort cache writes that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &recorder{
		lookups:         lookups,
		renders:         renders,
		renderErrors:    renderErrors,
		renderDuration:  renderDuration,
		persistFailures: persistFailures,
	}, nil
}

func (r *recorder) RecordLookup(ctx context.Context, route string, hit bool) {
	r.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.Bool("hit", hit),
	))
}

// RecordRender 记录一次渲染；errKind 为空表示成功。
func (r *recorder) RecordRender(ctx context.Context, route string, duration time.Duration, errKind string) {
	opt := metric.WithAttributes(attribute.String("route", route))
	r.renders.Add(ctx, 1, opt)
	r.renderDuration.Record(ctx, float64(duration.Milliseconds()), opt)
	if errKind != "" {
		r.renderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("kind", errKind),
		))
	}
}

func (r *recorder) RecordPersistFailure(ctx context.Context, format string) {
	r.persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

type noopRecorder struct{}

// Noop 返回不做任何事情的 Recorder。
func Noop() Recorder {
	return noopRecorder{}
}

func (noopRecorder) RecordLookup(context.Context, string, bool) {}
func (noopRecorder) RecordRender(context.Context, string, time.Duration, string) {}
func (noopRecorder) RecordPersistFailure(context.Context, string) {}
