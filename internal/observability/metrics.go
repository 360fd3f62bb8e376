package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/makersmarket/session-auth-service/internal/config"
)

type appMetricSet struct {
	authLoginCounter         metric.Int64Counter
	authLogoutCounter        metric.Int64Counter
	sessionValidationCounter metric.Int64Counter
	storeOpCounter           metric.Int64Counter
	repoOpCounter            metric.Int64Counter
	sweepCounter             metric.Int64Counter
	rateLimitCounter         metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *appMetricSet
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("session-auth-service")
	set := &appMetricSet{}
	for _, c := range []struct {
		name string
		dst  *metric.Int64Counter
	}{
		{"auth.login.attempts", &set.authLoginCounter},
		{"auth.logout.attempts", &set.authLogoutCounter},
		{"session.validation.events", &set.sessionValidationCounter},
		{"session.store.operations", &set.storeOpCounter},
		{"repository.operations", &set.repoOpCounter},
		{"session.sweep.removed", &set.sweepCounter},
		{"ratelimit.decisions", &set.rateLimitCounter},
	} {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	metricsMu.Lock()
	appMetrics = set
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func currentMetrics() *appMetricSet {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	return m
}

func RecordAuthLogin(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(ctx context.Context, scope, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("status", status),
		),
	)
}

// RecordSessionValidation counts gateway-level token checks. source is
// where the token came from (bearer, cookie or none).
func RecordSessionValidation(ctx context.Context, result, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionValidationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("result", result),
			attribute.String("source", source),
		),
	)
}

func RecordSessionStoreOperation(ctx context.Context, backend, op, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.storeOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

func RecordRepositoryOperation(ctx context.Context, entity, op, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repoOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

func RecordSessionSweep(ctx context.Context, backend string, removed int) {
	m := currentMetrics()
	if m == nil || removed <= 0 {
		return
	}
	m.sweepCounter.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("backend", backend)))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("decision", decision),
		),
	)
}
