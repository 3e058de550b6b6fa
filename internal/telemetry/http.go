package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPHandler wraps h with server spans and request metrics. Disabled
// providers return h unchanged.
func (p *Provider) HTTPHandler(h http.Handler, operation string) http.Handler {
	if p == nil || !p.Enabled {
		return h
	}
	return otelhttp.NewHandler(h, operation,
		otelhttp.WithTracerProvider(p.TracerProvider()),
		otelhttp.WithMeterProvider(p.MeterProvider()),
	)
}
