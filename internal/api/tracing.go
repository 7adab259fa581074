package api

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// withTracing opens a server span per request. Restoration routes get
// the restoration id as an attribute so a trace can be joined with the
// worker's consumer span for the same job.
func (s *Server) withTracing(next http.Handler) http.Handler {
	if s.tracer == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeLabel(r.URL.Path)
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))

		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
		}
		if id := restorationIDFromTracedPath(r.URL.Path); id != "" {
			attrs = append(attrs, attribute.String("restoration.id", id))
		}
		span.SetAttributes(attrs...)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func restorationIDFromTracedPath(path string) string {
	if !strings.HasPrefix(path, "/v1/restorations/") {
		return ""
	}
	if id, err := extractRestorationIDFromStartPath(path); err == nil {
		return id
	}
	if id, err := extractRestorationIDFromPath(path); err == nil {
		return id
	}
	return ""
}
