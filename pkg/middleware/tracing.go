package middleware

import (
	"math/rand/v2"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/tracing"
)

// Tracing opens a root span for a sampled fraction of requests and logs the
// finished span tree at debug level. The trace ID is the request ID, so
// RequestID must run first.
func Tracing(sampleRate float64) func(http.Handler) http.Handler {
	return tracingWithSampler(sampleRate, rand.Float64)
}

func tracingWithSampler(sampleRate float64, sample func() float64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if sampleRate <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sampleRate < 1 && sample() >= sampleRate {
				next.ServeHTTP(w, r)
				return
			}
			ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, logger.RequestID(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
			span.End()
			span.Log()
		})
	}
}
