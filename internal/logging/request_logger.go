package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger stores a request-scoped entry in the context and logs one
// line per completed request.
func RequestLogger(base *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := logrus.Fields{
				"method":    r.Method,
				"path":      r.URL.Path,
				"remote_ip": r.RemoteAddr,
			}
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				fields["request_id"] = rid
				w.Header().Set(middleware.RequestIDHeader, rid)
			}
			l := base.WithFields(fields)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(IntoContext(r.Context(), l)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			done := l.WithFields(logrus.Fields{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       ww.BytesWritten(),
			})
			switch {
			case status >= 500:
				done.Error("request completed")
			case status >= 400:
				done.Warn("request completed")
			default:
				done.Info("request completed")
			}
		})
	}
}
