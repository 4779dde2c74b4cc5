package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"gitlab.com/nevasik7/alerting/logger"
)

// Logging writes one line per request once the handler returns
func Logging(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			line := "HTTP %s %s status=%d bytes=%d took=%s ip=%s req_id=%s"
			args := []interface{}{r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start), clientIP(r), middleware.GetReqID(r.Context())}
			if status >= http.StatusInternalServerError {
				log.Errorf(line, args...)
				return
			}
			log.Infof(line, args...)
		})
	}
}
