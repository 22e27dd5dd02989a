package httpmiddleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500 "server error" response.
// It runs outside InjectLogger, so it logs to lg and reads the request id
// from the response headers set by RequestID. When the handler has already
// started the response only the log entry is written. http.ErrAbortHandler
// is re-raised for net/http to abort the connection.
func Recovery(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				lg.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", w.Header().Get(RequestIDHeader)),
					zap.Bool("response_started", ww.Status() != 0),
					zap.Stack("stack"),
				)
				if ww.Status() != 0 {
					return
				}
				w.Header().Set("Connection", "close")
				writeError(w, http.StatusInternalServerError, "server error")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
