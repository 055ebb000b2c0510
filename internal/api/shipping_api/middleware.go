package shipping_api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging puts a request-scoped logger into the context and logs one line per request.
// Must run after middleware.RequestID.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		logger := slog.Default().With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logging.WithLogger(r.Context(), logger))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// NewRouter wires the middleware chain and the /v1 routes.
func NewRouter(api *ShippingAPI) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logging)
	r.Use(middleware.Recoverer)
	api.Routes(r)
	return r
}
