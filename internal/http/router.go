package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Logger             zerolog.Logger
	Metrics            *metrics.ServerMetrics
	Admin              *AdminOrdersHandler
	Reviews            *ReviewSessionHandler
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(cfg.Logger, cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(MaxBodyMiddleware(cfg.MaxRequestBodySize))
	r.Use(MockAuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin/orders/{order_id}", func(r chi.Router) {
			r.Get("/transitions", cfg.Admin.GetTransitions)
			r.Patch("/status", cfg.Admin.ChangeStatus)
		})

		r.Route("/orders/{order_id}/review-session", func(r chi.Router) {
			r.Post("/", cfg.Reviews.Open)
			r.Get("/", cfg.Reviews.Get)
			r.Delete("/", cfg.Reviews.Close)

			r.Post("/draft", cfg.Reviews.OpenDraft)
			r.Patch("/draft", cfg.Reviews.UpdateDraft)
			r.Delete("/draft", cfg.Reviews.CancelDraft)
			r.Post("/draft/submit", cfg.Reviews.SubmitDraft)

			r.Delete("/reviews/{review_id}", cfg.Reviews.RemoveReview)
		})
	})

	return otelhttp.NewHandler(r, "order-lifecycle")
}
