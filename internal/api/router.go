package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/api/handler"
	apimw "github.com/notifyhub/user-mail-queue/internal/api/middleware"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. health may be nil, in which case /health always reports ok.
func NewRouter(
	svc *service.MailJobService,
	buf *queue.Buffer,
	reg prometheus.Gatherer,
	health func(ctx context.Context) error,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	jh := handler.NewMailJobHandler(svc, logger)
	mh := handler.NewMetricsHandler(buf)
	hh := handler.NewHealthHandler(health)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/mail-jobs", jh.Schedule)
		r.Get("/mail-jobs/{mailId}/pending", jh.Pending)

		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
