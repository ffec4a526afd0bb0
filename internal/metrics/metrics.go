// Package metrics exposes daemon counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Push feed
	FeedFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tchat_feed_frames_total",
			Help: "Push frames received, by kind",
		},
		[]string{"kind"},
	)

	FeedDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tchat_feed_decode_errors_total",
			Help: "Push frames dropped as malformed",
		},
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tchat_feed_reconnects_total",
			Help: "Push socket reconnect attempts",
		},
	)

	// Stores
	NotificationsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tchat_notifications_received_total",
			Help: "Notifications ingested from the push feed",
		},
	)

	UnreadNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tchat_unread_notifications",
			Help: "Current unread notification count",
		},
	)

	MessagesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tchat_messages_ingested_total",
			Help: "Chat messages ingested, by payload type",
		},
		[]string{"type"},
	)

	// Outbox
	OutboxSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tchat_outbox_sent_total",
			Help: "Outbox deliveries, by result",
		},
		[]string{"result"}, // "ok" or "failed"
	)

	// Backend
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tchat_backend_request_duration_seconds",
			Help:    "Backend REST latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "status"},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
