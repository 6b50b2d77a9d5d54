package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PollCount counts inbox polls by outcome (ok, error, stale).
	PollCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_inbox_polls_total",
			Help: "Number of inbox polls by outcome",
		},
		[]string{"result"},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claims_inbox_poll_duration_seconds",
			Help:    "Duration of inbox fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NewUnread counts records announced as newly arrived and unread.
	NewUnread = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "claims_inbox_new_unread_total",
			Help: "Number of newly arrived unread notifications",
		},
	)

	UnreadGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "claims_inbox_unread",
			Help: "Current unread count of the active inbox",
		},
	)

	// ToastEvents counts toast lifecycle events (shown, dismissed, expired, clicked).
	ToastEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_inbox_toast_events_total",
			Help: "Number of toast queue events",
		},
		[]string{"event"},
	)

	// CommandCount counts inbox commands by name and result status.
	CommandCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_inbox_commands_total",
			Help: "Number of inbox commands by outcome",
		},
		[]string{"command", "status"},
	)
)

func Init() {
	prometheus.MustRegister(PollCount, PollDuration, NewUnread, UnreadGauge, ToastEvents, CommandCount)
}

// Serve exposes /metrics on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
