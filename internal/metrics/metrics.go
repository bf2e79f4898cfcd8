package metrics

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bridge (client-side) metrics
var (
	CommandsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobbridge_commands_submitted_total",
			Help: "Total commands written to the mailbox",
		},
		[]string{"tool"},
	)

	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobbridge_poll_duration_seconds",
			Help:    "Time from command submission to result consumption",
			Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"outcome"},
	)
)

// Processor (remote-side) metrics
var (
	CommandsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobbridge_commands_processed_total",
			Help: "Total commands executed by the processor",
		},
		[]string{"status"},
	)

	ExecDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobbridge_exec_duration_seconds",
			Help:    "Time to execute a single command payload",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 60.0},
		},
		[]string{"status"},
	)

	HeartbeatFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blobbridge_heartbeat_write_failures_total",
			Help: "Heartbeat blob writes that failed",
		},
	)

	ClaimOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobbridge_claim_outcomes_total",
			Help: "Dequeue outcomes per cycle (won, lost_race, already_consumed)",
		},
		[]string{"outcome"},
	)
)

// Sync and maintenance metrics
var (
	SyncFilesTransferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobbridge_sync_files_transferred_total",
			Help: "Files transferred by the sync manager",
		},
		[]string{"direction"},
	)

	SweepDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blobbridge_sweep_deleted_total",
			Help: "Orphaned blobs removed by the sweeper",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobbridge_http_requests_total",
			Help: "Total status API requests",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		CommandsSubmitted,
		PollDuration,
		CommandsProcessed,
		ExecDuration,
		HeartbeatFailures,
		ClaimOutcomes,
		SyncFilesTransferred,
		SweepDeleted,
		HTTPRequestsTotal,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EchoMiddleware returns Echo middleware that counts status API requests.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			HTTPRequestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()
			return err
		}
	}
}

// StartMetricsServer starts a standalone HTTP server serving /metrics on
// the given address.
func StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			// Metrics are non-critical; the daemon keeps running.
		}
	}()
	return srv
}
