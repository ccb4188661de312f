// Package metrics defines the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsFinished counts jobs reaching a terminal status, labelled by it.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photark",
		Subsystem: "worker",
		Name:      "jobs_finished_total",
		Help:      "Jobs that reached a terminal status.",
	}, []string{"status"})

	// JobsInFlight tracks currently running jobs.
	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photark",
		Subsystem: "worker",
		Name:      "jobs_in_flight",
		Help:      "Jobs currently being executed.",
	})

	// JobEvents counts persisted job events.
	JobEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photark",
		Subsystem: "worker",
		Name:      "job_events_total",
		Help:      "Job events appended to the log.",
	})

	// RPCRequests counts outgoing RPC executions, labelled by rpcid and
	// outcome ("ok" or "error").
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photark",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Outgoing RPC executions.",
	}, []string{"rpcid", "outcome"})

	// PreviewsExpired counts previews removed by the expiry sweep.
	PreviewsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photark",
		Subsystem: "actions",
		Name:      "previews_expired_total",
		Help:      "Previews removed after their TTL elapsed.",
	})

	// UploadsTotal counts file uploads, labelled by outcome
	// ("uploaded", "skipped", "failed").
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photark",
		Subsystem: "upload",
		Name:      "files_total",
		Help:      "File upload attempts by outcome.",
	}, []string{"outcome"})
)
