// Package metrics provides Prometheus metrics for rouster sessions.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "rouster"

// Label values.
const (
	LocationLocal  = "local"
	LocationRemote = "remote"

	DirectionSend  = "send"
	DirectionFetch = "fetch"

	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Recorder holds the session metrics on its own registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// CommandsTotal counts executed commands.
	// Labels: location (local, remote), result (success, failure, error)
	CommandsTotal *prometheus.CounterVec

	// CommandDuration tracks wall time of executed commands.
	// Labels: location
	CommandDuration *prometheus.HistogramVec

	// TransfersTotal counts file transfers.
	// Labels: direction (send, fetch), result (success, error)
	TransfersTotal *prometheus.CounterVec
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "commands_total",
				Help:      "Total number of commands executed",
			},
			[]string{"location", "result"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of command execution in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"location"},
		),
		TransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transfers_total",
				Help:      "Total number of file transfers",
			},
			[]string{"direction", "result"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveCommand records one command execution.
func (r *Recorder) ObserveCommand(location, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.CommandsTotal.WithLabelValues(location, result).Inc()
	r.CommandDuration.WithLabelValues(location).Observe(elapsed.Seconds())
}

// ObserveTransfer records one file transfer.
func (r *Recorder) ObserveTransfer(direction, result string) {
	if r == nil {
		return
	}
	r.TransfersTotal.WithLabelValues(direction, result).Inc()
}

// WriteTextfile writes all metrics to path in the node_exporter textfile
// collector format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
