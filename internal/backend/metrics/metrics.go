// Package metrics records upload pipeline telemetry.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures pipeline outcomes. Implementations must be safe for concurrent use.
type Observer interface {
	RecordUpload(duration time.Duration, outcome string, storedBytes int64)
	RecordDegraded(step string)
	RecordStorageError(operation string)
}

// NopObserver discards everything
type NopObserver struct{}

func (NopObserver) RecordUpload(time.Duration, string, int64) {}
func (NopObserver) RecordDegraded(string)                     {}
func (NopObserver) RecordStorageError(string)                 {}

// PrometheusObserver exports pipeline metrics to Prometheus
type PrometheusObserver struct {
	uploadDuration *prometheus.HistogramVec
	uploadBytes    prometheus.Counter
	degradedSteps  *prometheus.CounterVec
	storageErrors  *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "designcase"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Latency of upload requests by outcome code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes of main files stored after optimization.",
		}),
		degradedSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_steps_total",
			Help:      "Optional pipeline steps that failed and were skipped.",
		}, []string{"step"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Failed object storage operations.",
		}, []string{"operation"}),
	}

	var err error
	if observer.uploadDuration, err = register(reg, observer.uploadDuration); err != nil {
		return nil, err
	}
	if observer.uploadBytes, err = register(reg, observer.uploadBytes); err != nil {
		return nil, err
	}
	if observer.degradedSteps, err = register(reg, observer.degradedSteps); err != nil {
		return nil, err
	}
	if observer.storageErrors, err = register(reg, observer.storageErrors); err != nil {
		return nil, err
	}
	return observer, nil
}

// register returns the already registered collector when an identical one exists
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordUpload(duration time.Duration, outcome string, storedBytes int64) {
	if o == nil {
		return
	}
	o.uploadDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if storedBytes > 0 {
		o.uploadBytes.Add(float64(storedBytes))
	}
}

func (o *PrometheusObserver) RecordDegraded(step string) {
	if o == nil {
		return
	}
	o.degradedSteps.WithLabelValues(step).Inc()
}

func (o *PrometheusObserver) RecordStorageError(operation string) {
	if o == nil {
		return
	}
	o.storageErrors.WithLabelValues(operation).Inc()
}

var _ Observer = (*PrometheusObserver)(nil)
