// Package metrics exposes Prometheus collectors for the ledger and the HTTP
// layer. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billrecords"

type Recorder struct {
	registry         *prometheus.Registry
	billsSaved       prometheus.Counter
	billsDeleted     prometheus.Counter
	validationErrors *prometheus.CounterVec
	storageErrors    *prometheus.CounterVec
	ledgerSize       prometheus.Gauge
	exports          *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		billsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_saved_total",
			Help:      "Bills appended to the ledger.",
		}),
		billsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_deleted_total",
			Help:      "Delete requests applied to the ledger, matched or not.",
		}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Rejected ledger operations by reason.",
		}, []string{"reason"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Snapshot reads or writes that failed.",
		}, []string{"operation"}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_bills",
			Help:      "Bills currently in the ledger.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_exports_total",
			Help:      "Snapshot exports to the spreadsheet by result.",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	r.registry.MustRegister(
		r.billsSaved,
		r.billsDeleted,
		r.validationErrors,
		r.storageErrors,
		r.ledgerSize,
		r.exports,
		r.requestDuration,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Recorder) BillSaved() {
	if r == nil {
		return
	}
	r.billsSaved.Inc()
}

func (r *Recorder) BillDeleted() {
	if r == nil {
		return
	}
	r.billsDeleted.Inc()
}

func (r *Recorder) ValidationFailed(reason string) {
	if r == nil {
		return
	}
	r.validationErrors.WithLabelValues(reason).Inc()
}

func (r *Recorder) StorageFailed(operation string) {
	if r == nil {
		return
	}
	r.storageErrors.WithLabelValues(operation).Inc()
}

func (r *Recorder) SetLedgerSize(n int) {
	if r == nil {
		return
	}
	r.ledgerSize.Set(float64(n))
}

func (r *Recorder) Exported(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.exports.WithLabelValues(result).Inc()
}

func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
