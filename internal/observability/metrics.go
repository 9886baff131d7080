package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes used as the result label.
const (
	ResultSuccess  = "success"
	ResultLocked   = "locked"
	ResultConflict = "conflict"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the complaint pipeline counters.
type Metrics struct {
	Mutations           *prometheus.CounterVec
	OptimisticConflicts *prometheus.CounterVec
	LockDenials         prometheus.Counter
	LockOverrides       prometheus.Counter
	TrackingCollisions  prometheus.Counter
	HistoryFailures     prometheus.Counter
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers the counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_mutations_total",
			Help: "Complaint and information request mutations by operation and result",
		}, []string{"operation", "result"}),
		OptimisticConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_optimistic_conflicts_total",
			Help: "Writes rejected because the stored version moved on",
		}, []string{"entity"}),
		LockDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaints_lock_denials_total",
			Help: "Mutations rejected because another employee holds the complaint",
		}),
		LockOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaints_lock_admin_overrides_total",
			Help: "Admin mutations applied to a complaint locked by an employee",
		}),
		TrackingCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaints_tracking_number_collisions_total",
			Help: "Tracking number candidates discarded because they already existed",
		}),
		HistoryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaints_history_record_failures_total",
			Help: "History entries that could not be written",
		}),
		HTTPErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_http_errors_total",
			Help: "HTTP requests answered with an error, by route and error code",
		}, []string{"route", "method", "code"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Mutations,
			m.OptimisticConflicts,
			m.LockDenials,
			m.LockOverrides,
			m.TrackingCollisions,
			m.HistoryFailures,
			m.HTTPErrors,
		)
	}
	return m
}

// RecordMutation counts one mutation attempt.
func (m *Metrics) RecordMutation(operation, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, result).Inc()
}

// RecordConflict counts one optimistic conflict for entity.
func (m *Metrics) RecordConflict(entity string) {
	if m == nil {
		return
	}
	m.OptimisticConflicts.WithLabelValues(entity).Inc()
}

func (m *Metrics) RecordLockDenied() {
	if m == nil {
		return
	}
	m.LockDenials.Inc()
}

func (m *Metrics) RecordLockOverride() {
	if m == nil {
		return
	}
	m.LockOverrides.Inc()
}

func (m *Metrics) RecordTrackingCollision() {
	if m == nil {
		return
	}
	m.TrackingCollisions.Inc()
}

func (m *Metrics) RecordHistoryFailure() {
	if m == nil {
		return
	}
	m.HistoryFailures.Inc()
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(route, method, code).Inc()
}
