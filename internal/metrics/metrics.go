package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Logins counts login attempts by outcome.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendtrack",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	// Marks counts provisional marks by status.
	Marks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendtrack",
		Name:      "marks_total",
		Help:      "Provisional marks recorded during sessions.",
	}, []string{"status"})

	// SessionsSubmitted counts finalized sessions per section.
	SessionsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendtrack",
		Name:      "sessions_submitted_total",
		Help:      "Attendance sessions finalized.",
	}, []string{"section"})

	// Corrections counts correction requests by whether they applied.
	Corrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendtrack",
		Name:      "corrections_total",
		Help:      "Correction requests by result.",
	}, []string{"result"})

	// HistoryRecords is the size of the flat history.
	HistoryRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attendtrack",
		Name:      "history_records",
		Help:      "Records in the flat attendance history.",
	})

	// SnapshotWrites counts snapshot saves by result.
	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendtrack",
		Name:      "snapshot_writes_total",
		Help:      "Snapshot writes by result.",
	}, []string{"result"})

	// Forwarded counts sessions the worker forwarded to the submission service.
	Forwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendtrack",
		Name:      "sessions_forwarded_total",
		Help:      "Sessions forwarded to the submission service by result.",
	}, []string{"result"})
)

// Result turns an error into a label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
