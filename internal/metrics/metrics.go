package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsIssued counts attendance sessions created, including
	// regenerations.
	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_issued_total",
		Help: "Attendance sessions issued.",
	})

	// ScansTotal counts scan attempts by terminal outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_scans_total",
		Help: "Scan attempts by outcome.",
	}, []string{"outcome"})

	// ScansDebounced counts duplicate frames dropped before validation.
	ScansDebounced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_scans_debounced_total",
		Help: "Duplicate scan frames collapsed by the debouncer.",
	})

	// RecordsArchived counts records the worker archived.
	RecordsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_records_archived_total",
		Help: "Attendance records archived by the worker.",
	})
)
