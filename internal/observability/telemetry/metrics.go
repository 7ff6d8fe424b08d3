package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync engine
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargebridge_sync_runs_total",
		Help: "Sync runs by outcome",
	}, []string{"mode", "status"})

	SyncFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chargebridge_sync_sessions_fetched_total",
		Help: "Stopped sessions fetched from the charge-point backend",
	})

	SyncPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chargebridge_sync_sessions_persisted_total",
		Help: "Stopped sessions written locally",
	})

	SyncRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chargebridge_sync_run_duration_seconds",
		Help:    "Duration of a full sync run",
		Buckets: prometheus.DefBuckets,
	})

	WatermarkTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chargebridge_sync_watermark_timestamp_seconds",
		Help: "Current ingestion high-water mark as a unix timestamp",
	})

	// Billing
	InvoicesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargebridge_invoices_total",
		Help: "Invoice creation attempts by outcome",
	}, []string{"status"})

	// Identity
	ReconcilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargebridge_reconciles_total",
		Help: "Identity reconciliations by outcome",
	}, []string{"status"})

	KeyRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargebridge_key_rotations_total",
		Help: "API key rotations by outcome",
	}, []string{"status"})
)
