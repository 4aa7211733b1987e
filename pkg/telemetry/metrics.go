package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for plugin operations. A Metrics built
// with metrics disabled, or a nil *Metrics, silently drops every observation.
type Metrics struct {
	config MetricsConfig

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	filesCopied      *prometheus.CounterVec
	filesRemoved     *prometheus.CounterVec
	fragmentsGrafted *prometheus.CounterVec
	fragmentsPruned  *prometheus.CounterVec
	errorsByCode     *prometheus.CounterVec
	driftDetections  *prometheus.CounterVec
	policyDenials    *prometheus.CounterVec
	installedPlugins *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of install and uninstall operations",
			},
			[]string{"action", "platform", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of install and uninstall operations in seconds",
				Buckets:   buckets,
			},
			[]string{"action", "platform"},
		),
		filesCopied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_copied_total",
				Help:      "Total number of source files and assets copied into projects",
			},
			[]string{"platform"},
		),
		filesRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_removed_total",
				Help:      "Total number of source files and assets removed from projects",
			},
			[]string{"platform"},
		),
		fragmentsGrafted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragments_grafted_total",
				Help:      "Total number of config-file fragments grafted",
			},
			[]string{"platform"},
		),
		fragmentsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragments_pruned_total",
				Help:      "Total number of config-file fragments pruned",
			},
			[]string{"platform"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
		driftDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_detections_total",
				Help:      "Total number of recorded files found missing",
			},
			[]string{"platform"},
		),
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Total number of installs refused by a policy",
			},
			[]string{"platform"},
		),
		installedPlugins: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "installed_plugins",
				Help:      "Number of plugins recorded as installed in the last listed project",
			},
			[]string{"platform"},
		),
	}

	registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.filesCopied,
		m.filesRemoved,
		m.fragmentsGrafted,
		m.fragmentsPruned,
		m.errorsByCode,
		m.driftDetections,
		m.policyDenials,
		m.installedPlugins,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordOperation records a finished install or uninstall.
func (m *Metrics) RecordOperation(action, platform, status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.operations.WithLabelValues(action, platform, status).Inc()
	m.operationDuration.WithLabelValues(action, platform).Observe(duration.Seconds())
}

// RecordMutations records the file and fragment counts of one operation.
func (m *Metrics) RecordMutations(action, platform string, files, fragments int) {
	if !m.enabled() {
		return
	}
	if action == "uninstall" {
		m.filesRemoved.WithLabelValues(platform).Add(float64(files))
		m.fragmentsPruned.WithLabelValues(platform).Add(float64(fragments))
		return
	}
	m.filesCopied.WithLabelValues(platform).Add(float64(files))
	m.fragmentsGrafted.WithLabelValues(platform).Add(float64(fragments))
}

// RecordError records an error by code.
func (m *Metrics) RecordError(code string) {
	if !m.enabled() || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// RecordDriftDetection records a recorded file found missing from a project.
func (m *Metrics) RecordDriftDetection(platform string) {
	if !m.enabled() {
		return
	}
	m.driftDetections.WithLabelValues(platform).Inc()
}

// RecordPolicyDenial records an install refused by a policy.
func (m *Metrics) RecordPolicyDenial(platform string) {
	if !m.enabled() {
		return
	}
	m.policyDenials.WithLabelValues(platform).Inc()
}

// SetInstalledPlugins sets the installed plugin count for a platform.
func (m *Metrics) SetInstalledPlugins(platform string, count int) {
	if !m.enabled() {
		return
	}
	m.installedPlugins.WithLabelValues(platform).Set(float64(count))
}

// Gatherer exposes the registry, or nil when metrics are disabled.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if !m.enabled() {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the registry to the configured textfile in the
// Prometheus text exposition format.
func (m *Metrics) WriteTextfile() error {
	if !m.enabled() || m.config.Textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.Textfile, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
