// Package telemetry provides logging, tracing and metrics for plugman.
//
// Structured logging uses zerolog, tracing uses OpenTelemetry and metrics use
// a private Prometheus registry that is written to a textfile on shutdown.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Library code retrieves its logger from the context and adds the fields that
// identify the operation:
//
//	logger := telemetry.FromContext(ctx).WithPlugin(id).WithPlatform("android")
//	logger.Info("copying source files")
//
// A context without a logger yields a logger that discards output, so
// packages can log unconditionally.
//
// # Metrics
//
// All metrics live under the configured namespace (default "plugman"):
//
//   - operations_total{action,platform,status}
//   - operation_duration_seconds{action,platform}
//   - files_copied_total, files_removed_total{platform}
//   - fragments_grafted_total, fragments_pruned_total{platform}
//   - errors_by_code_total{code}
//   - drift_detections_total{platform}
//   - installed_plugins{platform}
//
// Every recording method is safe on a disabled or nil *Metrics.
package telemetry
