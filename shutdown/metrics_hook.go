package shutdown

import (
	"context"

	"mini-rpc/metrics"
)

// MetricsHookPriority matches MetricsShutdownHook.java's low priority —
// other components' final metrics should be collected before the metrics
// manager itself goes down.
const MetricsHookPriority = 80

// NewMetricsHook builds a Hook that logs a final metrics report and stops
// periodic reporting, mirroring MetricsShutdownHook.java.
func NewMetricsHook(m *metrics.Manager) Hook {
	return NewHook("metrics-manager", MetricsHookPriority, func(ctx context.Context) error {
		m.GenerateReport()
		m.DisableReporting()
		return nil
	})
}
