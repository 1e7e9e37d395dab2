// Package metrics ships reconciliation run statistics to InfluxDB when the
// environment configures it. A nil reporter disables the whole concern.
package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/edgeops/converge/kernel/model"
	"github.com/michaelquigley/pfxlog"
)

type Reporter struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// NewReporter returns nil when metrics are disabled; callers treat a nil
// reporter as a no-op sink.
func NewReporter(cfg model.MetricsConfig) *Reporter {
	if !cfg.Enabled {
		return nil
	}
	client := influxdb2.NewClient(cfg.Endpoint, cfg.Token)
	return &Reporter{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// ReportRun writes one point per run. Failures are logged, never surfaced:
// a down metrics backend must not degrade a reconciliation.
func (r *Reporter) ReportRun(ctx context.Context, report *model.ConvergenceReport) {
	if r == nil {
		return
	}
	converged, failed, skipped, unmanaged := report.Counts()
	point := influxdb2.NewPoint("reconciliation",
		map[string]string{
			"environment": report.Environment,
			"state":       string(report.State),
		},
		map[string]interface{}{
			"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
			"converged":   converged,
			"failed":      failed,
			"skipped":     skipped,
			"unmanaged":   unmanaged,
		},
		time.Now())
	if err := r.write.WritePoint(ctx, point); err != nil {
		pfxlog.Logger().WithError(err).Warn("unable to write run metrics")
	}
}

func (r *Reporter) Close() {
	if r != nil {
		r.client.Close()
	}
}
