package daemon

import (
	"context"
	"os"
	"time"

	"github.com/vpittamp/i3pm/internal/proc"
)

// SubsystemStatus is one health check verdict.
type SubsystemStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// HealthReport aggregates the daemon's subsystem checks.
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	UptimeSecs int               `json:"uptime_seconds"`
	Subsystems []SubsystemStatus `json:"subsystems"`
}

func (d *Daemon) healthReport(ctx context.Context) HealthReport {
	report := HealthReport{
		UptimeSecs: int(time.Since(d.startedAt).Seconds()),
	}

	compositor := SubsystemStatus{Name: "compositor", Healthy: true}
	if _, err := d.client.GetWorkspaces(ctx); err != nil {
		compositor.Healthy = false
		compositor.Detail = err.Error()
	}
	report.Subsystems = append(report.Subsystems, compositor)

	store := SubsystemStatus{Name: "state_store", Healthy: d.store.Initialized()}
	if !store.Healthy {
		store.Detail = "initial tree refresh not completed"
	}
	report.Subsystems = append(report.Subsystems, store)

	tier1 := SubsystemStatus{Name: "environ_reader", Healthy: true}
	if !d.env.Available() {
		tier1.Detail = "tier-1 matching unavailable on this platform"
	} else {
		stats := d.env.Stats()
		if stats.Count > 0 && stats.P95 > 10*time.Millisecond {
			tier1.Healthy = false
			tier1.Detail = "p95 environ latency above 10ms"
		}
	}
	report.Subsystems = append(report.Subsystems, tier1)

	db := SubsystemStatus{Name: "history_db", Healthy: true}
	if err := d.db.Ping(); err != nil {
		db.Healthy = false
		db.Detail = err.Error()
	}
	report.Subsystems = append(report.Subsystems, db)

	report.Healthy = true
	for _, s := range report.Subsystems {
		if !s.Healthy {
			report.Healthy = false
			break
		}
	}
	return report
}

// BenchmarkResult reports the environ read benchmark against the latency
// contract: average < 1 ms, p95 < 10 ms, total for 100 reads < 100 ms.
type BenchmarkResult struct {
	Samples   int     `json:"samples"`
	AverageMs float64 `json:"average_ms"`
	P95Ms     float64 `json:"p95_ms"`
	TotalMs   float64 `json:"total_ms"`
	Status    string  `json:"status"` // PASS or FAIL
	Available bool    `json:"tier1_available"`
}

func (d *Daemon) benchmarkEnviron(ctx context.Context, samples int) BenchmarkResult {
	if !d.env.Available() {
		return BenchmarkResult{Samples: 0, Status: "PASS", Available: false}
	}

	// Benchmark against a fresh reader so the cache cannot hide the
	// filesystem cost.
	reader := proc.NewProcEnvironment("/proc")
	pid := os.Getpid()

	start := time.Now()
	durations := make([]time.Duration, 0, samples)
	for i := 0; i < samples; i++ {
		t0 := time.Now()
		reader.ReadUncached(ctx, pid)
		durations = append(durations, time.Since(t0))
	}
	total := time.Since(start)

	stats := summarize(durations)
	result := BenchmarkResult{
		Samples:   samples,
		AverageMs: float64(stats.avg) / float64(time.Millisecond),
		P95Ms:     float64(stats.p95) / float64(time.Millisecond),
		TotalMs:   float64(total) / float64(time.Millisecond),
		Available: true,
	}

	perHundred := total * 100 / time.Duration(samples)
	if stats.avg < time.Millisecond && stats.p95 < 10*time.Millisecond && perHundred < 100*time.Millisecond {
		result.Status = "PASS"
	} else {
		result.Status = "FAIL"
	}
	return result
}

type durationSummary struct {
	avg time.Duration
	p95 time.Duration
}

func summarize(durations []time.Duration) durationSummary {
	if len(durations) == 0 {
		return durationSummary{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	idx := len(sorted) * 95 / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return durationSummary{avg: sum / time.Duration(len(sorted)), p95: sorted[idx]}
}
