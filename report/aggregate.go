package report

import (
	"time"

	"github.com/javking07/cleanbench/model"
)

// BuildRecord combines one cycle's load report with its concurrently
// collected resource summary into the canonical result row. Latencies
// arrive in nanoseconds and are recorded in milliseconds.
func BuildRecord(targetRPS int, duration time.Duration, rep *model.LoadTestReport, resources model.ResourceSummary) model.TestMetricsRecord {
	return model.TestMetricsRecord{
		AchievedRPS:   rep.AchievedRPS(duration),
		TargetRPS:     targetRPS,
		P50Ms:         float64(rep.Latencies.P50) / 1e6,
		P95Ms:         float64(rep.Latencies.P95) / 1e6,
		P99Ms:         float64(rep.Latencies.P99) / 1e6,
		AvgMs:         float64(rep.Latencies.Mean) / 1e6,
		SuccessRate:   rep.Success,
		ErrorRate:     1 - rep.Success,
		TotalRequests: rep.Requests,
		CPUAvg:        resources.AvgCPU,
		CPUMax:        resources.MaxCPU,
		MemoryAvgMB:   resources.AvgMemoryMB,
		MemoryMaxMB:   resources.MaxMemoryMB,
	}
}
