package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/javking07/cleanbench/model"
)

// sustainableSuccessRate is the floor a cycle must clear for its
// achieved rate to count as sustainable.
const sustainableSuccessRate = 0.95

// EndpointSummary is the cross-rate roll-up for one endpoint.
type EndpointSummary struct {
	Name           string  `json:"name"`
	SustainableRPS float64 `json:"sustainable_rps"`
	CPUAvg         float64 `json:"cpu_avg"`
	CPUMax         float64 `json:"cpu_max"`
	P95AvgMs       float64 `json:"p95_avg_ms"`
	P95MaxMs       float64 `json:"p95_max_ms"`
}

// Summarize rolls every endpoint's records up across rates: the highest
// achieved rate whose success stayed above the sustainable threshold,
// plus average and peak CPU and P95 latency figures.
func Summarize(res *model.RunResult) []EndpointSummary {
	endpoints := res.Endpoints()
	summaries := make([]EndpointSummary, 0, len(endpoints))
	for _, name := range endpoints {
		summary := EndpointSummary{Name: name}
		var cpuSum, p95Sum float64
		count := 0
		for _, rate := range res.Rates() {
			rec, ok := res.Record(rate, name)
			if !ok {
				continue
			}
			if rec.SuccessRate > sustainableSuccessRate && rec.AchievedRPS > summary.SustainableRPS {
				summary.SustainableRPS = rec.AchievedRPS
			}
			cpuSum += rec.CPUAvg
			if rec.CPUAvg > summary.CPUMax {
				summary.CPUMax = rec.CPUAvg
			}
			p95Sum += rec.P95Ms
			if rec.P95Ms > summary.P95MaxMs {
				summary.P95MaxMs = rec.P95Ms
			}
			count++
		}
		if count > 0 {
			summary.CPUAvg = cpuSum / float64(count)
			summary.P95AvgMs = p95Sum / float64(count)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// Render prints the per-rate results tables followed by the endpoint
// analysis sections.
func Render(w io.Writer, res *model.RunResult) {
	nameWidth := 25
	for _, name := range res.Endpoints() {
		if len(name)+2 > nameWidth {
			nameWidth = len(name) + 2
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintln(w, "BENCHMARK RESULTS")
	fmt.Fprintln(w, strings.Repeat("=", 100))

	for _, rate := range res.Rates() {
		fmt.Fprintf(w, "\nRate %d RPS:\n", rate)
		fmt.Fprintf(w, "%-*s %-6s %-8s %-8s %-8s %-8s %-8s %-8s\n",
			nameWidth, "Endpoint", "Target", "Achieved", "P50(ms)", "Avg(ms)", "P95(ms)", "Success%", "CPU Avg%")
		for _, name := range res.Endpoints() {
			rec, ok := res.Record(rate, name)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%-*s %-6d %-8.1f %-8.1f %-8.1f %-8.1f %-8.1f %-8.1f\n",
				nameWidth, name, rec.TargetRPS, rec.AchievedRPS, rec.P50Ms,
				rec.AvgMs, rec.P95Ms, rec.SuccessRate*100, rec.CPUAvg)
		}
	}

	summaries := Summarize(res)

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 80))
	fmt.Fprintln(w, "PERFORMANCE ANALYSIS")
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "Maximum Sustainable RPS (Success Rate > 95%):")
	for _, s := range summaries {
		fmt.Fprintf(w, "  %-*s: %.1f RPS\n", nameWidth, s.Name, s.SustainableRPS)
	}

	anyCPU := false
	for _, s := range summaries {
		if s.CPUMax > 0 {
			anyCPU = true
			break
		}
	}
	if anyCPU {
		fmt.Fprintln(w, "\nCPU Usage Analysis:")
		for _, s := range summaries {
			fmt.Fprintf(w, "  %-*s: %.1f%% avg, %.1f%% max\n", nameWidth, s.Name, s.CPUAvg, s.CPUMax)
		}
	}

	fmt.Fprintln(w, "\nLatency Analysis (P95):")
	for _, s := range summaries {
		fmt.Fprintf(w, "  %-*s: %.1fms avg, %.1fms max\n", nameWidth, s.Name, s.P95AvgMs, s.P95MaxMs)
	}
}
