package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/javking07/cleanbench/model"
)

// chartBarWidth is how many characters a full bar spans.
const chartBarWidth = 50

type chartPoint struct {
	label string
	value float64
}

// RenderCharts prints a horizontal bar chart per headline metric, one
// bar per (endpoint, rate) cycle, scaled against the metric's maximum
// across the whole run. Resource charts only appear when the run
// collected resource figures.
func RenderCharts(w io.Writer, res *model.RunResult) {
	renderChart(w, "Achieved RPS", gather(res, func(rec model.TestMetricsRecord) float64 { return rec.AchievedRPS }))
	renderChart(w, "Average Latency (ms)", gather(res, func(rec model.TestMetricsRecord) float64 { return rec.AvgMs }))
	renderChart(w, "P95 Latency (ms)", gather(res, func(rec model.TestMetricsRecord) float64 { return rec.P95Ms }))
	renderChart(w, "Success Rate", gather(res, func(rec model.TestMetricsRecord) float64 { return rec.SuccessRate }))

	cpu := gather(res, func(rec model.TestMetricsRecord) float64 { return rec.CPUAvg })
	if maxValue(cpu) > 0 {
		renderChart(w, "Average CPU %", cpu)
		renderChart(w, "Average Memory (MB)", gather(res, func(rec model.TestMetricsRecord) float64 { return rec.MemoryAvgMB }))
	}
}

// gather flattens one metric into labelled points, endpoints grouped
// together with rates ascending inside each group.
func gather(res *model.RunResult, metric func(model.TestMetricsRecord) float64) []chartPoint {
	points := make([]chartPoint, 0, res.Len())
	for _, name := range res.Endpoints() {
		for _, rate := range res.Rates() {
			rec, ok := res.Record(rate, name)
			if !ok {
				continue
			}
			points = append(points, chartPoint{
				label: fmt.Sprintf("%s@%dRPS", name, rate),
				value: metric(rec),
			})
		}
	}
	return points
}

func maxValue(points []chartPoint) float64 {
	var max float64
	for _, p := range points {
		if p.value > max {
			max = p.value
		}
	}
	return max
}

func renderChart(w io.Writer, title string, points []chartPoint) {
	if len(points) == 0 {
		return
	}
	max := maxValue(points)

	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	for _, p := range points {
		filled := 0
		if max > 0 {
			filled = int(p.value / max * chartBarWidth)
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", chartBarWidth-filled)
		fmt.Fprintf(w, "%-30s %s %.1f\n", p.label, bar, p.value)
	}
}
