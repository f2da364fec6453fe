package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/javking07/cleanbench/model"
)

// chartColors is the dataset palette of the rendered page, one color
// cycled per endpoint.
var chartColors = []string{"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF", "#FF9F40"}

type chartXY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type chartDataset struct {
	Label           string    `json:"label"`
	Data            []chartXY `json:"data"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
	Tension         float64   `json:"tension"`
}

type chartConfig struct {
	Type string `json:"type"`
	Data struct {
		Datasets []chartDataset `json:"datasets"`
	} `json:"data"`
	Options map[string]interface{} `json:"options"`
}

type pageChart struct {
	ID     string
	Config template.JS
}

type pageRow struct {
	Endpoint string
	Rec      model.TestMetricsRecord
}

type pageView struct {
	Metadata  model.RunMetadata
	Endpoints []string
	Rates     []int
	Total     int
	Charts    []pageChart
	Rows      []pageRow
	Summaries []EndpointSummary
}

// lineChart builds one Chart.js config plotting a metric against the
// target rate, one dataset per endpoint.
func lineChart(res *model.RunResult, id, title, yLabel string, metric func(model.TestMetricsRecord) float64) (pageChart, error) {
	cfg := chartConfig{Type: "line"}
	for i, name := range res.Endpoints() {
		color := chartColors[i%len(chartColors)]
		ds := chartDataset{
			Label:           name,
			Data:            make([]chartXY, 0, len(res.Rates())),
			BorderColor:     color,
			BackgroundColor: color + "20",
			Tension:         0.1,
		}
		for _, rate := range res.Rates() {
			rec, ok := res.Record(rate, name)
			if !ok {
				continue
			}
			ds.Data = append(ds.Data, chartXY{X: float64(rate), Y: metric(rec)})
		}
		cfg.Data.Datasets = append(cfg.Data.Datasets, ds)
	}
	cfg.Options = map[string]interface{}{
		"responsive": true,
		"scales": map[string]interface{}{
			"x": map[string]interface{}{
				"type":  "linear",
				"title": map[string]interface{}{"display": true, "text": "Target Rate (RPS)"},
			},
			"y": map[string]interface{}{
				"type":  "linear",
				"title": map[string]interface{}{"display": true, "text": yLabel},
			},
		},
		"plugins": map[string]interface{}{
			"title": map[string]interface{}{"display": true, "text": title},
		},
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return pageChart{}, err
	}
	return pageChart{ID: id, Config: template.JS(payload)}, nil
}

// RenderHTML writes the report page for a run. Charts render
// client-side from embedded data, so the page stays a single file.
func RenderHTML(w io.Writer, res *model.RunResult) error {
	view := pageView{
		Metadata:  res.Metadata,
		Endpoints: res.Endpoints(),
		Rates:     res.Rates(),
		Total:     res.Len(),
		Summaries: Summarize(res),
	}

	charts := []struct {
		id, title, yLabel string
		metric            func(model.TestMetricsRecord) float64
	}{
		{"achieved", "Achieved RPS vs Target Rate", "Achieved RPS", func(rec model.TestMetricsRecord) float64 { return rec.AchievedRPS }},
		{"p95", "P95 Latency vs Target Rate", "P95 (ms)", func(rec model.TestMetricsRecord) float64 { return rec.P95Ms }},
		{"avg", "Average Latency vs Target Rate", "Avg (ms)", func(rec model.TestMetricsRecord) float64 { return rec.AvgMs }},
		{"success", "Success Rate vs Target Rate", "Success Rate", func(rec model.TestMetricsRecord) float64 { return rec.SuccessRate }},
		{"cpu", "CPU Usage vs Target Rate", "CPU %", func(rec model.TestMetricsRecord) float64 { return rec.CPUAvg }},
		{"memory", "Memory Usage vs Target Rate", "Memory (MB)", func(rec model.TestMetricsRecord) float64 { return rec.MemoryAvgMB }},
	}
	for _, c := range charts {
		chart, err := lineChart(res, c.id, c.title, c.yLabel, c.metric)
		if err != nil {
			return err
		}
		view.Charts = append(view.Charts, chart)
	}

	for _, name := range view.Endpoints {
		for _, rate := range view.Rates {
			rec, ok := res.Record(rate, name)
			if !ok {
				continue
			}
			view.Rows = append(view.Rows, pageRow{Endpoint: name, Rec: rec})
		}
	}

	return reportPage.Execute(w, view)
}

// WriteHTML renders the report page to path.
func WriteHTML(path string, res *model.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := RenderHTML(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var reportPage = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<title>Benchmark Results</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
.header { text-align: center; margin-bottom: 30px; }
.chart { width: 100%; height: 400px; margin: 20px 0; }
.summary { background: #f5f5f5; padding: 20px; border-radius: 5px; margin: 20px 0; }
.endpoint { margin: 10px 0; padding: 10px; background: #e9ecef; border-radius: 3px; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
</style>
</head>
<body>
<div class="header">
<h1>Benchmark Results</h1>
<p>run {{.Metadata.RunID}} started {{.Metadata.Timestamp.Format "2006-01-02 15:04:05"}}</p>
</div>

<div class="summary">
<h2>Summary</h2>
<p><strong>Endpoints tested:</strong> {{range $i, $e := .Endpoints}}{{if $i}}, {{end}}{{$e}}{{end}}</p>
<p><strong>Rates tested:</strong> {{range $i, $r := .Rates}}{{if $i}}, {{end}}{{$r}}{{end}} RPS</p>
<p><strong>Total tests:</strong> {{.Total}}</p>
<p><strong>Workers:</strong> {{.Metadata.Workers}}</p>
<p><strong>Host:</strong> {{.Metadata.Host}}:{{.Metadata.Port}}</p>
<p><strong>Duration:</strong> {{.Metadata.Duration}} per test</p>
</div>

<h2>Performance Charts</h2>
{{range .Charts}}
<div class="chart"><canvas id="{{.ID}}"></canvas></div>
<script>new Chart(document.getElementById("{{.ID}}"), {{.Config}});</script>
{{end}}

<h2>Detailed Results</h2>
<table>
<tr><th>Endpoint</th><th>Rate</th><th>Achieved RPS</th><th>P50 (ms)</th><th>Avg (ms)</th><th>P95 (ms)</th><th>Success</th><th>CPU Avg %</th><th>Memory Avg (MB)</th></tr>
{{range .Rows}}
<tr>
<td>{{.Endpoint}}</td>
<td>{{.Rec.TargetRPS}}</td>
<td>{{printf "%.1f" .Rec.AchievedRPS}}</td>
<td>{{printf "%.1f" .Rec.P50Ms}}</td>
<td>{{printf "%.1f" .Rec.AvgMs}}</td>
<td>{{printf "%.1f" .Rec.P95Ms}}</td>
<td>{{pct .Rec.SuccessRate}}</td>
<td>{{printf "%.1f" .Rec.CPUAvg}}</td>
<td>{{printf "%.1f" .Rec.MemoryAvgMB}}</td>
</tr>
{{end}}
</table>

<div class="summary">
<h2>Performance Analysis</h2>
{{range .Summaries}}
<div class="endpoint">
<h3>{{.Name}}</h3>
<p><strong>Max Sustainable RPS (Success &gt; 95%):</strong> {{printf "%.1f" .SustainableRPS}}</p>
<p><strong>Average CPU Usage:</strong> {{printf "%.1f" .CPUAvg}}%</p>
<p><strong>Average P95 Latency:</strong> {{printf "%.1f" .P95AvgMs}}ms</p>
</div>
{{end}}
</div>
</body>
</html>
`))
