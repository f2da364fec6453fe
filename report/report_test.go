package report

import (
	"bytes"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/javking07/cleanbench/model"
)

func sampleRun() *model.RunResult {
	res := model.NewRunResult(model.RunMetadata{
		RunID:        "run-one",
		Workers:      4,
		Host:         "localhost",
		Port:         8000,
		Duration:     model.CustomDuration{Duration: 10 * time.Second},
		Timestamp:    time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
		CleanRestart: true,
	})
	res.Insert(100, "db_read", model.TestMetricsRecord{
		TargetRPS: 100, AchievedRPS: 99.8, SuccessRate: 1, P95Ms: 4.2, CPUAvg: 22,
	})
	res.Insert(500, "db_read", model.TestMetricsRecord{
		TargetRPS: 500, AchievedRPS: 480.1, SuccessRate: 0.96, P95Ms: 18.4, CPUAvg: 71,
	})
	res.Insert(1000, "db_read", model.TestMetricsRecord{
		TargetRPS: 1000, AchievedRPS: 640.0, SuccessRate: 0.61, P95Ms: 220.5, CPUAvg: 98,
	})
	res.Insert(100, "cache_read", model.TestMetricsRecord{
		TargetRPS: 100, AchievedRPS: 100, SuccessRate: 1, P95Ms: 1.1, CPUAvg: 9,
	})
	return res
}

func TestPersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	res := sampleRun()

	assert.Nil(t, Persist(dir, res))
	_, err := os.Stat(filepath.Join(dir, ResultsFileName+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file must not survive a persist")

	loaded, err := Load(filepath.Join(dir, ResultsFileName))
	assert.Nil(t, err)
	assert.Equal(t, res.Metadata.RunID, loaded.Metadata.RunID)
	assert.Equal(t, res.Len(), loaded.Len())

	rec, ok := loaded.Record(500, "db_read")
	assert.True(t, ok)
	assert.Equal(t, 480.1, rec.AchievedRPS)
}

func TestPersistIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	res := sampleRun()
	assert.Nil(t, Persist(dir, res))

	res.Insert(750, "db_read", model.TestMetricsRecord{TargetRPS: 750, AchievedRPS: 710})
	assert.Nil(t, Persist(dir, res))

	loaded, err := Load(filepath.Join(dir, ResultsFileName))
	assert.Nil(t, err)
	_, ok := loaded.Record(750, "db_read")
	assert.True(t, ok, "re-persist must pick up records added since the last write")
}

func TestLoadLatest(t *testing.T) {
	root := t.TempDir()

	older := filepath.Join(root, "bench_20210601_120000")
	newer := filepath.Join(root, "bench_20210601_130000")
	assert.Nil(t, os.MkdirAll(older, 0755))
	assert.Nil(t, os.MkdirAll(newer, 0755))
	// unrelated directories and stray files must be skipped
	assert.Nil(t, os.MkdirAll(filepath.Join(root, "scratch"), 0755))
	assert.Nil(t, ioutil.WriteFile(filepath.Join(root, "bench_notadir"), []byte("x"), 0644))

	first := sampleRun()
	first.Metadata.RunID = "older"
	assert.Nil(t, Persist(older, first))

	second := sampleRun()
	second.Metadata.RunID = "newer"
	assert.Nil(t, Persist(newer, second))

	base := time.Now()
	assert.Nil(t, os.Chtimes(filepath.Join(older, ResultsFileName), base.Add(-time.Hour), base.Add(-time.Hour)))
	assert.Nil(t, os.Chtimes(filepath.Join(newer, ResultsFileName), base, base))

	res, path, err := LoadLatest(root)
	assert.Nil(t, err)
	assert.Equal(t, "newer", res.Metadata.RunID)
	assert.Equal(t, filepath.Join(newer, ResultsFileName), path)
}

func TestLoadLatestEmptyRoot(t *testing.T) {
	_, _, err := LoadLatest(t.TempDir())
	assert.NotNil(t, err)
}

func TestPersistSeries(t *testing.T) {
	dir := t.TempDir()
	series := model.ResourceSeries{
		{Timestamp: time.Now(), CPUPercent: 12, RSSMB: 80},
		{Timestamp: time.Now(), CPUPercent: 14, RSSMB: 82},
	}
	path := CPUPath(dir, "db_read", 100)
	assert.Nil(t, PersistSeries(path, series))

	payload, err := ioutil.ReadFile(path)
	assert.Nil(t, err)
	assert.Contains(t, string(payload), `"cpu_percent"`)
}

func TestBuildRecord(t *testing.T) {
	var rep model.LoadTestReport
	rep.Requests = 1000
	rep.Success = 0.9
	rep.Latencies.P50 = 2_000_000
	rep.Latencies.P95 = 5_500_000
	rep.Latencies.P99 = 9_000_000
	rep.Latencies.Mean = 2_500_000

	resources := model.ResourceSummary{
		AvgCPU: 40, MaxCPU: 75, AvgMemoryMB: 120, MaxMemoryMB: 150, Samples: 20,
	}

	rec := BuildRecord(100, 10*time.Second, &rep, resources)
	assert.Equal(t, 100, rec.TargetRPS)
	assert.Equal(t, 90.0, rec.AchievedRPS)
	assert.Equal(t, 2.0, rec.P50Ms)
	assert.Equal(t, 5.5, rec.P95Ms)
	assert.Equal(t, 9.0, rec.P99Ms)
	assert.Equal(t, 2.5, rec.AvgMs)
	assert.Equal(t, 0.9, rec.SuccessRate)
	assert.InDelta(t, 0.1, rec.ErrorRate, 1e-9)
	assert.Equal(t, uint64(1000), rec.TotalRequests)
	assert.Equal(t, 40.0, rec.CPUAvg)
	assert.Equal(t, 75.0, rec.CPUMax)
	assert.Equal(t, 120.0, rec.MemoryAvgMB)
	assert.Equal(t, 150.0, rec.MemoryMaxMB)
}

func TestSummarize(t *testing.T) {
	summaries := Summarize(sampleRun())
	assert.Len(t, summaries, 2)

	byName := map[string]EndpointSummary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}

	dbRead := byName["db_read"]
	// the 61% success cycle must not count as sustainable
	assert.Equal(t, 480.1, dbRead.SustainableRPS)
	assert.InDelta(t, (22.0+71.0+98.0)/3, dbRead.CPUAvg, 1e-9)
	assert.Equal(t, 98.0, dbRead.CPUMax)
	assert.Equal(t, 220.5, dbRead.P95MaxMs)

	cacheRead := byName["cache_read"]
	assert.Equal(t, 100.0, cacheRead.SustainableRPS)
}

func TestSummarizeExactThresholdDoesNotCount(t *testing.T) {
	res := model.NewRunResult(model.RunMetadata{RunID: "edge"})
	res.Insert(100, "db_read", model.TestMetricsRecord{
		TargetRPS: 100, AchievedRPS: 95, SuccessRate: 0.95,
	})
	summaries := Summarize(res)
	assert.Len(t, summaries, 1)
	assert.Equal(t, 0.0, summaries[0].SustainableRPS)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, sampleRun())
	out := buf.String()

	assert.Contains(t, out, "BENCHMARK RESULTS")
	assert.Contains(t, out, "Rate 100 RPS:")
	assert.Contains(t, out, "Rate 1000 RPS:")
	assert.Contains(t, out, "db_read")
	assert.Contains(t, out, "cache_read")
	assert.Contains(t, out, "Maximum Sustainable RPS")
	assert.Contains(t, out, "CPU Usage Analysis:")
	assert.Contains(t, out, "Latency Analysis (P95):")
}

func TestRenderCharts(t *testing.T) {
	var buf bytes.Buffer
	RenderCharts(&buf, sampleRun())
	out := buf.String()

	assert.Contains(t, out, "Achieved RPS")
	assert.Contains(t, out, "P95 Latency (ms)")
	assert.Contains(t, out, "Success Rate")
	assert.Contains(t, out, "Average CPU %")
	assert.Contains(t, out, "db_read@1000RPS")
	assert.Contains(t, out, "cache_read@100RPS")

	// the best cycle of each metric gets a full-width bar
	assert.Contains(t, out, strings.Repeat("█", chartBarWidth))
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	assert.Nil(t, RenderHTML(&buf, sampleRun()))
	out := buf.String()

	assert.Contains(t, out, "<title>Benchmark Results</title>")
	assert.Contains(t, out, "cdn.jsdelivr.net/npm/chart.js")
	assert.Contains(t, out, `new Chart(document.getElementById("achieved")`)
	assert.Contains(t, out, `"label":"db_read"`)
	assert.Contains(t, out, "run-one")
	assert.Contains(t, out, "Max Sustainable RPS")
	assert.Contains(t, out, "480.1")
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	assert.Nil(t, WriteHTML(path, sampleRun()))

	payload, err := ioutil.ReadFile(path)
	assert.Nil(t, err)
	assert.Contains(t, string(payload), "Performance Analysis")
}

type fakeStorage struct {
	inserted map[string][]byte
	fail     bool
}

func (f *fakeStorage) Init(string) error { return nil }
func (f *fakeStorage) Insert(name string, payload []byte) (int64, error) {
	if f.fail {
		return 0, errors.New("connection refused")
	}
	if f.inserted == nil {
		f.inserted = map[string][]byte{}
	}
	f.inserted[name] = payload
	return 1, nil
}
func (f *fakeStorage) SelectAll(int, int) ([]byte, error) { return nil, nil }
func (f *fakeStorage) Healthy() error                     { return nil }
func (f *fakeStorage) Purge(string) error                 { return nil }
func (f *fakeStorage) Close() error                       { return nil }

func TestArchive(t *testing.T) {
	storage := &fakeStorage{}
	res := sampleRun()

	assert.Nil(t, Archive(storage, res))
	payload, ok := storage.inserted["run-one"]
	assert.True(t, ok)
	assert.Contains(t, string(payload), `"achieved_rps"`)

	assert.NotNil(t, Archive(&fakeStorage{fail: true}, res))
}
