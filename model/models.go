package model

import (
	"encoding/json"
	"sort"
	"time"
)

// EndpointSpec names one benchmarkable route of the service under test.
// Path is a chi-style template; the {itemID} placeholder is substituted
// with a fixture id before targets are written.
type EndpointSpec struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// ResourceSample is one probe reading of the server process.
type ResourceSample struct {
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSMB      float64   `json:"rss_mb"`
}

// ResourceSeries is the sealed, ordered sample set of one test cycle.
type ResourceSeries []ResourceSample

// ResourceSummary reduces a ResourceSeries to the figures that end up in
// a TestMetricsRecord.
type ResourceSummary struct {
	AvgCPU      float64 `json:"avg_cpu"`
	MaxCPU      float64 `json:"max_cpu"`
	AvgMemoryMB float64 `json:"avg_memory_mb"`
	MaxMemoryMB float64 `json:"max_memory_mb"`
	Samples     int     `json:"samples"`
}

// LoadTestReport is the load generator's JSON report for one cycle.
// Field layout follows the vegeta report format; latency values are
// nanoseconds.
type LoadTestReport struct {
	Latencies struct {
		Total int64 `json:"total"`
		Mean  int64 `json:"mean"`
		P50   int64 `json:"50th"`
		P95   int64 `json:"95th"`
		P99   int64 `json:"99th"`
		Max   int64 `json:"max"`
	} `json:"latencies"`
	BytesIn struct {
		Total uint64  `json:"total"`
		Mean  float64 `json:"mean"`
	} `json:"bytes_in"`
	BytesOut struct {
		Total uint64  `json:"total"`
		Mean  float64 `json:"mean"`
	} `json:"bytes_out"`
	Earliest    time.Time      `json:"earliest"`
	Latest      time.Time      `json:"latest"`
	End         time.Time      `json:"end"`
	Duration    int64          `json:"duration"`
	Wait        int64          `json:"wait"`
	Requests    uint64         `json:"requests"`
	Rate        float64        `json:"rate"`
	Throughput  float64        `json:"throughput"`
	Success     float64        `json:"success"`
	StatusCodes map[string]int `json:"status_codes"`
	Errors      []string       `json:"errors"`
}

// AchievedRPS is successfully completed requests per second over the
// nominal test window. The generator's rate field reports attempted
// pacing and hides failed requests, so throughput is derived from the
// success fraction instead.
func (r *LoadTestReport) AchievedRPS(duration time.Duration) float64 {
	secs := duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Requests) * r.Success / secs
}

// TestMetricsRecord is the canonical per-(rate, endpoint) result row.
type TestMetricsRecord struct {
	AchievedRPS   float64 `json:"achieved_rps"`
	TargetRPS     int     `json:"target_rps"`
	P50Ms         float64 `json:"p50_ms"`
	P95Ms         float64 `json:"p95_ms"`
	P99Ms         float64 `json:"p99_ms"`
	AvgMs         float64 `json:"avg_ms"`
	SuccessRate   float64 `json:"success_rate"`
	ErrorRate     float64 `json:"error_rate"`
	TotalRequests uint64  `json:"total_requests"`
	CPUAvg        float64 `json:"cpu_avg"`
	CPUMax        float64 `json:"cpu_max"`
	MemoryAvgMB   float64 `json:"memory_avg_mb"`
	MemoryMaxMB   float64 `json:"memory_max_mb"`
}

// RunMetadata is the configuration snapshot stored with every run.
type RunMetadata struct {
	RunID        string         `json:"run_id"`
	Workers      int            `json:"workers"`
	Host         string         `json:"host"`
	Port         int            `json:"port"`
	Duration     CustomDuration `json:"duration"`
	Timestamp    time.Time      `json:"timestamp"`
	CleanRestart bool           `json:"clean_restart"`
}

// RunResult is the persisted artifact of a whole run: metadata plus one
// TestMetricsRecord per (rate, endpoint) pair. The orchestrator is its
// only writer; cycles run strictly one after another.
type RunResult struct {
	Metadata RunMetadata                          `json:"metadata"`
	Results  map[int]map[string]TestMetricsRecord `json:"results"`
}

func NewRunResult(meta RunMetadata) *RunResult {
	return &RunResult{
		Metadata: meta,
		Results:  make(map[int]map[string]TestMetricsRecord),
	}
}

// Insert stores the record under (rate, endpoint), replacing any earlier
// record for the pair.
func (r *RunResult) Insert(rate int, endpoint string, rec TestMetricsRecord) {
	if r.Results == nil {
		r.Results = make(map[int]map[string]TestMetricsRecord)
	}
	byEndpoint, ok := r.Results[rate]
	if !ok {
		byEndpoint = make(map[string]TestMetricsRecord)
		r.Results[rate] = byEndpoint
	}
	byEndpoint[endpoint] = rec
}

// Record looks up the result for one (rate, endpoint) pair.
func (r *RunResult) Record(rate int, endpoint string) (TestMetricsRecord, bool) {
	byEndpoint, ok := r.Results[rate]
	if !ok {
		return TestMetricsRecord{}, false
	}
	rec, ok := byEndpoint[endpoint]
	return rec, ok
}

// Len reports how many records the run holds.
func (r *RunResult) Len() int {
	n := 0
	for _, byEndpoint := range r.Results {
		n += len(byEndpoint)
	}
	return n
}

// Rates returns the tested rates in ascending order.
func (r *RunResult) Rates() []int {
	rates := make([]int, 0, len(r.Results))
	for rate := range r.Results {
		rates = append(rates, rate)
	}
	sort.Ints(rates)
	return rates
}

// Endpoints returns the union of endpoint names across all rates, sorted.
func (r *RunResult) Endpoints() []string {
	seen := map[string]struct{}{}
	for _, byEndpoint := range r.Results {
		for name := range byEndpoint {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Payload is one archived run row as returned by Storage.SelectAll.
type Payload struct {
	ID   int             `json:"id"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Storage archives finished run documents, keyed by run id.
type Storage interface {
	Init(query string) error
	Insert(name string, payload []byte) (int64, error)
	SelectAll(count, start int) ([]byte, error)
	Healthy() error
	Purge(table string) error
	Close() error
}
