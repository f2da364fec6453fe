package loadgen

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/javking07/cleanbench/model"
)

func TestTargetURL(t *testing.T) {
	tests := map[string]struct {
		endpoint model.EndpointSpec
		want     string
	}{
		"item placeholder is substituted": {
			endpoint: model.EndpointSpec{Name: "db_read", Method: "GET", Path: "/api/db/read/{itemID}"},
			want:     "http://localhost:8000/api/db/read/1000",
		},
		"plain path passes through": {
			endpoint: model.EndpointSpec{Name: "simple_sleep", Method: "GET", Path: "/api/simple/sleep"},
			want:     "http://localhost:8000/api/simple/sleep",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, TargetURL(test.endpoint, "localhost", 8000))
		})
	}
}

func TestWriteTargets(t *testing.T) {
	dir := t.TempDir()
	endpoint := model.EndpointSpec{Name: "db_write", Method: "POST", Path: "/api/db/write/{itemID}"}

	path, err := WriteTargets(dir, endpoint, "127.0.0.1", 9001)
	assert.Nil(t, err)
	assert.Equal(t, filepath.Join(dir, "t_db_write.txt"), path)

	content, err := ioutil.ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, "POST http://127.0.0.1:9001/api/db/write/1000\n", string(content))
}

func TestVegetaSourceAttackAndConvert(t *testing.T) {
	var hits int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/simple/json/1000", r.URL.Path)
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	parsed, err := url.Parse(ts.URL)
	assert.Nil(t, err)
	host, portStr, err := net.SplitHostPort(parsed.Host)
	assert.Nil(t, err)
	port, err := strconv.Atoi(portStr)
	assert.Nil(t, err)

	dir := t.TempDir()
	endpoint := model.EndpointSpec{Name: "simple_json", Method: "GET", Path: "/api/simple/json/{itemID}"}
	targets, err := WriteTargets(dir, endpoint, host, port)
	assert.Nil(t, err)

	source := NewVegetaSource()
	binPath := filepath.Join(dir, "simple_json_5.bin")
	err = source.Attack(context.Background(), AttackSpec{
		Name:        "simple_json",
		TargetsFile: targets,
		Rate:        5,
		Duration:    time.Second,
		OutputBin:   binPath,
	})
	assert.Nil(t, err)

	jsonPath := filepath.Join(dir, "simple_json_5.json")
	report, err := source.Convert(binPath, jsonPath)
	assert.Nil(t, err)

	assert.True(t, report.Requests > 0)
	assert.Equal(t, 1.0, report.Success)
	assert.Equal(t, int64(report.Requests), atomic.LoadInt64(&hits),
		"every generated request must have reached the server")
	assert.Equal(t, int(report.Requests), report.StatusCodes["200"])
	assert.True(t, report.Latencies.P95 > 0)

	// the intermediate json artifact must itself be a parseable report
	saved, err := ioutil.ReadFile(jsonPath)
	assert.Nil(t, err)
	assert.Contains(t, string(saved), `"latencies"`)
}

func TestVegetaSourceAttackCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	parsed, err := url.Parse(ts.URL)
	assert.Nil(t, err)
	host, portStr, err := net.SplitHostPort(parsed.Host)
	assert.Nil(t, err)
	port, err := strconv.Atoi(portStr)
	assert.Nil(t, err)

	dir := t.TempDir()
	endpoint := model.EndpointSpec{Name: "simple_json", Method: "GET", Path: "/api/simple/json/{itemID}"}
	targets, err := WriteTargets(dir, endpoint, host, port)
	assert.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = NewVegetaSource().Attack(ctx, AttackSpec{
		Name:        "simple_json",
		TargetsFile: targets,
		Rate:        5,
		Duration:    30 * time.Second,
		OutputBin:   filepath.Join(dir, "canceled.bin"),
	})
	assert.Equal(t, context.Canceled, err)
	assert.True(t, time.Since(start) < 10*time.Second, "cancel must end the attack early")
}

func TestVegetaSourceAttackBadInput(t *testing.T) {
	source := NewVegetaSource()

	err := source.Attack(context.Background(), AttackSpec{Name: "x", Rate: 0})
	assert.NotNil(t, err)

	err = source.Attack(context.Background(), AttackSpec{
		Name:        "x",
		Rate:        5,
		TargetsFile: filepath.Join(t.TempDir(), "missing.txt"),
	})
	assert.True(t, os.IsNotExist(err))
}
