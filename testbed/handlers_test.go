package testbed

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/javking07/cleanbench/conf"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	config := conf.SaneDefaults()
	config.Server.DatabasePath = filepath.Join(t.TempDir(), "bench.db")
	config.Logging.Level = "error"

	server, err := Bootstrap(config)
	assert.Nil(t, err)

	ts := httptest.NewServer(server.Router)
	t.Cleanup(func() {
		ts.Close()
		_ = server.Store.Close()
	})
	return server, ts
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	assert.Nil(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := ioutil.ReadAll(resp.Body)
	assert.Nil(t, err)
	if out != nil {
		assert.Nil(t, json.Unmarshal(body, out))
	}
	return resp
}

func postJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	assert.Nil(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := ioutil.ReadAll(resp.Body)
	assert.Nil(t, err)
	if out != nil {
		assert.Nil(t, json.Unmarshal(body, out))
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	var health struct {
		ServerStatus   string `json:"server_status"`
		DatabaseStatus string `json:"database_status"`
	}
	resp := getJSON(t, ts.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.ServerStatus)
	assert.Equal(t, "connected", health.DatabaseStatus)
}

func TestSeedEndpointIsIdempotent(t *testing.T) {
	_, ts := newTestServer(t)

	var first map[string]int
	resp := postJSON(t, ts.URL+"/api/db/seed", &first)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, seedCount, first["inserted"])

	var second map[string]int
	postJSON(t, ts.URL+"/api/db/seed", &second)
	assert.Equal(t, 0, second["inserted"])
}

func TestSimpleEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	tests := map[string]struct {
		path     string
		wantType string
	}{
		"sleep variant": {path: "/api/simple/sleep/7", wantType: "sleep"},
		"busy variant":  {path: "/api/simple/busy/7", wantType: "busy"},
		"json variant":  {path: "/api/simple/json/7", wantType: "json"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var body simpleResponse
			resp := getJSON(t, ts.URL+test.path, &body)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, 7, body.ID)
			assert.Equal(t, test.wantType, body.Type)
			assert.True(t, body.Timestamp > 0)
		})
	}
}

func TestSimpleEndpointRejectsBadID(t *testing.T) {
	_, ts := newTestServer(t)
	resp := getJSON(t, ts.URL+"/api/simple/json/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDBEndpoints(t *testing.T) {
	_, ts := newTestServer(t)
	postJSON(t, ts.URL+"/api/db/seed", nil)

	var found itemResponse
	resp := getJSON(t, ts.URL+"/api/db/read/1000", &found)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, found.Found)
	assert.Equal(t, "item-1000", found.Name)
	assert.Equal(t, 1000, found.Value)

	var missing itemResponse
	getJSON(t, ts.URL+"/api/db/read/99999", &missing)
	assert.False(t, missing.Found)

	var write writeResponse
	resp = postJSON(t, ts.URL+"/api/db/write/1000", &write)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, write.Found)
	assert.True(t, write.Updated)
	assert.Equal(t, 1001, write.NewValue)

	postJSON(t, ts.URL+"/api/db/write/1000", &write)
	assert.Equal(t, 1002, write.NewValue)

	var writeMissing writeResponse
	postJSON(t, ts.URL+"/api/db/write/99999", &writeMissing)
	assert.False(t, writeMissing.Found)
	assert.Equal(t, "item not found", writeMissing.Error)
}

func TestCacheReadServesStaleUntilExpiry(t *testing.T) {
	_, ts := newTestServer(t)
	postJSON(t, ts.URL+"/api/db/seed", nil)

	var first itemResponse
	getJSON(t, ts.URL+"/api/cache/read/42", &first)
	assert.True(t, first.Found)
	assert.Equal(t, 42, first.Value)

	// mutate the row behind the cache
	postJSON(t, ts.URL+"/api/db/write/42", nil)

	var second itemResponse
	getJSON(t, ts.URL+"/api/cache/read/42", &second)
	assert.Equal(t, first, second, "a cached row must be served as-is until it expires")
}

func TestCacheReadMissingRow(t *testing.T) {
	_, ts := newTestServer(t)
	postJSON(t, ts.URL+"/api/db/seed", nil)

	var body itemResponse
	resp := getJSON(t, ts.URL+"/api/cache/read/99999", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, body.Found)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	assert.Nil(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := ioutil.ReadAll(resp.Body)
	assert.Nil(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestEveryManifestRouteIsMounted(t *testing.T) {
	_, ts := newTestServer(t)
	postJSON(t, ts.URL+"/api/db/seed", nil)

	for _, e := range Manifest() {
		path := strings.Replace(e.Path, "{itemID}", "1000", -1)
		var resp *http.Response
		var err error
		switch e.Method {
		case http.MethodGet:
			resp, err = http.Get(ts.URL + path)
		case http.MethodPost:
			resp, err = http.Post(ts.URL+path, "application/json", nil)
		default:
			t.Fatalf("manifest entry %s has unsupported method %s", e.Name, e.Method)
		}
		assert.Nil(t, err)
		_ = resp.Body.Close()
		assert.NotEqual(t, http.StatusNotFound, resp.StatusCode, "route %s is not mounted", e.Path)
		assert.NotEqual(t, http.StatusMethodNotAllowed, resp.StatusCode, "route %s method mismatch", e.Path)
	}
}

func TestManifestIsWellFormed(t *testing.T) {
	names := map[string]bool{}
	routes := map[string]bool{}
	for _, e := range Manifest() {
		assert.False(t, names[e.Name], "duplicate endpoint name %s", e.Name)
		names[e.Name] = true
		key := e.Method + " " + e.Path
		assert.False(t, routes[key], "duplicate route %s", key)
		routes[key] = true
		assert.True(t, strings.HasPrefix(e.Path, "/"))
		assert.Contains(t, []string{"GET", "POST"}, e.Method)
	}
}
