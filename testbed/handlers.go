package testbed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
)

const (
	// simpleSleep is the fixed work window of the simple endpoint
	// family.
	simpleSleep = 50 * time.Millisecond
	// seedCount is the size of the fixture table. The benchmark's
	// fixture id has to stay inside 1..seedCount.
	seedCount = 2000
)

type simpleResponse struct {
	ID        int     `json:"id"`
	Timestamp float64 `json:"timestamp"`
	Type      string  `json:"type"`
}

type itemResponse struct {
	Found bool   `json:"found"`
	ID    int    `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Value int    `json:"value,omitempty"`
	Type  string `json:"type,omitempty"`
}

type writeResponse struct {
	Found    bool   `json:"found"`
	ID       int    `json:"id,omitempty"`
	Updated  bool   `json:"updated,omitempty"`
	NewValue int    `json:"new_value,omitempty"`
	Type     string `json:"type,omitempty"`
	Error    string `json:"error,omitempty"`
}

func itemID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "itemID"))
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "benchmark target is running"})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	var health struct {
		ServerStatus   string `json:"server_status"`
		DatabaseStatus string `json:"database_status"`
		CacheCount     int64  `json:"cache_count"`
	}
	health.ServerStatus = "ok"

	if s.Store != nil {
		if err := s.Store.Healthy(); err == nil {
			health.DatabaseStatus = "connected"
		} else {
			s.Logger.Error().Msg(err.Error())
			health.DatabaseStatus = "not connected"
		}
	}

	if s.Cache != nil {
		health.CacheCount = s.Cache.EntryCount()
	}

	respondWithJSON(w, http.StatusOK, health)
}

// Seed fills the fixture table. Safe to call before every run; a table
// that already has rows reports zero inserts.
func (s *Server) Seed(w http.ResponseWriter, r *http.Request) {
	inserted, err := s.Store.Seed(seedCount)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"inserted": inserted})
}

// SimpleSleep parks the goroutine for the work window. Requests block
// without occupying a scheduler thread, so throughput is bounded by
// the generator rather than the host.
func (s *Server) SimpleSleep(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	time.Sleep(simpleSleep)
	respondWithJSON(w, http.StatusOK, simpleResponse{ID: id, Timestamp: nowSeconds(), Type: "sleep"})
}

// SimpleBusy spins for the work window, holding a CPU the whole time.
// Throughput degrades as concurrent requests exceed available cores.
func (s *Server) SimpleBusy(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	deadline := time.Now().Add(simpleSleep)
	for time.Now().Before(deadline) {
	}
	respondWithJSON(w, http.StatusOK, simpleResponse{ID: id, Timestamp: nowSeconds(), Type: "busy"})
}

// SimpleJSON answers immediately; it measures nothing but the HTTP and
// serialization floor.
func (s *Server) SimpleJSON(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	respondWithJSON(w, http.StatusOK, simpleResponse{ID: id, Timestamp: nowSeconds(), Type: "json"})
}

func (s *Server) DBRead(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := s.Store.Read(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		respondWithJSON(w, http.StatusOK, itemResponse{Found: false})
		return
	}
	respondWithJSON(w, http.StatusOK, itemResponse{
		Found: true, ID: item.ID, Name: item.Name, Value: item.Value, Type: "db_read",
	})
}

func (s *Server) DBWrite(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := s.Store.Write(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		respondWithJSON(w, http.StatusOK, writeResponse{Found: false, Error: "item not found"})
		return
	}
	respondWithJSON(w, http.StatusOK, writeResponse{
		Found: true, ID: item.ID, Updated: true, NewValue: item.Value, Type: "db_write",
	})
}

// CacheRead serves the fixture row through the cache: a hit returns
// the cached body untouched, a miss reads the store and fills the
// cache for the configured expiry.
func (s *Server) CacheRead(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	key := []byte(fmt.Sprintf("item:%d", id))
	if cached, err := s.Cache.Get(key); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	item, err := s.Store.Read(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		respondWithJSON(w, http.StatusOK, itemResponse{Found: false})
		return
	}

	payload, err := json.Marshal(itemResponse{
		Found: true, ID: item.ID, Name: item.Name, Value: item.Value, Type: "cache_read",
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	expiry := 0
	if s.Config.Cache.Expiry != nil {
		expiry = int(s.Config.Cache.Expiry.Seconds())
	}
	if err := s.Cache.Set(key, payload, expiry); err != nil {
		s.Logger.Warn().Msgf("cache set for %s: %v", key, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
