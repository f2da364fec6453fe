package testbed

import (
	"github.com/javking07/cleanbench/model"
)

// Manifest is the complete route table of the service under test.
// Serving and endpoint discovery both read it, so the two can never
// drift apart. Paths use chi templates; {itemID} marks the fixture row
// placeholder.
func Manifest() []model.EndpointSpec {
	return []model.EndpointSpec{
		{Name: "root", Method: "GET", Path: "/"},
		{Name: "health", Method: "GET", Path: "/health"},
		{Name: "metrics", Method: "GET", Path: "/metrics"},
		{Name: "db_seed", Method: "POST", Path: "/api/db/seed"},
		{Name: "simple_sleep", Method: "GET", Path: "/api/simple/sleep/{itemID}"},
		{Name: "simple_busy", Method: "GET", Path: "/api/simple/busy/{itemID}"},
		{Name: "simple_json", Method: "GET", Path: "/api/simple/json/{itemID}"},
		{Name: "db_read", Method: "GET", Path: "/api/db/read/{itemID}"},
		{Name: "db_write", Method: "POST", Path: "/api/db/write/{itemID}"},
		{Name: "cache_read", Method: "GET", Path: "/api/cache/read/{itemID}"},
	}
}
