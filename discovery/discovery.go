package discovery

import (
	"fmt"
	"strings"

	"github.com/javking07/cleanbench/model"
)

// DenyList holds the exact paths never offered for benchmarking:
// liveness and documentation surfaces plus the idempotent seed hook.
var DenyList = []string{
	"/",
	"/health",
	"/metrics",
	"/openapi.json",
	"/docs",
	"/docs/oauth2-redirect",
	"/redoc",
	"/api/db/seed",
}

func denied(path string) bool {
	for _, p := range DenyList {
		if path == p {
			return true
		}
	}
	return false
}

// Discover filters a route manifest down to the benchmarkable set: GET
// and POST routes not on the deny list, optionally narrowed to a path
// prefix. Manifest order is preserved, so repeat calls over the same
// manifest yield the same test sequence. Logical names key the result
// dataset, so a duplicate among the retained routes fails discovery.
func Discover(manifest []model.EndpointSpec, pathPrefix string) ([]model.EndpointSpec, error) {
	endpoints := make([]model.EndpointSpec, 0, len(manifest))
	seen := make(map[string]bool, len(manifest))
	for _, e := range manifest {
		if e.Method != "GET" && e.Method != "POST" {
			continue
		}
		if denied(e.Path) {
			continue
		}
		if pathPrefix != "" && !strings.HasPrefix(e.Path, pathPrefix) {
			continue
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate endpoint name %q in route manifest", e.Name)
		}
		seen[e.Name] = true
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

// FilterNames narrows endpoints to the named subset, keeping manifest
// order. An empty name list selects everything. A name that matches no
// endpoint is a configuration mistake and fails the whole selection.
func FilterNames(endpoints []model.EndpointSpec, names []string) ([]model.EndpointSpec, error) {
	if len(names) == 0 {
		return endpoints, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	selected := make([]model.EndpointSpec, 0, len(names))
	for _, e := range endpoints {
		if wanted[e.Name] {
			selected = append(selected, e)
			delete(wanted, e.Name)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		return nil, fmt.Errorf("unknown endpoint name(s): %s", strings.Join(missing, ", "))
	}
	return selected, nil
}
