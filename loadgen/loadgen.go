package loadgen

import (
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/javking07/cleanbench/model"
)

// FixtureItemID replaces the {itemID} placeholder in route templates.
// It sits safely inside the seeded fixture range.
const FixtureItemID = "1000"

// AttackSpec describes one load generation cycle against a single
// endpoint at a single rate.
type AttackSpec struct {
	Name        string
	TargetsFile string
	Rate        int
	Duration    time.Duration
	OutputBin   string
}

// Source drives load for one test cycle and later converts the raw
// artifact it wrote into the parsed report document. Implementations
// must honor ctx cancellation mid-attack.
type Source interface {
	Attack(ctx context.Context, spec AttackSpec) error
	Convert(binPath, jsonPath string) (*model.LoadTestReport, error)
}

// TargetURL renders the concrete URL for an endpoint, substituting the
// fixture item id into the route template.
func TargetURL(endpoint model.EndpointSpec, host string, port int) string {
	path := strings.Replace(endpoint.Path, "{itemID}", FixtureItemID, -1)
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, strconv.Itoa(port)), path)
}

// WriteTargets writes the one-line targets file for an endpoint and
// returns its path. The file name keeps the t_<name>.txt convention so
// artifacts of one run sort together.
func WriteTargets(dir string, endpoint model.EndpointSpec, host string, port int) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("t_%s.txt", endpoint.Name))
	line := fmt.Sprintf("%s %s\n", endpoint.Method, TargetURL(endpoint, host, port))
	if err := ioutil.WriteFile(path, []byte(line), 0644); err != nil {
		return "", fmt.Errorf("writing targets file: %v", err)
	}
	return path, nil
}
