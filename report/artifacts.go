package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact naming follows the <endpoint>_<rate> convention so every
// file belonging to one test cycle sorts together inside the run dir.

const runDirPrefix = "bench_"

// NewRunDir creates a fresh timestamped run directory under root and
// returns its path.
func NewRunDir(root string) (string, error) {
	dir := filepath.Join(root, runDirPrefix+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating run dir: %v", err)
	}
	return dir, nil
}

// BinPath is the raw load generator artifact for one cycle.
func BinPath(dir, endpoint string, rate int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.bin", endpoint, rate))
}

// JSONPath is the converted report for one cycle.
func JSONPath(dir, endpoint string, rate int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.json", endpoint, rate))
}

// CPUPath is the resource sample series for one cycle.
func CPUPath(dir, endpoint string, rate int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d_cpu.json", endpoint, rate))
}

// ServerLogPath is the combined stdout and stderr of every server
// process spawned during the run.
func ServerLogPath(dir string) string {
	return filepath.Join(dir, "server.log")
}
