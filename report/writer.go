package report

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/javking07/cleanbench/model"
)

// ResultsFileName is the run document inside each run directory.
const ResultsFileName = "clean_results.json"

// Persist writes the run document atomically: marshal everything, write
// a temp file in the same directory, rename over the final name. An
// interrupt mid-write leaves the previous complete document intact,
// which is what makes per-cycle re-persisting safe.
func Persist(dir string, res *model.RunResult) error {
	payload, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, ResultsFileName+".tmp")
	if err := ioutil.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("writing results: %v", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, ResultsFileName)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing results: %v", err)
	}
	return nil
}

// PersistSeries saves one cycle's resource samples next to its report.
func PersistSeries(path string, series model.ResourceSeries) error {
	payload, err := json.MarshalIndent(series, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, payload, 0644)
}

// Load reads one run document.
func Load(path string) (*model.RunResult, error) {
	payload, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res model.RunResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("parsing %s: %v", path, err)
	}
	return &res, nil
}

// LoadLatest finds the most recently written run document under root
// and returns it together with its path.
func LoadLatest(root string) (*model.RunResult, string, error) {
	entries, err := ioutil.ReadDir(root)
	if err != nil {
		return nil, "", fmt.Errorf("reading results root: %v", err)
	}

	var bestPath string
	var bestInfo os.FileInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runDirPrefix) {
			continue
		}
		path := filepath.Join(root, entry.Name(), ResultsFileName)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if bestInfo == nil || info.ModTime().After(bestInfo.ModTime()) {
			bestPath, bestInfo = path, info
		}
	}
	if bestPath == "" {
		return nil, "", fmt.Errorf("no run results under %s", root)
	}

	res, err := Load(bestPath)
	if err != nil {
		return nil, "", err
	}
	return res, bestPath, nil
}
