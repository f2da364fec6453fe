package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	vegeta "github.com/tsenart/vegeta/lib"

	"github.com/javking07/cleanbench/model"
)

// requestTimeout caps each request the attacker fires. Requests that
// outlive it count as failures in the report.
const requestTimeout = 10 * time.Second

// VegetaSource generates load with the embedded vegeta library. Attack
// streams raw results to a gob artifact; Convert replays the artifact
// into the JSON report, mirroring the attack/report split of the
// vegeta CLI.
type VegetaSource struct{}

func NewVegetaSource() *VegetaSource {
	return &VegetaSource{}
}

func (v *VegetaSource) Attack(ctx context.Context, spec AttackSpec) error {
	if spec.Rate <= 0 {
		return fmt.Errorf("attack %s: rate must be positive, got %d", spec.Name, spec.Rate)
	}
	b, err := ioutil.ReadFile(spec.TargetsFile)
	if err != nil {
		return err
	}
	src := bytes.NewBuffer(b)
	targeter := vegeta.NewHTTPTargeter(src, nil, nil)

	out, err := os.Create(spec.OutputBin)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	enc := vegeta.NewEncoder(out)

	rate := vegeta.Rate{Freq: spec.Rate, Per: time.Second}
	attacker := vegeta.NewAttacker(vegeta.Timeout(requestTimeout))
	defer attacker.Stop()

	// stop the attack early when the run is interrupted
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			attacker.Stop()
		case <-watcherDone:
		}
	}()

	log.Info().Msgf("attacking %s at %d rps for %v", spec.Name, spec.Rate, spec.Duration)
	for res := range attacker.Attack(targeter, rate, spec.Duration, spec.Name) {
		if err := enc(res); err != nil {
			return fmt.Errorf("attack %s: encoding result: %v", spec.Name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (v *VegetaSource) Convert(binPath, jsonPath string) (*model.LoadTestReport, error) {
	in, err := os.Open(binPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	var metrics vegeta.Metrics
	dec := vegeta.NewDecoder(in)
	for {
		var res vegeta.Result
		if err := dec(&res); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decoding %s: %v", binPath, err)
		}
		metrics.Add(&res)
	}
	metrics.Close()

	payload, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := ioutil.WriteFile(jsonPath, payload, 0644); err != nil {
		return nil, fmt.Errorf("writing report %s: %v", jsonPath, err)
	}

	var report model.LoadTestReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("parsing report %s: %v", jsonPath, err)
	}
	return &report, nil
}
