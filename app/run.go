package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/javking07/cleanbench/discovery"
	"github.com/javking07/cleanbench/lifecycle"
	"github.com/javking07/cleanbench/loadgen"
	"github.com/javking07/cleanbench/model"
	"github.com/javking07/cleanbench/probe"
	"github.com/javking07/cleanbench/report"
	"github.com/javking07/cleanbench/testbed"
)

// Run sweeps the configured rate matrix over every discovered endpoint,
// restarting the server between cycles, and returns the aggregated run
// document. The document is re-persisted after each cycle, so an
// interrupted run leaves every completed record on disk.
func (r *Runner) Run(ctx context.Context) (*model.RunResult, error) {
	config := r.Config.Bench
	if len(config.Rates) == 0 {
		return nil, errors.New("no rates configured")
	}
	for _, rate := range config.Rates {
		if rate <= 0 {
			return nil, fmt.Errorf("rate %d must be positive", rate)
		}
	}
	if config.Duration == nil || *config.Duration <= 0 {
		return nil, errors.New("test duration must be positive")
	}
	if config.Binary == "" {
		return nil, errors.New("no server binary configured")
	}
	duration := *config.Duration

	r.Logger.Info().Msgf("benchmarking %s: rates %v, %v per test, %d workers",
		net.JoinHostPort(config.Host, strconv.Itoa(config.Port)), config.Rates, duration, config.Workers)

	endpoints, err := discovery.Discover(testbed.Manifest(), config.Filter)
	if err != nil {
		return nil, err
	}
	endpoints, err = discovery.FilterNames(endpoints, config.Endpoints)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, errors.New("no benchmark endpoints discovered")
	}

	dir, err := report.NewRunDir(config.OutputDir)
	if err != nil {
		return nil, err
	}
	r.Logger.Info().Msgf("output: %s", dir)

	serverLog, err := os.Create(report.ServerLogPath(dir))
	if err != nil {
		return nil, err
	}
	defer func() { _ = serverLog.Close() }()

	if killed := r.Manager.SweepOrphans(config.Binary); killed > 0 {
		r.Logger.Info().Msgf("cleaned up %d stale server process(es)", killed)
	}

	names := make([]string, 0, len(endpoints))
	targets := make(map[string]string, len(endpoints))
	for _, endpoint := range endpoints {
		path, err := loadgen.WriteTargets(dir, endpoint, config.Host, config.Port)
		if err != nil {
			return nil, err
		}
		targets[endpoint.Name] = path
		names = append(names, endpoint.Name)
	}
	r.Logger.Info().Msgf("found %d endpoints: %v", len(endpoints), names)

	res := model.NewRunResult(model.RunMetadata{
		RunID:        uuid.NewV4().String(),
		Workers:      config.Workers,
		Host:         config.Host,
		Port:         config.Port,
		Duration:     model.CustomDuration{Duration: duration},
		Timestamp:    time.Now(),
		CleanRestart: true,
	})

	total := len(config.Rates) * len(endpoints)
	count := 0
	interrupted := false

loop:
	for _, rate := range config.Rates {
		for _, endpoint := range endpoints {
			count++
			if ctx.Err() != nil {
				interrupted = true
				break loop
			}
			r.Logger.Info().Msgf("test %d/%d: %s at %d rps", count, total, endpoint.Name, rate)

			rec, err := r.safeCycle(ctx, dir, serverLog, rate, endpoint, targets[endpoint.Name], duration)
			if err != nil {
				if ctx.Err() != nil {
					r.Logger.Warn().Msgf("run interrupted: %v", err)
					interrupted = true
					break loop
				}
				r.Logger.Error().Msgf("test %s at %d rps failed: %v", endpoint.Name, rate, err)
				continue
			}
			res.Insert(rate, endpoint.Name, rec)

			// keep the on-disk document current after every cycle
			if err := report.Persist(dir, res); err != nil {
				r.Logger.Error().Msgf("persisting results: %v", err)
			}
		}
	}

	if err := report.Persist(dir, res); err != nil {
		return nil, err
	}
	report.Render(os.Stdout, res)
	r.Logger.Info().Msgf("results saved: %s", filepath.Join(dir, report.ResultsFileName))

	if r.Storage != nil {
		if err := report.Archive(r.Storage, res); err != nil {
			r.Logger.Error().Msgf("archiving run: %v", err)
		}
	}

	if interrupted {
		return res, ctx.Err()
	}
	return res, nil
}

// safeCycle runs one cycle and converts a panic into a cycle error; a
// failing cycle never unwinds past this boundary. The teardown defers
// inside runCycle still fire while the panic propagates, so the server
// is stopped either way.
func (r *Runner) safeCycle(ctx context.Context, dir string, serverLog io.Writer, rate int, endpoint model.EndpointSpec, targetsFile string, duration time.Duration) (rec model.TestMetricsRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &cycleError{stage: "panic", err: fmt.Errorf("%v", p)}
		}
	}()
	return r.runCycle(ctx, dir, serverLog, rate, endpoint, targetsFile, duration)
}

// runCycle runs one (rate, endpoint) pair against a freshly spawned
// server and returns its aggregated record.
func (r *Runner) runCycle(ctx context.Context, dir string, serverLog io.Writer, rate int, endpoint model.EndpointSpec, targetsFile string, duration time.Duration) (model.TestMetricsRecord, error) {
	var zero model.TestMetricsRecord
	config := r.Config.Bench

	pid, err := r.Manager.Spawn(lifecycle.SpawnSpec{
		Binary: config.Binary,
		Args:   serveArgs(r.Config),
		Output: serverLog,
	})
	if err != nil {
		return zero, &cycleError{stage: "spawn", err: err}
	}
	defer func() {
		if err := r.Manager.Terminate(pid); err != nil {
			r.Logger.Warn().Msgf("stopping server pid %d: %v", pid, err)
		}
		// pause so the port is free again before the next cycle
		_ = sleepCtx(ctx, r.cooldown)
	}()

	if err := r.Manager.AwaitHealthy(ctx, config.Host, config.Port); err != nil {
		return zero, &cycleError{stage: "health", err: err}
	}
	if err := r.seed(ctx); err != nil {
		return zero, &cycleError{stage: "seed", err: err}
	}
	if err := r.smoke(ctx, endpoint); err != nil {
		return zero, &cycleError{stage: "smoke", err: err}
	}
	if err := sleepCtx(ctx, r.stabilize); err != nil {
		return zero, err
	}

	// a cycle without resource figures is still a valid cycle
	var sampler *probe.Sampler
	if prober, err := r.NewProber(pid); err != nil {
		r.Logger.Warn().Msgf("resource probe for pid %d unavailable: %v", pid, err)
	} else {
		sampler = probe.NewSampler(prober, probe.DefaultInterval)
		sampler.Start()
	}

	windowEnd := time.Now().Add(duration + r.overrun)
	binPath := report.BinPath(dir, endpoint.Name, rate)
	attackErr := r.Source.Attack(ctx, loadgen.AttackSpec{
		Name:        endpoint.Name,
		TargetsFile: targetsFile,
		Rate:        rate,
		Duration:    duration,
		OutputBin:   binPath,
	})
	if attackErr == nil {
		// sample through the drain window the same way the attack's
		// own late responses trail past the nominal duration
		if remaining := time.Until(windowEnd); remaining > 0 {
			_ = sleepCtx(ctx, remaining)
		}
	}

	var series model.ResourceSeries
	if sampler != nil {
		series = sampler.Stop()
	}

	if attackErr != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &cycleError{stage: "attack", err: attackErr}
	}
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}

	if sampler != nil {
		if err := report.PersistSeries(report.CPUPath(dir, endpoint.Name, rate), series); err != nil {
			r.Logger.Warn().Msgf("saving resource series: %v", err)
		}
	}

	rep, err := r.Source.Convert(binPath, report.JSONPath(dir, endpoint.Name, rate))
	if err != nil {
		return zero, &cycleError{stage: "convert", err: err}
	}

	rec := report.BuildRecord(rate, duration, rep, probe.Summarize(series))
	// the generator's own rate counts attempts; AchievedRPS counts
	// completed requests, so the two diverge under back-pressure
	r.Logger.Debug().Msgf("%s at %d rps: generator rate %.2f, achieved %.2f",
		endpoint.Name, rate, rep.Rate, rec.AchievedRPS)
	r.Logger.Info().Msgf("completed %s at %d rps: achieved %.1f rps, success %.1f%%",
		endpoint.Name, rate, rec.AchievedRPS, rec.SuccessRate*100)
	return rec, nil
}

// seed fills the server's fixture table before traffic. The endpoint
// is idempotent, so reseeding a warm store is free.
func (r *Runner) seed(ctx context.Context) error {
	config := r.Config.Bench
	url := fmt.Sprintf("http://%s/api/db/seed", net.JoinHostPort(config.Host, strconv.Itoa(config.Port)))

	reqCtx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("seed returned %d", resp.StatusCode)
	}

	// give the store a beat before traffic starts
	return sleepCtx(ctx, r.settle)
}

// smoke sends one request down the exact URL the generator will hammer,
// so a broken endpoint fails fast instead of producing a cycle of
// errors.
func (r *Runner) smoke(ctx context.Context, endpoint model.EndpointSpec) error {
	config := r.Config.Bench
	url := loadgen.TargetURL(endpoint, config.Host, config.Port)

	reqCtx, cancel := context.WithTimeout(ctx, smokeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, endpoint.Method, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return nil
}
