package app

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/javking07/cleanbench/conf"
	"github.com/javking07/cleanbench/lifecycle"
	"github.com/javking07/cleanbench/loadgen"
	"github.com/javking07/cleanbench/model"
	"github.com/javking07/cleanbench/probe"
)

// Timing constants of the clean-restart cycle. Every test gets a fresh
// server, a settled store, and a sampling window that outlasts the
// attack by a drain margin.
const (
	StabilizeSleep = 2 * time.Second
	CooldownSleep  = 2 * time.Second
	SampleOverrun  = 2 * time.Second

	seedTimeout  = 10 * time.Second
	smokeTimeout = 5 * time.Second
	seedSettle   = time.Second
)

// processManager is the slice of the lifecycle manager the runner
// depends on.
type processManager interface {
	Spawn(spec lifecycle.SpawnSpec) (int, error)
	AwaitHealthy(ctx context.Context, host string, port int) error
	Terminate(pid int) error
	SweepOrphans(binary string) int
	Shutdown()
}

// Runner drives the whole benchmark: one clean server restart per
// (rate, endpoint) pair, load and resource sampling in parallel, and
// the aggregated document persisted after every cycle.
type Runner struct {
	Config    *conf.Config
	Logger    *zerolog.Logger
	Manager   processManager
	Source    loadgen.Source
	Storage   model.Storage
	Client    *http.Client
	NewProber func(pid int) (probe.Prober, error)

	stabilize time.Duration
	cooldown  time.Duration
	overrun   time.Duration
	settle    time.Duration
}

// BootstrapRunner wires a runner up from config.
func BootstrapRunner(config *conf.Config) (*Runner, error) {
	r := &Runner{Config: config}
	r.InitLogger()
	r.Manager = lifecycle.NewManager()
	r.Source = loadgen.NewVegetaSource()
	r.Client = &http.Client{}
	r.NewProber = func(pid int) (probe.Prober, error) {
		return probe.NewProcessProber(pid)
	}
	r.stabilize = StabilizeSleep
	r.cooldown = CooldownSleep
	r.overrun = SampleOverrun
	r.settle = seedSettle

	if config.Bench.Archive {
		if err := r.InitStorage(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Runner) InitLogger() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	level := strings.ToLower(r.Config.Logging.Level)
	if parsed, err := zerolog.ParseLevel(level); err != nil {
		log.Warn().Msgf("error creating logger: %s", err.Error())
		logger = logger.Level(zerolog.WarnLevel)
	} else {
		logger = logger.Level(parsed)
	}

	r.Logger = &logger
}

// InitStorage connects the optional run archive.
func (r *Runner) InitStorage() error {
	storage, err := model.BootstrapPostgres(r.Config.Database)
	if err != nil {
		return err
	}
	r.Storage = storage
	r.Logger.Info().Msgf("connected to archive database on port %v", r.Config.Database.Port)
	return nil
}

// Shutdown stops any server process the run still owns. Safe to call
// more than once and from the signal path.
func (r *Runner) Shutdown() {
	if r.Manager != nil {
		r.Manager.Shutdown()
	}
	if r.Storage != nil {
		_ = r.Storage.Close()
	}
}

// cycleError marks one failed stage of a test cycle. A failed cycle
// skips its (rate, endpoint) pair; the run moves on.
type cycleError struct {
	stage string
	err   error
}

func (e *cycleError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *cycleError) Unwrap() error { return e.err }

// sleepCtx waits out d unless the run is interrupted first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func serveArgs(config *conf.Config) []string {
	return []string{"serve",
		"--host", config.Bench.Host,
		"--port", strconv.Itoa(config.Bench.Port),
		"--workers", strconv.Itoa(config.Bench.Workers),
		"--database", config.Server.DatabasePath,
	}
}
