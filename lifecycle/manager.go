package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	// StartupTimeout bounds how long a freshly spawned server may take
	// to pass its health gate.
	StartupTimeout = 30 * time.Second
	// HealthInterval is the cadence of health gate probes.
	HealthInterval = time.Second
	// TermGrace is how long a process gets to exit on SIGTERM before
	// it is killed.
	TermGrace = 5 * time.Second
	// orphanSettle gives the OS time to reap swept processes before a
	// new server binds the port.
	orphanSettle = 2 * time.Second
)

// SpawnSpec describes one server process to launch. Output, when set,
// receives the combined stdout and stderr of the child.
type SpawnSpec struct {
	Binary string
	Args   []string
	Output io.Writer
}

type proc struct {
	cmd     *exec.Cmd
	waitCh  chan struct{}
	waitErr error
}

// Manager owns every server process the orchestrator spawns. All
// bookkeeping goes through its registry, so a process is terminated at
// most once no matter how many paths race to clean it up.
type Manager struct {
	mu    sync.Mutex
	procs map[int]*proc

	client       *http.Client
	shutdownOnce sync.Once
}

func NewManager() *Manager {
	return &Manager{
		procs:  make(map[int]*proc),
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Spawn starts the process and registers it. The returned pid stays
// valid for Terminate until the process is deregistered.
func (m *Manager) Spawn(spec SpawnSpec) (int, error) {
	if spec.Binary == "" {
		return 0, errors.New("spawn: no binary given")
	}
	cmd := exec.Command(spec.Binary, spec.Args...)
	if spec.Output != nil {
		cmd.Stdout = spec.Output
		cmd.Stderr = spec.Output
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn: starting %s: %v", spec.Binary, err)
	}

	p := &proc{cmd: cmd, waitCh: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitCh)
	}()

	pid := cmd.Process.Pid
	m.mu.Lock()
	m.procs[pid] = p
	m.mu.Unlock()

	log.Info().Msgf("spawned %s (pid %d)", spec.Binary, pid)
	return pid, nil
}

// AwaitHealthy polls the server's health endpoint once a second until
// it answers 200 or the startup window closes.
func (m *Manager) AwaitHealthy(ctx context.Context, host string, port int) error {
	url := fmt.Sprintf("http://%s/health", net.JoinHostPort(host, strconv.Itoa(port)))

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
		}
		return nil
	}

	attempts := uint64(StartupTimeout / HealthInterval)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(HealthInterval), attempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("server not healthy after %v: %v", StartupTimeout, err)
	}
	return nil
}

// Terminate deregisters the pid and stops the process: SIGTERM first,
// SIGKILL if it is still alive after the grace window. Unknown pids
// are a no-op, which makes repeat calls for the same process safe.
func (m *Manager) Terminate(pid int) error {
	m.mu.Lock()
	p, ok := m.procs[pid]
	if ok {
		delete(m.procs, pid)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// already exiting, fall through to the wait
		log.Debug().Msgf("terminate pid %d: %v", pid, err)
	}
	select {
	case <-p.waitCh:
		log.Info().Msgf("pid %d exited on SIGTERM", pid)
		return nil
	case <-time.After(TermGrace):
	}

	log.Warn().Msgf("pid %d ignored SIGTERM, killing", pid)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing pid %d: %v", pid, err)
	}
	<-p.waitCh
	return nil
}

// Owned lists the pids currently registered, in ascending order.
func (m *Manager) Owned() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pids := make([]int, 0, len(m.procs))
	for pid := range m.procs {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// SweepOrphans terminates stray server processes left behind by
// earlier runs, matched by binary name plus the serve subcommand in
// their command line. The calling process and anything the manager
// already owns are skipped. Returns how many processes were signaled.
func (m *Manager) SweepOrphans(binary string) int {
	if binary == "" {
		return 0
	}
	self := os.Getpid()
	m.mu.Lock()
	owned := make(map[int]bool, len(m.procs))
	for pid := range m.procs {
		owned[pid] = true
	}
	m.mu.Unlock()

	procs, err := process.Processes()
	if err != nil {
		log.Warn().Msgf("orphan sweep: listing processes: %v", err)
		return 0
	}

	needle := filepath.Base(binary)
	killed := 0
	for _, candidate := range procs {
		pid := int(candidate.Pid)
		if pid == self || owned[pid] {
			continue
		}
		cmdline, err := candidate.CmdlineSlice()
		if err != nil || len(cmdline) == 0 {
			continue
		}
		if !matchesServer(cmdline, needle) {
			continue
		}
		if err := candidate.Terminate(); err != nil {
			log.Warn().Msgf("orphan sweep: terminating pid %d: %v", pid, err)
			continue
		}
		log.Info().Msgf("orphan sweep: terminated stale server pid %d", pid)
		killed++
	}
	if killed > 0 {
		time.Sleep(orphanSettle)
	}
	return killed
}

func matchesServer(cmdline []string, binary string) bool {
	hasBinary := false
	hasServe := false
	for _, arg := range cmdline {
		if strings.Contains(arg, binary) {
			hasBinary = true
		}
		if arg == "serve" {
			hasServe = true
		}
	}
	return hasBinary && hasServe
}

// Shutdown terminates every process the manager still owns. Both the
// signal path and the normal exit path call it; only the first call
// does the work.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		for _, pid := range m.Owned() {
			if err := m.Terminate(pid); err != nil {
				log.Warn().Msgf("shutdown: terminating pid %d: %v", pid, err)
			}
		}
	})
}
