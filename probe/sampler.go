package probe

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/javking07/cleanbench/model"
)

// DefaultInterval is the sampling cadence the resource figures are
// calibrated for.
const DefaultInterval = time.Second

// Sampler polls a Prober on a fixed cadence and accumulates the
// readings. Start and Stop bracket one test cycle; once Stop returns
// the series is sealed and never mutated again.
type Sampler struct {
	prober   Prober
	interval time.Duration

	mu      sync.Mutex
	samples model.ResourceSeries
	sealed  bool
	started bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewSampler(prober Prober, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		prober:   prober,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sampling loop. Further calls are no-ops.
func (s *Sampler) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()
		go s.loop()
	})
}

func (s *Sampler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		// probe before the first tick so a cycle shorter than one
		// interval still yields a reading
		cpu, rss, err := s.prober.Probe()
		if err != nil {
			// a single failed poll drops that tick's reading only;
			// the loop keeps going until Stop
			log.Debug().Msgf("sampler: probe skipped: %v", err)
		} else {
			s.append(model.ResourceSample{
				Timestamp:  time.Now(),
				CPUPercent: cpu,
				RSSMB:      rss,
			})
		}
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (s *Sampler) append(sample model.ResourceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.samples = append(s.samples, sample)
}

// Collect returns a copy of the samples gathered so far. Safe to call
// while the loop is running.
func (s *Sampler) Collect() model.ResourceSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(model.ResourceSeries, len(s.samples))
	copy(out, s.samples)
	return out
}

// Stop halts the loop, seals the series, and returns it. Stop is
// idempotent; repeat calls return the same sealed series. Stopping a
// sampler that never started seals an empty series.
func (s *Sampler) Stop() model.ResourceSeries {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.doneCh
		}
		s.mu.Lock()
		s.sealed = true
		s.mu.Unlock()
	})
	return s.Collect()
}

// Summarize reduces a series to the aggregate figures recorded per test.
func Summarize(series model.ResourceSeries) model.ResourceSummary {
	summary := model.ResourceSummary{Samples: len(series)}
	if len(series) == 0 {
		return summary
	}
	var cpuSum, memSum float64
	for _, sample := range series {
		cpuSum += sample.CPUPercent
		memSum += sample.RSSMB
		if sample.CPUPercent > summary.MaxCPU {
			summary.MaxCPU = sample.CPUPercent
		}
		if sample.RSSMB > summary.MaxMemoryMB {
			summary.MaxMemoryMB = sample.RSSMB
		}
	}
	summary.AvgCPU = cpuSum / float64(len(series))
	summary.AvgMemoryMB = memSum / float64(len(series))
	return summary
}
