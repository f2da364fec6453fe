package probe

import (
	"github.com/shirou/gopsutil/v3/process"
)

// Prober reads instantaneous resource usage of one process.
type Prober interface {
	Probe() (cpuPercent float64, rssMB float64, err error)
}

// ProcessProber reads usage from the OS process table. CPU figures are
// deltas since the previous probe, so the first reading of a fresh
// prober is zero.
type ProcessProber struct {
	proc *process.Process
}

func NewProcessProber(pid int) (*ProcessProber, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	return &ProcessProber{proc: proc}, nil
}

func (p *ProcessProber) Probe() (float64, float64, error) {
	cpu, err := p.proc.Percent(0)
	if err != nil {
		return 0, 0, err
	}
	mem, err := p.proc.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	return cpu, float64(mem.RSS) / 1024 / 1024, nil
}
