package collector

import (
	"context"
	"errors"
	"sort"

	"proclens/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrZombie marks a process that has exited but not been reaped.
// Its accounting is meaningless so it is skipped like an unreadable one.
var ErrZombie = errors.New("zombie process")

// Proc is the part of a process the collector reads
type Proc interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	Status(ctx context.Context) (string, error)
	Times(ctx context.Context) (*cpu.TimesStat, error)
	MemoryInfo(ctx context.Context) (*process.MemoryInfoStat, error)
}

// ProcessSource enumerates the processes visible to the current user
type ProcessSource interface {
	Processes(ctx context.Context) ([]Proc, error)
}

// GopsutilSource reads the live OS process table
type GopsutilSource struct{}

func (GopsutilSource) Processes(ctx context.Context) ([]Proc, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(procs))
	for _, p := range procs {
		out = append(out, gopsProc{p})
	}
	return out, nil
}

type gopsProc struct {
	p *process.Process
}

func (g gopsProc) PID() int32 { return g.p.Pid }

func (g gopsProc) Name(ctx context.Context) (string, error) {
	return g.p.NameWithContext(ctx)
}

func (g gopsProc) Status(ctx context.Context) (string, error) {
	st, err := g.p.StatusWithContext(ctx)
	if err != nil {
		return "", err
	}
	if len(st) == 0 {
		return process.UnknownState, nil
	}
	return st[0], nil
}

func (g gopsProc) Times(ctx context.Context) (*cpu.TimesStat, error) {
	return g.p.TimesWithContext(ctx)
}

func (g gopsProc) MemoryInfo(ctx context.Context) (*process.MemoryInfoStat, error) {
	return g.p.MemoryInfoWithContext(ctx)
}

// readRecord reads every field or none
func readRecord(ctx context.Context, p Proc) (models.ProcessRecord, error) {
	name, err := p.Name(ctx)
	if err != nil {
		return models.ProcessRecord{}, err
	}
	status, err := p.Status(ctx)
	if err != nil {
		return models.ProcessRecord{}, err
	}
	if status == process.Zombie {
		return models.ProcessRecord{}, ErrZombie
	}
	times, err := p.Times(ctx)
	if err != nil {
		return models.ProcessRecord{}, err
	}
	mem, err := p.MemoryInfo(ctx)
	if err != nil {
		return models.ProcessRecord{}, err
	}

	return models.ProcessRecord{
		PID:              p.PID(),
		Name:             name,
		Status:           status,
		CPUTimeMs:        (times.User + times.System) * 1000,
		ResidentMemoryKB: float64(mem.RSS) / 1024,
	}, nil
}

// rankByMemory sorts descending by resident memory, lowest PID first on
// ties, and keeps at most limit records.
func rankByMemory(records []models.ProcessRecord, limit int) []models.ProcessRecord {
	sort.Slice(records, func(i, j int) bool {
		if records[i].ResidentMemoryKB != records[j].ResidentMemoryKB {
			return records[i].ResidentMemoryKB > records[j].ResidentMemoryKB
		}
		return records[i].PID < records[j].PID
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}
