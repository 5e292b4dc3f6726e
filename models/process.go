package models

import "time"

// ProcessRecord is one row of the process table. Never mutated after capture.
type ProcessRecord struct {
	PID              int32   `json:"pid"`
	Name             string  `json:"name"`
	Status           string  `json:"status"`
	CPUTimeMs        float64 `json:"cpu_time_ms"`
	ResidentMemoryKB float64 `json:"resident_memory_kb"`
	Container        string  `json:"container,omitempty"`
}

// Snapshot is the top-N by resident memory, replaced wholesale every tick.
type Snapshot struct {
	Processes  []ProcessRecord `json:"processes"`
	Host       HostSummary     `json:"host"`
	Skipped    int             `json:"skipped"`
	CapturedAt time.Time       `json:"captured_at"`
}

// Age reports how long ago the snapshot was captured
func (s *Snapshot) Age() time.Duration {
	if s == nil || s.CapturedAt.IsZero() {
		return 0
	}
	return time.Since(s.CapturedAt)
}
