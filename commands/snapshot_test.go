package commands

import (
	"bytes"
	"testing"

	"proclens/models"

	"github.com/stretchr/testify/assert"
)

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, &models.Snapshot{
		Processes: []models.ProcessRecord{
			{PID: 1, Name: "init", Status: "sleep", CPUTimeMs: 10, ResidentMemoryKB: 4096},
			{PID: 99, Name: "redis", Status: "running", CPUTimeMs: 2.5, ResidentMemoryKB: 512, Container: "cache"},
		},
		Skipped: 3,
	})

	out := buf.String()
	assert.Contains(t, out, "MEMORY KB")
	assert.Contains(t, out, "4096.00 K")
	assert.Contains(t, out, "redis")
	assert.Contains(t, out, "cache")
	assert.Contains(t, out, "(3 processes could not be read)")
}

func TestPrintSnapshot_empty(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, &models.Snapshot{})
	assert.Equal(t, "No processes found or insufficient permissions.\n", buf.String())
}
