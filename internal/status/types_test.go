package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, RunStatusInProgress.IsTerminal())
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
	assert.True(t, RunStatusPartial.IsTerminal())
	assert.False(t, RunStatus("UNKNOWN").IsValid())
	assert.True(t, RunStatusInProgress.IsValid())
}

func TestRunUpdate_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		update       RunUpdate
		wantProgress int
	}{
		{name: "completed forces 100", update: RunUpdate{Status: RunStatusCompleted, Progress: 80}, wantProgress: 100},
		{name: "failed forces -1", update: RunUpdate{Status: RunStatusFailed, Progress: 30}, wantProgress: -1},
		{name: "partial keeps progress", update: RunUpdate{Status: RunStatusPartial, Progress: 70}, wantProgress: 70},
		{name: "in progress clamps low", update: RunUpdate{Status: RunStatusInProgress, Progress: -5}, wantProgress: 0},
		{name: "in progress clamps high", update: RunUpdate{Status: RunStatusInProgress, Progress: 150}, wantProgress: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantProgress, tt.update.Normalize().Progress)
		})
	}
}

func TestNextHeartbeat(t *testing.T) {
	t.Parallel()

	prev := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, prev.Add(time.Second), NextHeartbeat(prev, prev.Add(time.Second)))
	assert.Equal(t, prev.Add(time.Microsecond), NextHeartbeat(prev, prev))
	assert.Equal(t, prev.Add(time.Microsecond), NextHeartbeat(prev, prev.Add(-time.Minute)),
		"a clock step backwards must not move the heartbeat back")
	assert.Equal(t, prev.Add(time.Microsecond), NextHeartbeat(prev, prev.Add(300*time.Nanosecond)),
		"sub-microsecond advances are truncated and still move forward")
}
