package marketplace

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRun(t *testing.T) *SyncRun {
	t.Helper()
	run, err := NewSyncRun(AllAccounts(), SyncModeFull, StrategyRemotePriority, TriggerManual, time.Now())
	require.NoError(t, err)
	return run
}

func TestNewSyncRun(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Valid run starts RUNNING", func(t *testing.T) {
		run, err := NewSyncRun([]Account{AccountMain}, SyncModeIncremental, StrategyNewestWins, "", now)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, run.ID)
		assert.Equal(t, RunStatusRunning, run.Status)
		assert.Equal(t, TriggerManual, run.TriggeredBy)
		assert.Equal(t, now, run.StartedAt)
		assert.Nil(t, run.CompletedAt)
		assert.Empty(t, run.Errors)
		assert.False(t, run.IsFinalized())
	})

	t.Run("No accounts", func(t *testing.T) {
		_, err := NewSyncRun(nil, SyncModeFull, StrategyRemotePriority, TriggerManual, now)
		assert.ErrorIs(t, err, ErrNoAccounts)
	})

	t.Run("Unknown account", func(t *testing.T) {
		_, err := NewSyncRun([]Account{"RETAIL"}, SyncModeFull, StrategyRemotePriority, TriggerManual, now)
		assert.ErrorIs(t, err, ErrInvalidAccount)
	})

	t.Run("Unknown mode", func(t *testing.T) {
		_, err := NewSyncRun(AllAccounts(), SyncMode("DELTA"), StrategyRemotePriority, TriggerManual, now)
		assert.ErrorIs(t, err, ErrInvalidSyncMode)
	})
}

func TestSyncRun_Finalize(t *testing.T) {
	t.Run("Complete once", func(t *testing.T) {
		run := newTestRun(t)
		run.AddCounts(SyncCounts{Processed: 3, Created: 2, Unchanged: 1})
		run.AddCounts(SyncCounts{Processed: 1, Failed: 1})

		end := run.StartedAt.Add(5 * time.Second)
		require.NoError(t, run.Complete(end))
		assert.Equal(t, RunStatusCompleted, run.Status)
		assert.Equal(t, SyncCounts{Processed: 4, Created: 2, Unchanged: 1, Failed: 1}, run.Counts)
		assert.Equal(t, 5*time.Second, run.Duration())

		assert.ErrorIs(t, run.Complete(end), ErrRunAlreadyFinalized)
		assert.ErrorIs(t, run.Fail(ErrorContextRun, "late", end), ErrRunAlreadyFinalized)
		assert.Equal(t, RunStatusCompleted, run.Status)
		assert.Empty(t, run.Errors)
	})

	t.Run("Fail records the cause", func(t *testing.T) {
		run := newTestRun(t)
		require.NoError(t, run.Fail(ErrorContextRun, "boom", time.Now()))
		assert.Equal(t, RunStatusFailed, run.Status)
		require.Len(t, run.Errors, 1)
		assert.Equal(t, "boom", run.Errors[0].Message)
		assert.False(t, run.HasTimedOut())
	})

	t.Run("Timeout is labelled distinctly", func(t *testing.T) {
		run := newTestRun(t)
		require.NoError(t, run.TimeOut(30*time.Second, time.Now()))
		assert.Equal(t, RunStatusFailed, run.Status)
		assert.True(t, run.HasTimedOut())
		assert.Contains(t, run.Errors[0].Message, "timed out")
	})
}

func TestSyncRun_RecordError(t *testing.T) {
	run := newTestRun(t)
	run.RecordError("MAIN/SKU-1", strings.Repeat("x", 2*MaxErrorMessageLength), time.Now())
	require.Len(t, run.Errors, 1)
	assert.Len(t, run.Errors[0].Message, MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(run.Errors[0].Message, "..."))

	for i := 0; i < MaxRunErrors+10; i++ {
		run.RecordError("MAIN/page", "failed", time.Now())
	}
	assert.Len(t, run.Errors, MaxRunErrors)
}

func TestTruncateMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"short message untouched", "timeout", 10, "timeout"},
		{"ascii cut", "abcdefghij", 8, "abcde..."},
		{"cut on a rune start", "abăăă", 7, "abă..."},
		{"cut inside a multi-byte rune backs off", "abăăă", 6, "ab..."},
		{"tiny limit keeps whole runes", "ăș", 3, "ă"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateMessage(tt.input, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), tt.limit)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
