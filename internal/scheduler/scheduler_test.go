package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-reminder/internal/scheduler"
)

func TestAddEvery_RunsJob(t *testing.T) {
	s := scheduler.New()

	fired := make(chan struct{}, 1)
	require.NoError(t, s.AddEvery(10*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}))

	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}
}

// TestStop_DrainsRunningJob pins the shutdown contract the final state
// flush depends on: once Stop returns, no job is still mutating shared
// state, so a snapshot taken afterwards is consistent.
func TestStop_DrainsRunningJob(t *testing.T) {
	s := scheduler.New()

	started := make(chan struct{})
	var once atomic.Bool
	var finished atomic.Bool

	require.NoError(t, s.AddEvery(10*time.Millisecond, func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		close(started)
		time.Sleep(150 * time.Millisecond)
		finished.Store(true)
	}))

	s.Start()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	s.Stop()
	assert.True(t, finished.Load(), "Stop returned while a job was still running")
}
