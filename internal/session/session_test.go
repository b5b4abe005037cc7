package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/droidagent/internal/agent"
)

// blockingRunner waits for release or cancellation.
type blockingRunner struct {
	release chan struct{}
	success bool
}

func (r *blockingRunner) Execute(ctx context.Context, task string) *agent.Result {
	select {
	case <-r.release:
		return &agent.Result{Task: task, Success: r.success}
	case <-ctx.Done():
		return &agent.Result{Task: task, Success: false, Error: "cancelled"}
	}
}

func TestStart_RunsToCompletion(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), success: true}
	reg := NewRegistry(runner)

	done := make(chan *Session, 1)
	s, err := reg.Start(context.Background(), "open chrome", func(s *Session) { done <- s })
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status())
	assert.Nil(t, s.Result())
	assert.Same(t, s, reg.Active())

	close(runner.release)
	select {
	case finished := <-done:
		assert.Equal(t, StatusCompleted, finished.Status())
		require.NotNil(t, finished.Result())
		assert.True(t, finished.Result().Success)
	case <-time.After(time.Second):
		t.Fatal("session did not finish")
	}
	assert.Nil(t, reg.Active())
}

func TestStart_RejectsConcurrentRun(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	reg := NewRegistry(runner)

	_, err := reg.Start(context.Background(), "first", nil)
	require.NoError(t, err)

	_, err = reg.Start(context.Background(), "second", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	close(runner.release)
}

func TestStopActive(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	reg := NewRegistry(runner)

	done := make(chan *Session, 1)
	s, err := reg.Start(context.Background(), "task", func(s *Session) { done <- s })
	require.NoError(t, err)

	assert.True(t, reg.StopActive())

	select {
	case finished := <-done:
		assert.Equal(t, StatusStopped, finished.Status())
		require.NotNil(t, finished.Result())
		assert.False(t, finished.Result().Success)
	case <-time.After(time.Second):
		t.Fatal("session did not observe cancellation")
	}

	// a new task may start after the old one stopped
	_, err = reg.Start(context.Background(), "next", nil)
	assert.NoError(t, err)
	assert.Same(t, s, mustGet(t, reg, s.ID))
}

func TestStopActive_Idle(t *testing.T) {
	reg := NewRegistry(&blockingRunner{release: make(chan struct{})})
	assert.False(t, reg.StopActive())
}

func mustGet(t *testing.T, reg *Registry, id string) *Session {
	t.Helper()
	s, ok := reg.Get(id)
	require.True(t, ok)
	return s
}
