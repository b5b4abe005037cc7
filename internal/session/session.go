// Package session tracks in-flight task executions as caller-owned
// handles, so transports (websocket, tool layer) never share hidden
// global device or agent state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/metalagman/droidagent/internal/agent"
)

// Status of one session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Session is one task execution handle.
type Session struct {
	ID        string
	Task      string
	StartedAt time.Time

	cancel context.CancelFunc

	mu     sync.Mutex
	status Status
	result *agent.Result
}

// Status returns the session's current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the final result, nil while running.
func (s *Session) Result() *agent.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Stop cancels the session's context. The running loop observes the
// cancellation at its next checkpoint.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.status = StatusStopped
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) finish(result *agent.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	if s.status == StatusStopped {
		return
	}
	if result.Success {
		s.status = StatusCompleted
	} else {
		s.status = StatusFailed
	}
}

// Runner executes a task; the agent satisfies this.
type Runner interface {
	Execute(ctx context.Context, task string) *agent.Result
}

// Registry owns sessions keyed by id. At most one session runs at a
// time; the device bridge cannot serve two tasks concurrently.
type Registry struct {
	runner Runner

	mu       sync.Mutex
	sessions map[string]*Session
	active   *Session
}

// NewRegistry creates a registry over a task runner.
func NewRegistry(runner Runner) *Registry {
	return &Registry{
		runner:   runner,
		sessions: make(map[string]*Session),
	}
}

// Start launches a task in the background and returns its session.
// A second concurrent start is rejected.
func (r *Registry) Start(ctx context.Context, task string, onDone func(*Session)) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil && r.active.Status() == StatusRunning {
		return nil, fmt.Errorf("task %s already running", r.active.ID)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:        uuid.NewString(),
		Task:      task,
		StartedAt: time.Now(),
		cancel:    cancel,
		status:    StatusRunning,
	}
	r.sessions[s.ID] = s
	r.active = s

	go func() {
		defer cancel()
		result := r.runner.Execute(ctx, task)
		s.finish(result)
		r.mu.Lock()
		if r.active == s {
			r.active = nil
		}
		r.mu.Unlock()
		if onDone != nil {
			onDone(s)
		}
	}()
	return s, nil
}

// Get returns a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Active returns the currently running session, nil when idle.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// StopActive cancels the running session if any; it reports whether a
// session was stopped.
func (r *Registry) StopActive() bool {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active == nil {
		return false
	}
	active.Stop()
	return true
}

// List returns all known sessions in unspecified order.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
