// Package screenshot captures device screenshots into a bounded on-disk
// history and annotates them with parsed UI element markers.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultHistorySize = 5

// Capturer produces a screenshot file at the given local path.
type Capturer interface {
	Screenshot(ctx context.Context, localPath string) error
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func(ctx context.Context, localPath string) error

func (f CapturerFunc) Screenshot(ctx context.Context, localPath string) error {
	return f(ctx, localPath)
}

// Entry is one captured screenshot in the history.
type Entry struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Pipeline captures screenshots into dir, keeping at most maxHistory
// files; the oldest file is removed from disk when the ring is full.
type Pipeline struct {
	capturer   Capturer
	dir        string
	maxHistory int

	mu      sync.Mutex
	history []Entry
}

// NewPipeline creates a pipeline writing into dir. maxHistory <= 0 uses
// the default of 5.
func NewPipeline(capturer Capturer, dir string, maxHistory int) (*Pipeline, error) {
	if maxHistory <= 0 {
		maxHistory = defaultHistorySize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	return &Pipeline{
		capturer:   capturer,
		dir:        dir,
		maxHistory: maxHistory,
	}, nil
}

// Capture takes a screenshot and records it in the history, evicting the
// oldest entry (and its file) when the history is full.
func (p *Pipeline) Capture(ctx context.Context) (Entry, error) {
	name := fmt.Sprintf("screen_%s_%s.png",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(p.dir, name)

	if err := p.capturer.Screenshot(ctx, path); err != nil {
		return Entry{}, fmt.Errorf("capture screenshot: %w", err)
	}

	entry := Entry{Path: path, Timestamp: time.Now()}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, entry)
	for len(p.history) > p.maxHistory {
		evicted := p.history[0]
		p.history = p.history[1:]
		if err := os.Remove(evicted.Path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", evicted.Path).Msg("evict screenshot")
		}
	}
	return entry, nil
}

// Latest returns the most recent entry, false when the history is empty.
func (p *Pipeline) Latest() (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return Entry{}, false
	}
	return p.history[len(p.history)-1], true
}

// History returns a copy of the history, oldest first.
func (p *Pipeline) History() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.history))
	copy(out, p.history)
	return out
}

// Clear drops the history and removes all captured files.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.history {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", e.Path).Msg("remove screenshot")
		}
	}
	p.history = nil
}
