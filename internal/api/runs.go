package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookreel/bookreel/internal/identify"
	"github.com/bookreel/bookreel/internal/replace"
)

type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// Run tracks one asynchronous replacement or scan job.
type Run struct {
	ID        string                 `json:"id"`
	VideoID   string                 `json:"video_id"`
	Kind      string                 `json:"kind"`
	Status    RunStatus              `json:"status"`
	StartedAt time.Time              `json:"started_at"`
	Result    *replace.Result        `json:"result,omitempty"`
	Frames    []identify.MatchResult `json:"frames,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// runRegistry is the in-memory registry of runs, guarded by a mutex since
// handler goroutines and run goroutines both touch it.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*Run)}
}

func (r *runRegistry) start(videoID, kind string) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Kind:      kind,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}
	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()
	return run
}

func (r *runRegistry) get(id string) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

func (r *runRegistry) complete(id string, result *replace.Result, frames []identify.MatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.Result = result
	run.Frames = frames
	if result != nil && !result.Success {
		run.Status = RunFailed
		run.Error = result.ErrorMessage
	} else {
		run.Status = RunComplete
	}
}

func (r *runRegistry) fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.Status = RunFailed
	run.Error = err.Error()
}
