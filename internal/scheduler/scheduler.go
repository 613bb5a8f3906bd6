// Package scheduler wraps robfig/cron to run named maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// JobInfo describes a registered job for the admin API.
type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	Next    time.Time `json:"next,omitempty"`
	LastRun time.Time `json:"last_run,omitempty"`
	LastErr string    `json:"last_error,omitempty"`
}

type entry struct {
	id      cron.EntryID
	spec    string
	job     Job
	lastRun time.Time
	lastErr string
}

// Engine manages the cron scheduler.
type Engine struct {
	cron *cron.Cron
	ctx  context.Context

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a new cron-based Engine. Specs include a seconds field.
func New() *Engine {
	return &Engine{
		cron:    cron.New(cron.WithSeconds()),
		ctx:     context.Background(),
		entries: make(map[string]*entry),
	}
}

// Start begins the cron engine; it stops when ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
	e.cron.Start()
	go func() {
		<-ctx.Done()
		e.cron.Stop()
	}()
}

// Add registers job under name. A name can only be registered once.
func (e *Engine) Add(name, spec string, job Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[name]; ok {
		return fmt.Errorf("scheduler.Add: job %q already registered", name)
	}
	id, err := e.cron.AddFunc(spec, func() { e.run(name) })
	if err != nil {
		return fmt.Errorf("scheduler.Add: parse cron %q: %w", spec, err)
	}
	e.entries[name] = &entry{id: id, spec: spec, job: job}
	return nil
}

// Remove deregisters a job.
func (e *Engine) Remove(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if en, ok := e.entries[name]; ok {
		e.cron.Remove(en.id)
		delete(e.entries, name)
	}
}

// RunNow runs a job immediately on the calling goroutine.
func (e *Engine) RunNow(name string) error {
	e.mu.Lock()
	_, ok := e.entries[name]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler.RunNow: unknown job %q", name)
	}
	return e.run(name)
}

func (e *Engine) run(name string) error {
	e.mu.Lock()
	en, ok := e.entries[name]
	ctx := e.ctx
	e.mu.Unlock()
	if !ok {
		return nil
	}

	err := en.job(ctx)

	e.mu.Lock()
	en.lastRun = time.Now()
	en.lastErr = ""
	if err != nil {
		en.lastErr = err.Error()
	}
	e.mu.Unlock()
	if err != nil {
		log.Printf("scheduler: job %s: %v", name, err)
	}
	return err
}

// Jobs lists registered jobs sorted by name.
func (e *Engine) Jobs() []JobInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]JobInfo, 0, len(e.entries))
	for name, en := range e.entries {
		out = append(out, JobInfo{
			Name:    name,
			Spec:    en.spec,
			Next:    e.cron.Entry(en.id).Next,
			LastRun: en.lastRun,
			LastErr: en.lastErr,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
