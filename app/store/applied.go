// Package store persists the set of processed job ids with their outcomes.
// The JSON file is the source of truth for skipping already-handled jobs between runs;
// sqlite keeps the per-run application history for the status server.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
)

// job outcome statuses
const (
	StatusSubmitted   = "submitted"
	StatusClosed      = "closed"
	StatusTimeout     = "timeout"
	StatusSkipped     = "skipped_no_easy_apply"
	StatusInterrupted = "interrupted"
)

// Record keeps the outcome of a single processed job
type Record struct {
	Status    string    `json:"status"`
	Title     string    `json:"title,omitempty"`
	Company   string    `json:"company,omitempty"`
	URL       string    `json:"url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Applied is a JSON-backed set of processed jobs, keyed by job id.
// Loaded once on startup and written back on every update.
type Applied struct {
	fname string
	lock  sync.Mutex
	jobs  map[string]Record
}

// state is the on-disk document shape
type state struct {
	Jobs map[string]Record `json:"jobs"`
}

// NewApplied loads the store from fname. Missing file starts empty,
// unparsable file is reported and also starts empty to keep the run going.
func NewApplied(fname string) *Applied {
	res := &Applied{fname: fname, jobs: map[string]Record{}}

	data, err := os.ReadFile(fname) // nolint gosec // path comes from the user config
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[WARN] can't read state file %s, %v", fname, err)
		}
		return res
	}

	st := state{}
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("[WARN] corrupted state file %s, starting empty, %v", fname, err)
		return res
	}
	if st.Jobs != nil {
		res.jobs = st.Jobs
	}
	log.Printf("[INFO] loaded %d applied jobs from %s", len(res.jobs), fname)
	return res
}

// Seen reports if the job id was processed before
func (a *Applied) Seen(id string) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	_, found := a.jobs[id]
	return found
}

// Record adds or updates the outcome for a job id and writes the file back.
// Map semantics guarantee the id is never stored twice.
func (a *Applied) Record(id string, rec Record) error {
	if id == "" {
		return fmt.Errorf("refused to record empty job id")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	a.lock.Lock()
	defer a.lock.Unlock()
	a.jobs[id] = rec
	return a.save()
}

// Len returns the number of recorded jobs
func (a *Applied) Len() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.jobs)
}

// Jobs returns a copy of all recorded jobs
func (a *Applied) Jobs() map[string]Record {
	a.lock.Lock()
	defer a.lock.Unlock()
	res := make(map[string]Record, len(a.jobs))
	for k, v := range a.jobs {
		res[k] = v
	}
	return res
}

// save writes the document back, caller should hold the lock
func (a *Applied) save() error {
	if dir := filepath.Dir(a.fname); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("can't make state dir %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(state{Jobs: a.jobs}, "", "  ")
	if err != nil {
		return fmt.Errorf("can't marshal state: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(a.fname, data, 0o600); err != nil {
		return fmt.Errorf("can't write state file %s: %w", a.fname, err)
	}
	return nil
}

func (a *Applied) String() string {
	return fmt.Sprintf("applied store %s, %d jobs", a.fname, a.Len())
}
