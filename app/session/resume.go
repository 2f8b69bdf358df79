package session

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/go-pkgz/lgr"
)

// InFlight keeps markers for applications in progress in .apply files,
// so a run killed mid-form leaves a visible trace for the next one
type InFlight struct {
	location string
	enabled  bool
	seq      uint64
}

// Marker keeps file name and the job id it tracks
type Marker struct {
	JobID string
	Fname string
}

// markers older than this are considered leftovers of long-dead runs and dropped
const staleMarkerAge = 24 * time.Hour

// NewInFlight makes a tracker for given location. Enabled affects all operations
func NewInFlight(location string, enabled bool) *InFlight {
	if enabled {
		if err := os.MkdirAll(location, 0o700); err != nil {
			log.Printf("[DEBUG] can't make %s, %s", location, err)
		}
	}
	return &InFlight{location: location, enabled: enabled}
}

// OnStart makes a marker file for the started application as dt-seq.apply
func (f *InFlight) OnStart(jobID string) (string, error) {
	if !f.enabled {
		return "", nil
	}
	seq := atomic.AddUint64(&f.seq, 1)
	fname := fmt.Sprintf("%s/%d-%d.apply", f.location, time.Now().UnixNano(), seq)
	log.Printf("[DEBUG] create in-flight marker %s", fname)
	return fname, os.WriteFile(fname, []byte(jobID), 0o600)
}

// OnFinish removes the marker file
func (f *InFlight) OnFinish(fname string) error {
	if !f.enabled || fname == "" {
		return nil
	}
	log.Printf("[DEBUG] delete in-flight marker %s", fname)
	return os.Remove(fname)
}

// List returns markers left by previous runs, stale ones filtered out and removed
func (f *InFlight) List() (res []Marker) {
	if !f.enabled {
		return []Marker{}
	}

	entries, err := os.ReadDir(f.location)
	if err != nil {
		log.Printf("[WARN] can't get markers list for %s, %s", f.location, err)
		return []Marker{}
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".apply") {
			continue
		}

		finfo, err := entry.Info()
		if err != nil {
			log.Printf("[WARN] can't get marker info for %s, %s", entry.Name(), err)
			continue
		}

		fileName := path.Join(f.location, finfo.Name())
		if finfo.ModTime().Add(staleMarkerAge).Before(time.Now()) {
			log.Printf("[DEBUG] marker %s too old", fileName)
			if err := os.Remove(fileName); err != nil {
				log.Printf("[WARN] can't delete %s, %s", fileName, err)
			}
			continue
		}

		data, err := os.ReadFile(fileName) // nolint gosec // file made by this tool
		if err != nil {
			log.Printf("[WARN] failed to read marker %s, %s", fileName, err)
			continue
		}
		m := Marker{Fname: fileName, JobID: strings.TrimSpace(string(data))}
		log.Printf("[DEBUG] in-flight marker %+v", m)
		res = append(res, m)
	}
	return res
}

func (f *InFlight) String() string {
	return fmt.Sprintf("enabled:%v, location:%s", f.enabled, f.location)
}
