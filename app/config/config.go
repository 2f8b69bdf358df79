// Package config loads the user-edited YAML configuration with search filters,
// session behavior and known form answers. The file is read once per run and never mutated.
package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document
type Config struct {
	Filters  Filters           `yaml:"filters" json:"filters"`
	Behavior Behavior          `yaml:"behavior" json:"behavior"`
	Answers  map[string]string `yaml:"answers,omitempty" json:"answers,omitempty" jsonschema:"description=question substring (case-insensitive) to answer used to fill form fields"`
	State    State             `yaml:"state" json:"state"`
}

// Filters describes the job search filters applied on startup
type Filters struct {
	Location   string `yaml:"location,omitempty" json:"location,omitempty"`
	TimePosted string `yaml:"time_posted,omitempty" json:"time_posted,omitempty" jsonschema:"example=Past week,example=Past 24 hours"`
	EasyApply  bool   `yaml:"easy_apply,omitempty" json:"easy_apply,omitempty"`
	// Distance is a pointer to distinguish "not set" from "set to empty";
	// an explicit empty value clears the distance filter on the site
	Distance *string `yaml:"distance,omitempty" json:"distance,omitempty"`
}

// Behavior controls pacing and human-in-the-loop behavior of the apply session
type Behavior struct {
	PauseOnUnfilled bool     `yaml:"pause_on_unfilled" json:"pause_on_unfilled"`
	MaxIdle         Duration `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"type=string,example=15m"`
	ClickDelay      Duration `yaml:"click_delay,omitempty" json:"click_delay,omitempty" jsonschema:"type=string,example=500ms"`
	ScrollStep      int      `yaml:"scroll_step,omitempty" json:"scroll_step,omitempty"`
	MaxApplications int      `yaml:"max_applications,omitempty" json:"max_applications,omitempty" jsonschema:"description=stop session after this many completed applications, 0 for no limit"`
}

// State points to the persisted files
type State struct {
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	DB   string `yaml:"db,omitempty" json:"db,omitempty"`
}

// Duration wraps time.Duration to allow "15m" style values in yaml
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for duration strings
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration should be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("can't parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Value returns the wrapped time.Duration
func (d Duration) Value() time.Duration { return time.Duration(d) }

// default behavior values, applied on load when not set by the user
const (
	defaultMaxIdle    = 15 * time.Minute
	defaultClickDelay = 500 * time.Millisecond
	defaultScrollStep = 1200
	defaultStateFile  = "state/applied.json"
)

// Load reads and parses the config file, applies defaults and verifies the result
func Load(fname string) (*Config, error) {
	data, err := os.ReadFile(fname) // nolint gosec // user-provided path by design
	if err != nil {
		return nil, fmt.Errorf("can't read config %s: %w", fname, err)
	}

	res := &Config{}
	if err := yaml.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("can't parse config %s: %w", fname, err)
	}

	res.setDefaults()
	if err := Verify(res); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", fname, err)
	}

	log.Printf("[DEBUG] loaded config from %s, %d answers", fname, len(res.Answers))
	return res, nil
}

func (c *Config) setDefaults() {
	if c.Behavior.MaxIdle == 0 {
		c.Behavior.MaxIdle = Duration(defaultMaxIdle)
	}
	if c.Behavior.ClickDelay == 0 {
		c.Behavior.ClickDelay = Duration(defaultClickDelay)
	}
	if c.Behavior.ScrollStep == 0 {
		c.Behavior.ScrollStep = defaultScrollStep
	}
	if c.State.File == "" {
		c.State.File = defaultStateFile
	}
}
