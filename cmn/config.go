// Package cmn provides shared constants, configuration, and error types used
// throughout the scheduler.
package cmn

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"gopkg.in/yaml.v3"
)

// SchedulerLockNumber is the conceptual advisory-lock number from spec §4.5
// (SCHEDULER_LOCK_NUMBER); kept as a named constant even though the
// in-process substitute (§9 Design Notes) only ever needs the one lock.
const SchedulerLockNumber = 1

type (
	Validator interface {
		Validate() error
	}

	TimeoutConf struct {
		JobAssign time.Duration `yaml:"job_assign"`
		JobOutput time.Duration `yaml:"job_output"`
	}

	// timeoutConfYAML mirrors TimeoutConf with string fields, since
	// yaml.v3 has no built-in notion of time.Duration; UnmarshalYAML
	// decodes through this shape so config files can write "3s" rather
	// than a raw integer nanosecond count.
	timeoutConfYAML struct {
		JobAssign string `yaml:"job_assign"`
		JobOutput string `yaml:"job_output"`
	}

	HeatmapConf struct {
		HotLevel      int     `yaml:"hot_level"`
		GCProbability float64 `yaml:"gc_probability"`
	}

	BlacklistConf struct {
		SourcePath string `yaml:"source_path"`
	}

	StoreConf struct {
		// Path is the buntdb file backing the scheduler tables, or
		// ":memory:" for an ephemeral, non-persistent store (tests).
		Path string `yaml:"path"`
	}

	Config struct {
		Timeout   TimeoutConf   `yaml:"timeout"`
		Heatmap   HeatmapConf   `yaml:"heatmap"`
		Blacklist BlacklistConf `yaml:"blacklist"`
		Store     StoreConf     `yaml:"store"`
	}
)

var (
	_ Validator = (*TimeoutConf)(nil)
	_ Validator = (*HeatmapConf)(nil)
	_ Validator = (*StoreConf)(nil)
)

func (c *TimeoutConf) Validate() error {
	if c.JobAssign <= 0 {
		return fmt.Errorf("invalid timeout.job_assign (%s): must be positive", c.JobAssign)
	}
	if c.JobOutput <= 0 {
		return fmt.Errorf("invalid timeout.job_output (%s): must be positive", c.JobOutput)
	}
	return nil
}

// UnmarshalYAML decodes job_assign/job_output as duration strings ("3s",
// "500ms"), leaving any field the document omits at its current value so
// LoadConfig's "start from DefaultConfig()" behavior holds per-field.
func (c *TimeoutConf) UnmarshalYAML(value *yaml.Node) error {
	var raw timeoutConfYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.JobAssign != "" {
		d, err := time.ParseDuration(raw.JobAssign)
		if err != nil {
			return fmt.Errorf("invalid timeout.job_assign %q: %w", raw.JobAssign, err)
		}
		c.JobAssign = d
	}
	if raw.JobOutput != "" {
		d, err := time.ParseDuration(raw.JobOutput)
		if err != nil {
			return fmt.Errorf("invalid timeout.job_output %q: %w", raw.JobOutput, err)
		}
		c.JobOutput = d
	}
	return nil
}

func (c *HeatmapConf) Validate() error {
	if c.HotLevel < 1 {
		return fmt.Errorf("invalid heatmap.hot_level (%d): must be >= 1", c.HotLevel)
	}
	if c.GCProbability < 0 || c.GCProbability > 1 {
		return fmt.Errorf("invalid heatmap.gc_probability (%f): must be in [0,1]", c.GCProbability)
	}
	return nil
}

func (c *StoreConf) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("invalid store.path: must be non-empty (use \":memory:\" for an ephemeral store)")
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Timeout.Validate(); err != nil {
		return err
	}
	if err := c.Heatmap.Validate(); err != nil {
		return err
	}
	return c.Store.Validate()
}

// DefaultConfig mirrors spec §6's process-wide defaults
// (SNER_HEATMAP_HOT_LEVEL, TIMEOUT_JOB_ASSIGN=3s, TIMEOUT_JOB_OUTPUT=30s,
// HEATMAP_GC_PROBABILITY=0.1).
func DefaultConfig() *Config {
	return &Config{
		Timeout: TimeoutConf{
			JobAssign: 3 * time.Second,
			JobOutput: 30 * time.Second,
		},
		Heatmap: HeatmapConf{
			HotLevel:      4,
			GCProbability: 0.1,
		},
		Store: StoreConf{
			Path: "scheduler.db",
		},
	}
}

// LoadConfig reads and validates a YAML config file, starting from
// DefaultConfig()'s values for anything the file omits.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//////////////////////
// globalConfigOwner //
//////////////////////

// globalConfigOwner holds the process-wide Config snapshot behind an atomic
// pointer, the same shape as the teacher's cmn.GCO: readers never block and
// always see a fully-formed Config, writers serialize through mtx so two
// concurrent updates cannot interleave.
type globalConfigOwner struct {
	mtx sync.Mutex
	c   unsafe.Pointer // *Config
}

// GCO is the process-wide configuration owner. SchedulerService and friends
// read it via GCO.Get() on every call rather than caching a copy, so a
// config reload takes effect for the very next locked section.
var GCO = &globalConfigOwner{}

func init() {
	GCO.Put(DefaultConfig())
}

func (gco *globalConfigOwner) Get() *Config {
	return (*Config)(atomic.LoadPointer(&gco.c))
}

func (gco *globalConfigOwner) Put(config *Config) {
	atomic.StorePointer(&gco.c, unsafe.Pointer(config))
}

// BeginUpdate/CommitUpdate bracket an in-place config mutation so that two
// concurrent reloads cannot race; DiscardUpdate aborts without publishing.
func (gco *globalConfigOwner) BeginUpdate() *Config {
	gco.mtx.Lock()
	clone := *gco.Get()
	return &clone
}

func (gco *globalConfigOwner) CommitUpdate(config *Config) {
	gco.Put(config)
	gco.mtx.Unlock()
}

func (gco *globalConfigOwner) DiscardUpdate() {
	gco.mtx.Unlock()
}
