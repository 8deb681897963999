// Package config provides the configuration for prefabpool.
// A single Config structure covers every component, organized into sections:
//   - Pool: reuse switch and default instance flags
//   - Resource: template cache behavior
//   - Loader: where templates are read from
//   - Preload: spares built before the first frame
//   - Observability: logging, metrics and tracing
//   - Simulation: the demo spawn loops
//
// Example usage:
//
//	cfg := config.NewDefault()
//	cfg.Simulation.SpawnPerFrame = 4
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// Loader kinds.
const (
	LoaderMemory = "memory"
	LoaderFile   = "file"
	LoaderStore  = "store"
)

// Spawn modes.
const (
	ModeCoroutine = "coroutine"
	ModeTask      = "task"
	ModeBoth      = "both"
)

// Config is the complete configuration.
type Config struct {
	// Name identifies the run in logs and traces
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	Pool          PoolConfig          `yaml:"pool" json:"pool"`
	Resource      ResourceConfig      `yaml:"resource" json:"resource"`
	Loader        LoaderConfig        `yaml:"loader" json:"loader"`
	Preload       []PreloadEntry      `yaml:"preload" json:"preload"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Simulation    SimulationConfig    `yaml:"simulation" json:"simulation"`
}

// PoolConfig controls the pool manager.
type PoolConfig struct {
	// Reuse turns instance reuse on
	Reuse bool `yaml:"reuse" json:"reuse"`
	// Flags are the default instance flags, e.g. "reset-on-return|hold-parent"
	Flags string `yaml:"flags" json:"flags"`
	// CollapseOnSceneChange parks every instance under the pool root before a scene load
	CollapseOnSceneChange bool `yaml:"collapse_on_scene_change" json:"collapse_on_scene_change"`
}

// ResourceConfig controls the template cache.
type ResourceConfig struct {
	// EditorMode records provenance on every instance and warns on cache conflicts
	EditorMode bool `yaml:"editor_mode" json:"editor_mode"`
	// UsePreload hands out preload spares before building new instances
	UsePreload bool `yaml:"use_preload" json:"use_preload"`
}

// LoaderConfig selects the template source.
type LoaderConfig struct {
	// Kind is one of memory, file or store
	Kind string `yaml:"kind" json:"kind"`
	// Dir is the template directory for the file loader
	Dir string `yaml:"dir" json:"dir"`
	// StoreDir is the pebble directory for the store loader
	StoreDir string `yaml:"store_dir" json:"store_dir"`
}

// PreloadEntry asks for Count spares of the template at Path.
type PreloadEntry struct {
	Path  string `yaml:"path" json:"path"`
	Count int    `yaml:"count" json:"count"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// EnableMetrics reports the prometheus collectors at the end of a run
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing exports spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	// ReportInterval is how often spawn rates and memory are sampled
	ReportInterval time.Duration `yaml:"report_interval" json:"report_interval"`
}

// SimulationConfig drives the demo spawn loops.
type SimulationConfig struct {
	// Template is the path the coroutine-style spawner requests
	Template string `yaml:"template" json:"template"`
	// TaskTemplate is the path the task-style spawner requests; empty means Template
	TaskTemplate string `yaml:"task_template" json:"task_template"`
	// Mode is coroutine, task or both
	Mode string `yaml:"mode" json:"mode"`
	// FrameRate is the number of frames per simulated second
	FrameRate int `yaml:"frame_rate" json:"frame_rate"`
	// Duration is the simulated run length
	Duration time.Duration `yaml:"duration" json:"duration"`
	// SpawnPerFrame is how many instances each spawner requests per frame
	SpawnPerFrame int `yaml:"spawn_per_frame" json:"spawn_per_frame"`
	// SpawnRateLimit caps spawns per second across spawners (0 = unlimited)
	SpawnRateLimit float64 `yaml:"spawn_rate_limit" json:"spawn_rate_limit"`
	// Speed is how far a projectile travels per simulated second
	Speed float64 `yaml:"speed" json:"speed"`
	// Lifetime is how long a projectile stays active
	Lifetime time.Duration `yaml:"lifetime" json:"lifetime"`
	// RotationStep is the yaw added per spawn, in degrees
	RotationStep float64 `yaml:"rotation_step" json:"rotation_step"`
}

// NewDefault creates a Config with the values the demo is tuned for.
func NewDefault() *Config {
	return &Config{
		Name:    "prefabpool",
		Version: "1.0.0",
		Pool: PoolConfig{
			Reuse:                 true,
			Flags:                 "reset-on-return",
			CollapseOnSceneChange: true,
		},
		Resource: ResourceConfig{
			EditorMode: false,
			UsePreload: true,
		},
		Loader: LoaderConfig{
			Kind: LoaderMemory,
		},
		Preload: []PreloadEntry{
			{Path: "fx/projectile", Count: 100},
			{Path: "fx/tracer", Count: 100},
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "console",
			EnableMetrics:     true,
			EnableTracing:     false,
			TracingSampleRate: 0.1,
			ReportInterval:    time.Second,
		},
		Simulation: SimulationConfig{
			Template:       "fx/projectile",
			TaskTemplate:   "fx/tracer",
			Mode:           ModeBoth,
			FrameRate:      60,
			Duration:       5 * time.Second,
			SpawnPerFrame:  1,
			SpawnRateLimit: 0,
			Speed:          50,
			Lifetime:       2 * time.Second,
			RotationStep:   2,
		},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("name is required")
	}
	switch c.Loader.Kind {
	case LoaderMemory:
	case LoaderFile:
		if c.Loader.Dir == "" {
			return invalid("loader.dir is required for the file loader")
		}
	case LoaderStore:
		if c.Loader.StoreDir == "" {
			return invalid("loader.store_dir is required for the store loader")
		}
	default:
		return invalid("loader.kind must be memory, file or store").WithDetail("kind", c.Loader.Kind)
	}
	for i, p := range c.Preload {
		if strings.TrimSpace(p.Path) == "" {
			return invalid("preload path is required").WithDetail("index", i)
		}
		if p.Count < 0 {
			return invalid("preload count cannot be negative").WithDetail("path", p.Path)
		}
	}

	o := c.Observability
	if o.TracingSampleRate < 0 || o.TracingSampleRate > 1 {
		return invalid("tracing_sample_rate must be between 0 and 1")
	}
	if o.ReportInterval < 0 {
		return invalid("report_interval cannot be negative")
	}

	s := c.Simulation
	switch s.Mode {
	case ModeCoroutine, ModeTask, ModeBoth:
	default:
		return invalid("simulation.mode must be coroutine, task or both").WithDetail("mode", s.Mode)
	}
	if s.Template == "" {
		return invalid("simulation.template is required")
	}
	if s.FrameRate <= 0 {
		return invalid("frame_rate must be positive")
	}
	if s.Duration <= 0 {
		return invalid("duration must be positive")
	}
	if s.SpawnPerFrame < 0 {
		return invalid("spawn_per_frame cannot be negative")
	}
	if s.SpawnRateLimit < 0 {
		return invalid("spawn_rate_limit cannot be negative")
	}
	if s.Lifetime <= 0 {
		return invalid("lifetime must be positive")
	}
	return nil
}

func invalid(msg string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, msg)
}

// Frames returns the number of frames the simulation runs for.
func (s *SimulationConfig) Frames() int {
	return int(s.Duration.Seconds() * float64(s.FrameRate))
}

// FrameDuration returns the simulated time per frame.
func (s *SimulationConfig) FrameDuration() time.Duration {
	if s.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.FrameRate)
}

// TaskTemplatePath returns the path the task-style spawner requests.
func (s *SimulationConfig) TaskTemplatePath() string {
	if s.TaskTemplate == "" {
		return s.Template
	}
	return s.TaskTemplate
}

// IsRateLimited returns true if spawn rate limiting is enabled
func (s *SimulationConfig) IsRateLimited() bool {
	return s.SpawnRateLimit > 0
}

// PreloadTotal returns the number of spares requested across all entries.
func (c *Config) PreloadTotal() int {
	total := 0
	for _, p := range c.Preload {
		total += p.Count
	}
	return total
}
