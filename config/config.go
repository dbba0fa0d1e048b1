// Package config loads the flaskanim configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/azargarov/flaskanim/scheduler"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLASKANIM_"

const (
	BackendWorkerPool = "wpool"
	BackendDynamic    = "dynamic"
)

// Config is the complete application configuration.
type Config struct {
	Window    WindowConfig    `yaml:"window"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pool      PoolConfig      `yaml:"pool"`
	Run       RunConfig       `yaml:"run"`
}

// WindowConfig describes the output surface and frame rate.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	FPSNum uint32 `yaml:"fps_num"`
	FPSDen uint32 `yaml:"fps_den"`
}

type SchedulerConfig struct {
	Policy       string           `yaml:"policy"` // lookahead, latest
	MaxWindow    uint32           `yaml:"max_window"`
	BeatInterval uint32           `yaml:"beat_interval"`
	Ranges       scheduler.Ranges `yaml:"ranges"`
	RevPerSecond float64          `yaml:"rev_per_second"`
}

type PoolConfig struct {
	Backend     string        `yaml:"backend"` // wpool, dynamic
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"` // 0 derives it from workers and max_window
	PinWorkers  bool          `yaml:"pin_workers"`
	IdleTimeout time.Duration `yaml:"idle_timeout"` // dynamic backend only
}

// RetryConfig bounds the backoff between attempts of a retried operation.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Initial  time.Duration `yaml:"initial"`
	Max      time.Duration `yaml:"max"`
}

type RunConfig struct {
	Duration        time.Duration `yaml:"duration"` // 0 runs until interrupted
	ReportPath      string        `yaml:"report_path"`
	ReportRetry     RetryConfig   `yaml:"report_retry"`
	StatsEvery      time.Duration `yaml:"stats_every"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the stock configuration: 60 fps, a one second look-ahead
// window and a half second beat.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "flaskanim",
			FPSNum: 60,
			FPSDen: 1,
		},
		Scheduler: SchedulerConfig{
			Policy:       string(scheduler.PolicyLookahead),
			MaxWindow:    scheduler.DefaultMaxWindow,
			BeatInterval: scheduler.DefaultBeatInterval,
			Ranges:       scheduler.DefaultRanges,
			RevPerSecond: 0.25,
		},
		Pool: PoolConfig{
			Backend:     BackendWorkerPool,
			Workers:     runtime.NumCPU(),
			IdleTimeout: 5 * time.Second,
		},
		Run: RunConfig{
			Duration:        10 * time.Second,
			ReportRetry:     RetryConfig{Attempts: 3, Initial: 200 * time.Millisecond, Max: 2 * time.Second},
			StatsEvery:      time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Window.FPSNum = getEnvAsUint32("FPS_NUM", c.Window.FPSNum)
	c.Window.FPSDen = getEnvAsUint32("FPS_DEN", c.Window.FPSDen)

	c.Scheduler.Policy = getEnv("POLICY", c.Scheduler.Policy)
	c.Scheduler.MaxWindow = getEnvAsUint32("MAX_WINDOW", c.Scheduler.MaxWindow)
	c.Scheduler.BeatInterval = getEnvAsUint32("BEAT_INTERVAL", c.Scheduler.BeatInterval)

	c.Pool.Backend = getEnv("POOL_BACKEND", c.Pool.Backend)
	c.Pool.Workers = getEnvAsInt("WORKERS", c.Pool.Workers)
	c.Pool.PinWorkers = getEnvAsBool("PIN_WORKERS", c.Pool.PinWorkers)

	c.Run.Duration = getEnvAsDuration("DURATION", c.Run.Duration)
	c.Run.ReportPath = getEnv("REPORT_PATH", c.Run.ReportPath)
}

// Validate checks the configuration and fills derived values.
func (c *Config) Validate() error {
	if c.Window.FPSNum == 0 || c.Window.FPSDen == 0 {
		return fmt.Errorf("%w: frame rate %d/%d", ErrInvalidConfig, c.Window.FPSNum, c.Window.FPSDen)
	}
	if c.Scheduler.MaxWindow == 0 {
		return fmt.Errorf("%w: scheduler.max_window must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.BeatInterval == 0 {
		return fmt.Errorf("%w: scheduler.beat_interval must be positive", ErrInvalidConfig)
	}
	if _, err := scheduler.ParsePolicy(c.Scheduler.Policy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for name, r := range map[string]scheduler.Range{
		"width":     c.Scheduler.Ranges.Width,
		"thickness": c.Scheduler.Ranges.Thickness,
		"height":    c.Scheduler.Ranges.Height,
	} {
		if r.Lo <= 0 || r.Hi <= 0 {
			return fmt.Errorf("%w: scheduler.ranges.%s must be positive, got [%g,%g]", ErrInvalidConfig, name, r.Lo, r.Hi)
		}
	}

	c.Pool.Backend = strings.ToLower(strings.TrimSpace(c.Pool.Backend))
	switch c.Pool.Backend {
	case BackendWorkerPool, BackendDynamic:
	default:
		return fmt.Errorf("%w: unknown pool.backend %q", ErrInvalidConfig, c.Pool.Backend)
	}
	if c.Pool.Workers < 0 || c.Pool.QueueSize < 0 {
		return fmt.Errorf("%w: pool sizes must not be negative", ErrInvalidConfig)
	}
	if c.Pool.Workers == 0 {
		c.Pool.Workers = runtime.NumCPU()
	}
	if c.Pool.QueueSize == 0 {
		// room for a full window plus one job per worker
		c.Pool.QueueSize = int(c.Scheduler.MaxWindow) + c.Pool.Workers
	}

	if c.Run.Duration < 0 {
		return fmt.Errorf("%w: run.duration must not be negative", ErrInvalidConfig)
	}
	if r := c.Run.ReportRetry; r.Attempts < 0 || (r.Attempts > 1 && (r.Initial <= 0 || r.Max < r.Initial)) {
		return fmt.Errorf("%w: run.report_retry needs initial > 0 and max >= initial, got %+v", ErrInvalidConfig, r)
	}
	if c.Run.ReportRetry.Attempts == 0 {
		c.Run.ReportRetry.Attempts = 1
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	return nil
}

// Frames is the number of frames Run.Duration covers, 0 when unlimited.
func (c *Config) Frames() uint32 {
	if c.Run.Duration <= 0 {
		return 0
	}
	us := uint64(c.Run.Duration / time.Microsecond)
	return uint32(us * uint64(c.Window.FPSNum) / (uint64(c.Window.FPSDen) * 1_000_000))
}

// SchedulerOptions converts the scheduler section.
func (c *Config) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		MaxWindow:    c.Scheduler.MaxWindow,
		BeatInterval: c.Scheduler.BeatInterval,
		Ranges:       c.Scheduler.Ranges,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint32(key string, defaultValue uint32) uint32 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			return uint32(v)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
