package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Durations are carried
// as integer milliseconds or seconds so the YAML stays plain numbers.
type Config struct {
	Meeting   MeetingConfig   `yaml:"meeting"`
	Store     StoreConfig     `yaml:"store"`
	Collector CollectorConfig `yaml:"collector"`
	Relay     RelayConfig     `yaml:"relay"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Sync      SyncConfig      `yaml:"sync"`
	Quiz      QuizConfig      `yaml:"quiz"`
	LogLevel  string          `yaml:"logLevel"`
}

type MeetingConfig struct {
	ID       string `yaml:"id"`
	Hostmail string `yaml:"hostmail"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type CollectorConfig struct {
	// Addr the collector server listens on (serve mode).
	Addr string `yaml:"addr"`

	// URL capture clients deliver to.
	URL string `yaml:"url"`

	// SpoolDir for offline batch ingestion; empty disables it.
	SpoolDir string `yaml:"spoolDir"`

	Workers int `yaml:"workers"`
}

type RelayConfig struct {
	URL string `yaml:"url"`
}

type SegmenterConfig struct {
	PauseThresholdMs int     `yaml:"pauseThresholdMs"`
	ActivityGraceMs  int     `yaml:"activityGraceMs"`
	PollIntervalMs   int     `yaml:"pollIntervalMs"`
	MinSegmentLength int     `yaml:"minSegmentLength"`
	DuplicateScore   float64 `yaml:"duplicateScore"`
}

func (c SegmenterConfig) PauseThreshold() time.Duration {
	return time.Duration(c.PauseThresholdMs) * time.Millisecond
}

func (c SegmenterConfig) ActivityGrace() time.Duration {
	return time.Duration(c.ActivityGraceMs) * time.Millisecond
}

func (c SegmenterConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

type SyncConfig struct {
	FlushIntervalSeconds int `yaml:"flushIntervalSeconds"`
}

func (c SyncConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

type QuizConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Path: "pollscribe.db",
		},
		Collector: CollectorConfig{
			Addr:    ":8085",
			URL:     "http://localhost:8085",
			Workers: 2,
		},
		Segmenter: SegmenterConfig{
			PauseThresholdMs: 10000,
			ActivityGraceMs:  3000,
			PollIntervalMs:   100,
			MinSegmentLength: 25,
			DuplicateScore:   90,
		},
		Sync: SyncConfig{
			FlushIntervalSeconds: 30,
		},
		Quiz: QuizConfig{
			Model: "llama3",
		},
		LogLevel: "info",
	}
}

// Load reads path and overlays it on the defaults. A missing file is
// an error; use Default directly when running without one.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
