package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML overlay on top of environment defaults.
type Config struct {
	Draft struct {
		SchedulerBatchSize int32 `yaml:"scheduler_batch_size"`
	} `yaml:"draft"`
	Outbox struct {
		NotifyChannel       string `yaml:"notify_channel"`
		FallbackIntervalSec int    `yaml:"fallback_interval_sec"`
		BatchSize           int32  `yaml:"batch_size"`
	} `yaml:"outbox"`
	NATS struct {
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Draft.SchedulerBatchSize = 10
	cfg.Outbox.NotifyChannel = "draft_outbox_events"
	cfg.Outbox.FallbackIntervalSec = 30
	cfg.Outbox.BatchSize = 100
	cfg.NATS.URL = getEnv("NATS_URL", "nats://localhost:4222")
	cfg.NATS.StreamName = "DRAFT_SESSION_EVENTS"
	cfg.NATS.SubjectPrefix = "draft.sessions"
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) FallbackInterval() time.Duration {
	return time.Duration(c.Outbox.FallbackIntervalSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
