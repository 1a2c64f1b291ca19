// Package config loads the orchestrator's configuration, the Go
// equivalent of the opaque structured payload the host DAQ framework
// hands to "conf". Field names and types match the specification's
// configuration table.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

// Config is the root configuration for a DFO process.
type Config struct {
	DataflowApplications []models.WorkerSpec `yaml:"dataflow_applications"`
	GeneralQueueTimeout  time.Duration       `yaml:"general_queue_timeout"`
	TokenConnection       string              `yaml:"token_connection"`
	TDSendRetries         int                 `yaml:"td_send_retries"`

	// FreeThresholdRatio derives a per-worker free_threshold from its
	// capacity when a WorkerSpec doesn't set one explicitly.
	FreeThresholdRatio float64 `yaml:"free_threshold_ratio"`

	// ListenAddr is the bind address for the REST control/status API and
	// dashboard.
	ListenAddr string `yaml:"listen_addr"`

	// EtcdEndpoints enables HA standby mode when non-empty: multiple DFO
	// processes campaign for leadership and only the winner dispatches.
	EtcdEndpoints []string `yaml:"etcd_endpoints"`

	// QueueCapacity bounds the trigger-decision input queue. Zero means
	// unbounded.
	QueueCapacity int `yaml:"queue_capacity"`
}

// Load reads and parses a YAML configuration file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.GeneralQueueTimeout == 0 {
		c.GeneralQueueTimeout = 100 * time.Millisecond
	}
	if c.TDSendRetries == 0 {
		c.TDSendRetries = 3
	}
	if c.FreeThresholdRatio == 0 {
		c.FreeThresholdRatio = 0.6
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	for i := range c.DataflowApplications {
		app := &c.DataflowApplications[i]
		if app.FreeThreshold == 0 {
			app.FreeThreshold = int(float64(app.Capacity) * c.FreeThresholdRatio)
		}
		if app.Address == "" {
			app.Address = app.ConnectionName
		}
	}
}

// Validate checks invariants the specification requires of a
// configuration before it can be used to populate a WorkerTable.
func (c *Config) Validate() error {
	if c.TDSendRetries < 1 {
		return fmt.Errorf("config: td_send_retries must be >= 1, got %d", c.TDSendRetries)
	}
	if c.TokenConnection == "" {
		return fmt.Errorf("config: token_connection is required")
	}
	seen := make(map[string]bool, len(c.DataflowApplications))
	for _, app := range c.DataflowApplications {
		if app.ConnectionName == "" {
			return fmt.Errorf("config: dataflow_applications entry missing decision_connection")
		}
		if seen[app.ConnectionName] {
			return fmt.Errorf("config: duplicate decision_connection %q", app.ConnectionName)
		}
		seen[app.ConnectionName] = true
		if app.Capacity < 1 {
			return fmt.Errorf("config: worker %q capacity must be >= 1", app.ConnectionName)
		}
		if app.FreeThreshold > app.Capacity {
			return fmt.Errorf("config: worker %q free_threshold exceeds capacity", app.ConnectionName)
		}
	}
	return nil
}
