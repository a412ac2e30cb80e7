// Package config loads the YAML-described engine and topology settings
// that parameterize a simulation run.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vnetsim/vnetsim-core/policy"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// EngineConfig controls the scheduler itself: worker count, scheduling
// policy, and the simulation's time bounds.
type EngineConfig struct {
	NWorkers       int       `yaml:"n_workers"`
	NCPUs          int       `yaml:"n_cpus"`
	PolicyTag      string    `yaml:"policy"`
	Seed           int64     `yaml:"seed"`
	EndTimeNS      uint64    `yaml:"end_time_ns"`
	MaxConcurrency int       `yaml:"max_concurrency"`
}

// Validate checks the engine configuration is internally consistent.
func (c *EngineConfig) Validate() error {
	if c.NWorkers < 0 {
		return fmt.Errorf("config: n_workers must be >= 0, got %d", c.NWorkers)
	}
	if c.NCPUs < 1 {
		return fmt.Errorf("config: n_cpus must be >= 1, got %d", c.NCPUs)
	}
	if c.EndTimeNS == 0 {
		return fmt.Errorf("config: end_time_ns must be > 0")
	}
	switch policy.Tag(c.PolicyTag) {
	case policy.TagSerial, policy.TagHost, policy.TagSteal,
		policy.TagThreadSingle, policy.TagThreadPerPair, policy.TagThreadPerHost:
	default:
		return fmt.Errorf("config: unknown policy %q", c.PolicyTag)
	}
	if policy.Tag(c.PolicyTag) == policy.TagSteal && c.MaxConcurrency > 0 && c.NWorkers > c.MaxConcurrency {
		return fmt.Errorf("config: steal policy requires n_workers (%d) <= max_concurrency (%d)", c.NWorkers, c.MaxConcurrency)
	}
	if policy.Tag(c.PolicyTag) == policy.TagSerial && c.NWorkers > 1 {
		return fmt.Errorf("config: serial policy is single-threaded, got n_workers=%d", c.NWorkers)
	}
	return nil
}

// EndTime is EndTimeNS as a vtime.SimulationTime.
func (c *EngineConfig) EndTime() vtime.SimulationTime { return vtime.SimulationTime(c.EndTimeNS) }

// DefaultEngineConfig returns a single-threaded, host-policy default.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		NWorkers:       0,
		NCPUs:          1,
		PolicyTag:      string(policy.TagHost),
		Seed:           1,
		EndTimeNS:      1_000_000,
		MaxConcurrency: 0,
	}
}

// LoadEngineConfig reads and validates an EngineConfig from a YAML file.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := DefaultEngineConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EdgeConfig is one one-way latency link in a TopologyConfig.
type EdgeConfig struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	LatencyNS uint64 `yaml:"latency_ns"`
}

// TopologyConfig lists the hosts present in a simulation and the one-way
// latency edges between them.
type TopologyConfig struct {
	Hosts []string     `yaml:"hosts"`
	Edges []EdgeConfig `yaml:"edges"`
}

// Validate checks every edge references a declared host and carries a
// positive latency.
func (c *TopologyConfig) Validate() error {
	known := make(map[string]bool, len(c.Hosts))
	for _, h := range c.Hosts {
		known[h] = true
	}
	for _, e := range c.Edges {
		if !known[e.From] {
			return fmt.Errorf("config: edge references unknown host %q", e.From)
		}
		if !known[e.To] {
			return fmt.Errorf("config: edge references unknown host %q", e.To)
		}
		if e.LatencyNS == 0 {
			return fmt.Errorf("config: edge %s->%s has zero latency", e.From, e.To)
		}
	}
	return nil
}

// LoadTopologyConfig reads and validates a TopologyConfig from a YAML file.
func LoadTopologyConfig(path string) (*TopologyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg TopologyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
