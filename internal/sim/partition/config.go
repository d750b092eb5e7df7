package partition

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DefaultPartitionID string `yaml:"default_partition_id"`
	Partitions         []Spec `yaml:"partitions"`
}

// Spec describes one partition. Zero values fall back to tuning.yaml.
type Spec struct {
	ID                string `yaml:"id"`
	TickRateHz        int    `yaml:"tick_rate_hz"`
	SequenceIdleTicks uint64 `yaml:"sequence_idle_ticks"`
	CollideSameUser   bool   `yaml:"collide_same_user"`
	InboxSize         int    `yaml:"inbox_size"`

	// Abilities limits the sample abilities registered in the partition. Empty
	// registers all of them.
	Abilities []string `yaml:"abilities,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("partitions.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("partitions.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultPartitionID: "overworld",
		Partitions:         []Spec{{ID: "overworld"}},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Partitions {
		c.Partitions[i].ID = strings.TrimSpace(c.Partitions[i].ID)
	}
	if strings.TrimSpace(c.DefaultPartitionID) == "" && len(c.Partitions) > 0 {
		c.DefaultPartitionID = c.Partitions[0].ID
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Partitions) == 0 {
		return fmt.Errorf("partitions must not be empty")
	}
	seen := map[string]bool{}
	for _, p := range c.Partitions {
		if p.ID == "" {
			return fmt.Errorf("partition id must not be empty")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate partition id: %s", p.ID)
		}
		seen[p.ID] = true
		if p.TickRateHz < 0 {
			return fmt.Errorf("partition %s tick_rate_hz must be >= 0", p.ID)
		}
		if p.InboxSize < 0 {
			return fmt.Errorf("partition %s inbox_size must be >= 0", p.ID)
		}
		names := map[string]bool{}
		for _, n := range p.Abilities {
			if names[n] {
				return fmt.Errorf("partition %s lists ability %s twice", p.ID, n)
			}
			names[n] = true
		}
	}
	if !seen[c.DefaultPartitionID] {
		return fmt.Errorf("default_partition_id %q not found in partitions", c.DefaultPartitionID)
	}
	return nil
}

func (c Config) SpecByID(id string) (Spec, bool) {
	for _, p := range c.Partitions {
		if p.ID == id {
			return p, true
		}
	}
	return Spec{}, false
}
