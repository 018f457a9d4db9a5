package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunables of a scheduling run.
type Policy struct {
	// CategoryRunLimit caps consecutive sessions of one category. Zero
	// turns the heuristic off.
	CategoryRunLimit int `yaml:"category_run_limit"`
	// WeekDays is the width of a stored week bucket, Monday first.
	WeekDays int           `yaml:"week_days"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

func DefaultPolicy() Policy {
	return Policy{
		CategoryRunLimit: 2,
		WeekDays:         6,
		LockTTL:          10 * time.Minute,
	}
}

// LoadPolicy reads a YAML policy file. Keys missing from the file keep their
// defaults. An empty path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.CategoryRunLimit < 0 {
		return fmt.Errorf("category_run_limit must not be negative, got %d", p.CategoryRunLimit)
	}
	if p.WeekDays < 1 || p.WeekDays > 7 {
		return fmt.Errorf("week_days must be between 1 and 7, got %d", p.WeekDays)
	}
	if p.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be positive, got %s", p.LockTTL)
	}
	return nil
}
