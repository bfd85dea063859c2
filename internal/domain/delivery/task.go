// Package delivery models the delivery dashboard: a pool of candidate jobs,
// a single-slot offer with an acceptance countdown, and the ledger that
// partitions a session's tasks into offered, ongoing and completed.
package delivery

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// completedPrefix is prepended to a task ID when it moves to the completed bucket.
const completedPrefix = "completed-"

// Task is a delivery job. Everything except Status is fixed once the task
// is drawn from the pool.
type Task struct {
	ID       string `json:"id" yaml:"id"`
	SourceID string `json:"source_id" yaml:"-"`
	Food     string `json:"food" yaml:"food"`
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	Distance string `json:"distance" yaml:"distance"`
	Earnings int    `json:"earnings" yaml:"earnings"`
	Coins    int    `json:"coins" yaml:"coins"`
	Status   Status `json:"status" yaml:"-"`
}

// Validate checks the fields a pool entry must carry.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.Food == "" {
		return fmt.Errorf("task %s: food is required", t.ID)
	}
	if t.From == "" || t.To == "" {
		return fmt.Errorf("task %s: from and to are required", t.ID)
	}
	if t.Earnings < 0 {
		return fmt.Errorf("task %s: earnings must be >= 0", t.ID)
	}
	if t.Coins < 0 {
		return fmt.Errorf("task %s: coins must be >= 0", t.ID)
	}
	return nil
}

// Pool is the static list of candidate tasks a session draws offers from.
type Pool struct {
	Tasks []Task `yaml:"tasks"`
}

//go:embed pool.yaml
var defaultPoolYAML []byte

// DefaultPool returns the built-in task pool.
func DefaultPool() (*Pool, error) {
	return ParsePool(defaultPoolYAML)
}

// LoadPool reads a task pool from a YAML file.
func LoadPool(path string) (*Pool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read task pool %s: %w", path, err)
	}
	p, err := ParsePool(data)
	if err != nil {
		return nil, fmt.Errorf("task pool %s: %w", path, err)
	}
	return p, nil
}

// ParsePool decodes and validates a YAML task pool. IDs must be unique.
func ParsePool(data []byte) (*Pool, error) {
	var p Pool
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse task pool: %w", err)
	}

	seen := make(map[string]bool, len(p.Tasks))
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
		t.SourceID = t.ID
		t.Status = StatusAwaitingPickup
	}
	return &p, nil
}
