package target

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HashemBader/lccn-harvester/internal/z3950"
)

// Type names accepted in target configuration files.
const (
	TypeLoC         = "loc"
	TypeHarvard     = "harvard"
	TypeOpenLibrary = "openlibrary"
	TypeZ3950       = "z3950"
)

const (
	defaultMaxRetries = 2
	defaultRetryDelay = 2 * time.Second
)

// Config is one target entry from targets.json or targets.yaml.
type Config struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Host       string `json:"host,omitempty" yaml:"host,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Timeout    int    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Rank       int    `json:"rank" yaml:"rank"`
	Selected   bool   `json:"selected" yaml:"selected"`
}

// Entry pairs a built target with its retry policy, in cascade order.
type Entry struct {
	Target Target
	Retry  RetryPolicy
}

// LoadConfigs reads a target list from a JSON or YAML file, chosen by
// extension.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading target config: %w", err)
	}

	var cfgs []Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfgs)
	default:
		err = json.Unmarshal(data, &cfgs)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfgs, nil
}

// DefaultConfigs is the cascade used when no config file is given: the
// free public sources, ranked by record quality.
func DefaultConfigs() []Config {
	return []Config{
		{Name: "loc", Type: TypeLoC, Rank: 1, Selected: true},
		{Name: "harvard", Type: TypeHarvard, Rank: 2, Selected: true},
		{Name: "openlibrary", Type: TypeOpenLibrary, Rank: 3, Selected: true},
	}
}

// Build filters to selected targets, orders them by rank and
// instantiates each one. Entries with an unknown type or an incomplete
// z3950 address are dropped with a warning rather than failing the run.
func Build(cfgs []Config) ([]Entry, error) {
	var selected []Config
	for _, c := range cfgs {
		if c.Selected {
			selected = append(selected, c)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Rank < selected[j].Rank
	})

	var entries []Entry
	for _, c := range selected {
		t, err := build(c)
		if err != nil {
			slog.Warn("dropping target", "name", c.Name, "error", err)
			continue
		}

		retries := c.MaxRetries
		if retries <= 0 {
			retries = defaultMaxRetries
		}
		entries = append(entries, Entry{
			Target: t,
			Retry:  RetryPolicy{MaxRetries: retries, Delay: defaultRetryDelay},
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no usable targets configured")
	}
	return entries, nil
}

func build(c Config) (Target, error) {
	timeout := timeoutOrDefault(c.Timeout)

	switch c.Type {
	case TypeLoC:
		return NewLoC(timeout), nil
	case TypeHarvard:
		return NewHarvard(timeout), nil
	case TypeOpenLibrary:
		return NewOpenLibrary(timeout), nil
	case TypeZ3950:
		if c.Host == "" || c.Port == 0 || c.Database == "" {
			return nil, fmt.Errorf("z3950 target %q needs host, port and database", c.Name)
		}
		name := c.Name
		if name == "" {
			name = c.Host
		}
		return NewZ3950(name, z3950.Options{
			Host:     c.Host,
			Port:     c.Port,
			Database: c.Database,
			Timeout:  timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown target type %q", c.Type)
	}
}
