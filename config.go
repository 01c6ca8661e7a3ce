package stackedfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Layer kinds understood by Config
const (
	LayerMemory = "memory"
	LayerDisk   = "disk"
)

// Config describes a stack of readers
type Config struct {
	Layers []LayerConfig `yaml:"layers"` // highest priority first
	Watch  WatchConfig   `yaml:"watch"`
	Log    LogConfig     `yaml:"log"`
}

// LayerConfig describes one backing reader
type LayerConfig struct {
	Kind  string            `yaml:"kind"`
	Root  string            `yaml:"root"`  // disk only
	Files map[string]string `yaml:"files"` // memory only, path to content
}

// WatchConfig controls watching disk layers for changes
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
	Resync   time.Duration `yaml:"resync"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns configuration with sensible defaults: a single disk
// layer rooted at the working directory
func DefaultConfig() *Config {
	return &Config{
		Layers: []LayerConfig{
			{Kind: LayerDisk, Root: "."},
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: defaultWatchDebounce,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from a YAML file. A missing file yields the defaults.
// Relative disk roots are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range cfg.Layers {
		layer := &cfg.Layers[i]
		if layer.Kind == LayerDisk && layer.Root != "" && !filepath.IsAbs(layer.Root) {
			layer.Root = filepath.Join(base, layer.Root)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Layers) == 0 {
		return errors.New("config: at least one layer is required")
	}
	for i, layer := range c.Layers {
		switch layer.Kind {
		case LayerMemory:
		case LayerDisk:
			if layer.Root == "" {
				return fmt.Errorf("config: layer %d: disk layer requires a root", i)
			}
		default:
			return fmt.Errorf("config: layer %d: unknown kind %q", i, layer.Kind)
		}
	}
	if c.Watch.Debounce < 0 || c.Watch.Resync < 0 {
		return errors.New("config: watch durations must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Stack is a stacked reader assembled from a Config, together with the
// readers and watchers it owns
type Stack struct {
	*StackedReader
	Memory   []*MemoryReader
	Disks    []*FSReader
	Watchers []*Watcher
}

// Open builds the readers described by the configuration and stacks them
func (c *Config) Open() (*Stack, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	stack := &Stack{}
	readers := make([]Reader, 0, len(c.Layers))
	for i, layer := range c.Layers {
		switch layer.Kind {
		case LayerMemory:
			m, err := NewMemoryReader()
			if err != nil {
				return nil, err
			}
			for name, content := range layer.Files {
				if err := m.WriteFile(name, []byte(content)); err != nil {
					return nil, fmt.Errorf("config: layer %d: %w", i, err)
				}
			}
			stack.Memory = append(stack.Memory, m)
			readers = append(readers, m)
		case LayerDisk:
			d, err := NewDiskReader(layer.Root)
			if err != nil {
				return nil, fmt.Errorf("config: layer %d: %w", i, err)
			}
			stack.Disks = append(stack.Disks, d)
			readers = append(readers, d)
		}
	}

	stack.StackedReader = New(
		WithReaders(readers...),
		WithLogger(log.Logger.With().Str("component", "stacked-reader").Logger()),
	)

	if c.Watch.Enabled {
		for _, d := range stack.Disks {
			w, err := NewWatcher(d.Root(), d.Listeners(),
				WithDebounce(c.Watch.Debounce),
				WithResyncInterval(c.Watch.Resync),
			)
			if err != nil {
				stack.Close()
				return nil, fmt.Errorf("failed to watch %s: %w", d.Root(), err)
			}
			stack.Watchers = append(stack.Watchers, w)
		}
	}

	return stack, nil
}

// Sync re-synchronizes every watcher with the currently observed paths
func (s *Stack) Sync() error {
	var errs []error
	for _, w := range s.Watchers {
		errs = append(errs, w.Sync())
	}
	return errors.Join(errs...)
}

// Close stops the watchers and unsubscribes the stacked reader
func (s *Stack) Close() error {
	var errs []error
	for _, w := range s.Watchers {
		errs = append(errs, w.Close())
	}
	if s.StackedReader != nil {
		errs = append(errs, s.StackedReader.Close())
	}
	return errors.Join(errs...)
}
