// Package config loads kskew defaults from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/HaPhanBaoMinh/kskew/internal/owner"
	"github.com/HaPhanBaoMinh/kskew/internal/render"
	"github.com/HaPhanBaoMinh/kskew/internal/topology"
)

// Config holds the settings a config file may override. Flags set on the
// command line take precedence over all of them.
type Config struct {
	TopologyKey   string        `yaml:"topologyKey"`
	Output        string        `yaml:"output"`
	Timeout       time.Duration `yaml:"timeout"`
	OwnerMaxHops  int           `yaml:"ownerMaxHops"`
	AllPhases     bool          `yaml:"allPhases"`
	WatchInterval time.Duration `yaml:"watchInterval"`
	Kubeconfig    string        `yaml:"kubeconfig"`
}

func Defaults() Config {
	return Config{
		TopologyKey:   topology.DefaultKey,
		Output:        string(render.FormatText),
		Timeout:       30 * time.Second,
		OwnerMaxHops:  owner.DefaultMaxHops,
		WatchInterval: 5 * time.Second,
	}
}

// Load reads path over the defaults. A missing file is only an error when
// the caller asked for it explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return cfg, fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return cfg, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TopologyKey == "" {
		return errors.New("topologyKey must not be empty")
	}
	if _, err := render.ParseFormat(c.Output); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.OwnerMaxHops < 1 {
		return fmt.Errorf("ownerMaxHops must be at least 1, got %d", c.OwnerMaxHops)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watchInterval must be positive, got %s", c.WatchInterval)
	}
	return nil
}
