// Package config handles dmrun.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a dmrun.toml file.
type Config struct {
	World     World     `toml:"world"`
	Resources Resources `toml:"resources"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the config file (set at load time).
	Dir string `toml:"-"`
}

// World configures the program to run.
type World struct {
	Name    string `toml:"name"`
	Program string `toml:"program"`
	Entry   string `toml:"entry"`
}

// Resources configures the resource store.
type Resources struct {
	Store string `toml:"store"`
}

// Log configures verbosity.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Load parses a dmrun.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "dmrun.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.World.Program == "" {
		c.World.Program = "world.dmp"
	}
	if c.World.Entry == "" {
		c.World.Entry = "main"
	}
	if c.Resources.Store == "" {
		c.Resources.Store = "resources.db"
	}
}

// ProgramPath returns the program file path resolved against the config
// directory.
func (c *Config) ProgramPath() string {
	return filepath.Join(c.Dir, c.World.Program)
}

// StorePath returns the resource store path resolved against the config
// directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.Dir, c.Resources.Store)
}
