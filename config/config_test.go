package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dmrun.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `
[world]
name = "testworld"
program = "compiled.dmp"
entry = "boot"

[resources]
store = "assets.db"

[log]
verbosity = 2
`)
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.World.Name != "testworld" || c.World.Entry != "boot" {
		t.Errorf("world section: %+v", c.World)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d", c.Log.Verbosity)
	}
	if c.ProgramPath() != filepath.Join(c.Dir, "compiled.dmp") {
		t.Errorf("ProgramPath = %q", c.ProgramPath())
	}
	if c.StorePath() != filepath.Join(c.Dir, "assets.db") {
		t.Errorf("StorePath = %q", c.StorePath())
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := writeConfig(t, `
[world]
name = "minimal"
`)
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.World.Program != "world.dmp" {
		t.Errorf("default program = %q", c.World.Program)
	}
	if c.World.Entry != "main" {
		t.Errorf("default entry = %q", c.World.Entry)
	}
	if c.Resources.Store != "resources.db" {
		t.Errorf("default store = %q", c.Resources.Store)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("missing config loaded")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := writeConfig(t, "[world\nname=")
	if _, err := Load(dir); err == nil {
		t.Error("malformed config loaded")
	}
}
