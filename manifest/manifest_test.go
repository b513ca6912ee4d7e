package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "summer"
bundle = "data/scenes.sgb"
start_scene = "prologue"
start_z = 2
menu_scene = "title"

[save]
dir = "/var/saves"
quick_slots = 3

[limits]
max_call_depth = 64
max_string_bytes = 4096

[timing]
tick_ms = 10

[log]
verbosity = 2
file = "sigvm.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "summer" {
		t.Errorf("project name = %q, want summer", m.Project.Name)
	}
	if m.Project.StartScene != "prologue" || m.Project.StartZ != 2 {
		t.Errorf("start = %s z%d, want prologue z2", m.Project.StartScene, m.Project.StartZ)
	}
	if got, want := m.BundlePath(), filepath.Join(m.Dir, "data", "scenes.sgb"); got != want {
		t.Errorf("bundle path = %q, want %q", got, want)
	}
	if m.SaveDir() != "/var/saves" {
		t.Errorf("save dir = %q, want /var/saves", m.SaveDir())
	}
	if m.DatabasePath() != "/var/saves/slots.db" {
		t.Errorf("database = %q", m.DatabasePath())
	}
	if !strings.HasSuffix(m.LogPath(), "sigvm.log") || m.Log.Verbosity != 2 {
		t.Errorf("log = %q verbosity %d", m.LogPath(), m.Log.Verbosity)
	}

	cfg := m.VMConfig()
	if cfg.MaxCallDepth != 64 {
		t.Errorf("max call depth = %d, want 64", cfg.MaxCallDepth)
	}
	if cfg.TickInterval != 10*time.Millisecond {
		t.Errorf("tick = %v, want 10ms", cfg.TickInterval)
	}
	if cfg.QuickSlots != 3 || cfg.StandardSlots != 100 {
		t.Errorf("slots quick=%d standard=%d", cfg.QuickSlots, cfg.StandardSlots)
	}
	if cfg.MenuScene != "title" {
		t.Errorf("menu scene = %q, want title", cfg.MenuScene)
	}

	lim := m.DecodeLimits()
	if lim.MaxStringBytes != 4096 || lim.MaxFrames != 64 {
		t.Errorf("limits = %+v", lim)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.StartScene != "start" {
		t.Errorf("default start scene = %q, want start", m.Project.StartScene)
	}
	if m.SaveDir() != filepath.Join(m.Dir, "save") {
		t.Errorf("default save dir = %q", m.SaveDir())
	}
	if m.LogPath() != "" {
		t.Errorf("default log path = %q, want stderr", m.LogPath())
	}
	cfg := m.VMConfig()
	if cfg.TickInterval != 16*time.Millisecond || cfg.EndSlots != 10 || cfg.MessageHistory != 256 {
		t.Errorf("defaults = %+v", cfg)
	}
	if lim := m.DecodeLimits(); lim.MaxTotalStringBytes != 16<<20 {
		t.Errorf("default string budget = %d", lim.MaxTotalStringBytes)
	}
}

func TestLoadManifestRejectsNegative(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[save]
end_slots = -1
`)
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "save.end_slots") {
		t.Errorf("err = %v, want a save.end_slots error", err)
	}
}

func TestLoadManifestParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\nname = 1\n")
	if _, err := Load(dir); err == nil {
		t.Error("expected a parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no sigvm.toml exists")
	}
}

func TestDefaultManifest(t *testing.T) {
	m := Default("/game")
	if m.SaveDir() != "/game/save" {
		t.Errorf("save dir = %q", m.SaveDir())
	}
	if m.DatabasePath() != "/game/save/slots.db" {
		t.Errorf("database = %q", m.DatabasePath())
	}
}
