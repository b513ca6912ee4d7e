// Package manifest handles sigvm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/chazu/sigvm/vm"
	"github.com/chazu/sigvm/vm/savestate"
)

// FileName is the name of the project configuration file.
const FileName = "sigvm.toml"

// Manifest represents a sigvm.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Save    SaveConfig   `toml:"save"`
	Limits  LimitsConfig `toml:"limits"`
	Timing  TimingConfig `toml:"timing"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the sigvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project names the game and where it starts.
type Project struct {
	Name       string `toml:"name"`
	Bundle     string `toml:"bundle"`
	StartScene string `toml:"start_scene"`
	StartZ     int32  `toml:"start_z"`
	MenuScene  string `toml:"menu_scene"`
	MenuZ      int32  `toml:"menu_z"`
}

// SaveConfig configures where saves live and how many slots exist.
type SaveConfig struct {
	Dir           string `toml:"dir"`
	Database      string `toml:"database"`
	StandardSlots int    `toml:"standard_slots"`
	QuickSlots    int    `toml:"quick_slots"`
	InnerSlots    int    `toml:"inner_slots"`
	EndSlots      int    `toml:"end_slots"`
}

// LimitsConfig bounds decoding and execution.
type LimitsConfig struct {
	MaxArrayLen         int `toml:"max_array_len"`
	MaxStringBytes      int `toml:"max_string_bytes"`
	MaxTotalStringBytes int `toml:"max_total_string_bytes"`
	MaxCallDepth        int `toml:"max_call_depth"`
	MessageHistory      int `toml:"message_history"`
}

// TimingConfig configures the wait tick.
type TimingConfig struct {
	TickMs int `toml:"tick_ms"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no sigvm.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a sigvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a sigvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	for name, n := range map[string]int{
		"save.standard_slots":           m.Save.StandardSlots,
		"save.quick_slots":              m.Save.QuickSlots,
		"save.inner_slots":              m.Save.InnerSlots,
		"save.end_slots":                m.Save.EndSlots,
		"limits.max_array_len":          m.Limits.MaxArrayLen,
		"limits.max_string_bytes":       m.Limits.MaxStringBytes,
		"limits.max_total_string_bytes": m.Limits.MaxTotalStringBytes,
		"limits.max_call_depth":         m.Limits.MaxCallDepth,
		"limits.message_history":        m.Limits.MessageHistory,
		"timing.tick_ms":                m.Timing.TickMs,
	} {
		if n < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, n)
		}
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	d := vm.DefaultConfig()
	l := savestate.DefaultLimits()
	if m.Project.StartScene == "" {
		m.Project.StartScene = "start"
	}
	if m.Save.Dir == "" {
		m.Save.Dir = "save"
	}
	if m.Save.Database == "" {
		m.Save.Database = "slots.db"
	}
	setDefault(&m.Save.StandardSlots, d.StandardSlots)
	setDefault(&m.Save.QuickSlots, d.QuickSlots)
	setDefault(&m.Save.InnerSlots, d.InnerSlots)
	setDefault(&m.Save.EndSlots, d.EndSlots)
	setDefault(&m.Limits.MaxArrayLen, l.MaxArrayLen)
	setDefault(&m.Limits.MaxStringBytes, l.MaxStringBytes)
	setDefault(&m.Limits.MaxTotalStringBytes, l.MaxTotalStringBytes)
	setDefault(&m.Limits.MaxCallDepth, d.MaxCallDepth)
	setDefault(&m.Limits.MessageHistory, d.MessageHistory)
	setDefault(&m.Timing.TickMs, int(d.TickInterval/time.Millisecond))
}

func setDefault(p *int, def int) {
	if *p == 0 {
		*p = def
	}
}

// path resolves p against the manifest directory.
func (m *Manifest) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// BundlePath returns the absolute path of the scene bundle.
func (m *Manifest) BundlePath() string { return m.path(m.Project.Bundle) }

// SaveDir returns the directory holding persistent and end-save files.
func (m *Manifest) SaveDir() string { return m.path(m.Save.Dir) }

// DatabasePath returns the slot database path, inside SaveDir when relative.
func (m *Manifest) DatabasePath() string {
	if filepath.IsAbs(m.Save.Database) {
		return m.Save.Database
	}
	return filepath.Join(m.SaveDir(), m.Save.Database)
}

// LogPath returns the log file path, or "" for stderr.
func (m *Manifest) LogPath() string { return m.path(m.Log.File) }

// VMConfig converts the manifest to a VM configuration.
func (m *Manifest) VMConfig() vm.Config {
	return vm.Config{
		MaxCallDepth:   m.Limits.MaxCallDepth,
		TickInterval:   time.Duration(m.Timing.TickMs) * time.Millisecond,
		MessageHistory: m.Limits.MessageHistory,
		MenuScene:      m.Project.MenuScene,
		MenuZ:          m.Project.MenuZ,
		StandardSlots:  m.Save.StandardSlots,
		QuickSlots:     m.Save.QuickSlots,
		InnerSlots:     m.Save.InnerSlots,
		EndSlots:       m.Save.EndSlots,
	}
}

// DecodeLimits converts the manifest to save-state decode limits.
func (m *Manifest) DecodeLimits() savestate.Limits {
	return savestate.Limits{
		MaxArrayLen:         m.Limits.MaxArrayLen,
		MaxStringBytes:      m.Limits.MaxStringBytes,
		MaxTotalStringBytes: m.Limits.MaxTotalStringBytes,
		MaxFrames:           m.Limits.MaxCallDepth,
	}
}
