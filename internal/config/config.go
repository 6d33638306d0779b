package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const FileName = "sherbet.toml"

const (
	DefaultMaxFrames = 256
	DefaultStackSize = 4096
)

type Manifest struct {
	Run      Run      `toml:"run"`
	VM       VM       `toml:"vm"`
	Compiler Compiler `toml:"compiler"`

	// Dir holds the manifest's directory; Entry is relative to it.
	Dir string `toml:"-"`
}

type Run struct {
	Entry string `toml:"entry"`
}

type VM struct {
	MaxFrames int  `toml:"max_frames"`
	StackSize int  `toml:"stack_size"`
	Trace     bool `toml:"trace"`
}

type Compiler struct {
	ArityCheck *bool `toml:"arity_check"`
}

// Default is the manifest used when no sherbet.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.VM.MaxFrames == 0 {
		m.VM.MaxFrames = DefaultMaxFrames
	}
	if m.VM.StackSize == 0 {
		m.VM.StackSize = DefaultStackSize
	}
	if m.Compiler.ArityCheck == nil {
		on := true
		m.Compiler.ArityCheck = &on
	}
}

// ArityCheck reports whether the compile-time arity prepass is enabled.
func (m *Manifest) ArityCheck() bool {
	return m.Compiler.ArityCheck == nil || *m.Compiler.ArityCheck
}

// EntryPath resolves run.entry against the manifest directory.
func (m *Manifest) EntryPath() string {
	if m.Run.Entry == "" || filepath.IsAbs(m.Run.Entry) {
		return m.Run.Entry
	}
	return filepath.Join(m.Dir, m.Run.Entry)
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := &Manifest{}
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if m.VM.MaxFrames < 0 {
		return nil, fmt.Errorf("%s: vm.max_frames must be positive", path)
	}
	if m.VM.StackSize < 0 {
		return nil, fmt.Errorf("%s: vm.stack_size must be positive", path)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m.applyDefaults()
	return m, nil
}

// Find walks up from dir looking for sherbet.toml. It returns an empty
// path when none exists.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// FindAndLoad returns the nearest manifest above dir, or Default.
func FindAndLoad(dir string) (*Manifest, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		m := Default()
		m.Dir, _ = filepath.Abs(dir)
		return m, nil
	}
	return LoadManifest(path)
}
