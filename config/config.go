// Package config describes how the filestore CLI opens a root: where its
// backing directory lives, how big its in-memory cache may grow, and how
// many GC steps the CLI counts as one burst when logging progress (each
// GarbageCollector call still does one unit of work). The library packages
// (objectid, ca, dirfs, ca/pack) never import this package — they take
// explicit constructor arguments, exactly like the teacher's storage
// packages take a billy.Filesystem rather than reading a config file
// themselves (spec.md §4.12).
package config

import (
	"github.com/BurntSushi/toml"

	"github.com/planetscentral/filestore/ca"
)

// Config is the on-disk TOML shape understood by cmd/filestore.
type Config struct {
	// Directory is the game directory to open as a ca.Root: it contains
	// (or will be created to contain) "objects" and "refs/heads".
	Directory string `toml:"directory"`

	Cache struct {
		MaxObjects int `toml:"max_objects,omitempty"`
		MaxBytes   int `toml:"max_bytes,omitempty"`
	} `toml:"cache,omitempty"`

	GC struct {
		ObjectsPerCheck     int `toml:"objects_per_check,omitempty"`
		SubdirsPerSweepCall int `toml:"subdirs_per_sweep_call,omitempty"`
	} `toml:"gc,omitempty"`
}

// Default returns a Config with every limit set to its library default,
// pointing at the current directory.
func Default() Config {
	c := Config{Directory: "."}
	c.Cache.MaxObjects = ca.DefaultMaxCachedObjects
	c.Cache.MaxBytes = ca.DefaultMaxCachedBytes
	c.GC.ObjectsPerCheck = 1
	c.GC.SubdirsPerSweepCall = 1
	return c
}

// Load reads and decodes a TOML file at path, starting from Default()
// so any field the file omits keeps its library default.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// NewCache builds the InternalObjectCache described by c.
func (c Config) NewCache() *ca.InternalObjectCache {
	return ca.NewInternalObjectCache(c.Cache.MaxObjects, c.Cache.MaxBytes)
}
