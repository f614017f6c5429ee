package main

import (
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"

	"github.com/planetscentral/filestore/ca"
	"github.com/planetscentral/filestore/config"
	"github.com/planetscentral/filestore/dirfs"
)

func openRoot(directory string) (*ca.Root, error) {
	return openRootWithConfig(directory, "")
}

// openRootWithConfig opens directory as a Root. If configPath is set its
// cache limits override the library defaults; the directory named on the
// command line always wins over config.Directory, since a command-line
// argument is a more specific instruction than a config file default.
func openRootWithConfig(directory, configPath string) (*ca.Root, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "load config")
		}
		cfg = loaded
	}

	fs := osfs.New(directory)
	base := dirfs.NewOSHandler(fs)
	return ca.OpenRoot(base, ca.WithCache(cfg.NewCache()))
}

// resolveDir walks path (slash-separated, relative to h) through
// GetDirectory, creating any missing segment when create is true.
func resolveDir(h dirfs.Handler, path string, create bool) (dirfs.Handler, error) {
	for _, name := range splitPath(path) {
		d, err := h.GetDirectory(dirfs.Info{Name: name})
		if errors.Is(err, dirfs.ErrFileNotFound) && create {
			if _, err := h.CreateDirectory(name); err != nil {
				return nil, err
			}
			d, err = h.GetDirectory(dirfs.Info{Name: name})
			if err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		h = d
	}
	return h, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func splitDirAndName(path string) (dir string, name string) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "", ""
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1]
}
