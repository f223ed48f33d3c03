package heimdall

import (
	"errors"
	"os"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/clock"
)

// Config carries every knob the Core API exposes. The zero value is
// usable: defaults are applied by Init.
type Config struct {
	// MaxFileSize caps input artifact size in bytes; 0 selects
	// the 2 GiB default.
	MaxFileSize int64 `yaml:"max_file_size"`

	// HeuristicWindow bounds the fallback source-file byte scan; 0
	// selects the 4 MiB
	// default.
	HeuristicWindow int `yaml:"heuristic_window"`

	// DisableDWARF skips debug-info extraction entirely, forcing the
	// heuristic fallback.
	DisableDWARF bool `yaml:"disable_dwarf"`

	// Timeout is the per-artifact wall-clock budget; 0 selects 60s.
	Timeout time.Duration `yaml:"timeout"`

	// Transitive controls dependency-closure depth; the default
	// resolves the full
	// closure.
	Transitive *bool `yaml:"transitive"`

	// SearchPaths are tried before the platform's shared-library search
	// order when resolving needed names.
	SearchPaths []string `yaml:"search_paths"`

	// MaxWorkers bounds concurrent artifact extraction; 0 selects
	// the worker-pool default.
	MaxWorkers int `yaml:"max_workers"`

	// PackageDBRoot overrides the filesystem root the package probe
	// reads its databases from; tests point it at a fixture tree.
	PackageDBRoot string `yaml:"package_db_root"`

	// Organization and Person are appended to the document's creator
	// chain after the tool entry.
	Organization string `yaml:"organization"`
	Person       string `yaml:"person"`
	PersonEmail  string `yaml:"person_email"`

	// Clock is injectable for deterministic timestamps in tests; nil
	// selects the real clock.
	Clock clock.Clock `yaml:"-"`
}

// configStore is a minimal generic YAML file loader, the same shape as a
// YAMLStore[T] keyed to one file.
type configStore[T any] struct {
	path         string
	allowMissing bool
}

func (s configStore[T]) load() (T, error) {
	var result T
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.allowMissing {
			return result, nil
		}
		return result, xerrors.Errorf("config: read %s: %w", s.path, ErrIoError)
	}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return result, xerrors.Errorf("config: invalid %s: %w", s.path, err)
	}
	return result, nil
}

// LoadConfigFile reads a Config from a YAML file. It is a convenience for
// callers; Init itself never touches the filesystem.
func LoadConfigFile(path string) (Config, error) {
	return configStore[Config]{path: path}.load()
}

// transitive resolves the Transitive knob's default (true).
func (c Config) transitive() bool {
	if c.Transitive == nil {
		return true
	}
	return *c.Transitive
}
