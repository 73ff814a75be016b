package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stackwave/qlog/internal/errs"
)

// Load reads the YAML config file at path, overlaying its fields onto
// the package defaults. A missing file is not an error - it yields the
// defaults unchanged, matching a fresh install with no config.yaml yet.
func Load(path string) (Options, error) {
	o := NewDefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, errs.Wrap(errs.IoError, err, "read config file").WithPath(path)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, errs.Wrap(errs.IoError, err, "parse config file").WithPath(path)
	}
	return o, nil
}
