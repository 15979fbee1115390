// Package config loads default CLI flag values from an optional
// .justsh.yaml file, so projects can pin the infile/outfile/verbosity
// they expect without repeating flags on every invocation.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// File is the shape of a .justsh.yaml configuration file.
type File struct {
	Infile  string `yaml:"infile"`
	Outfile string `yaml:"outfile"`
	Verbose bool   `yaml:"verbose"`
	NoColor bool   `yaml:"no-color"`
}

// Load reads and parses a config file. A missing file is not an error:
// Load returns a zero-value File so callers can apply flag defaults
// unconditionally.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
