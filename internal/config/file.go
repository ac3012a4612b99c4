package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the project configuration file looked up by default.
	FileName = "hawkmap.yaml"

	// DefaultOutDir is used when neither the file nor the build sets one.
	DefaultOutDir = "dist"

	// TokenEnv and ReleaseEnv fill unset values from the environment.
	TokenEnv   = "HAWK_TOKEN"
	ReleaseEnv = "HAWK_RELEASE"
)

// BuildFile holds the esbuild options hawkmap exposes.
type BuildFile struct {
	EntryPoints []string `yaml:"entry_points"`
	Outdir      string   `yaml:"outdir"`
	Format      string   `yaml:"format"`
	Platform    string   `yaml:"platform"`
	Target      string   `yaml:"target"`
	Minify      bool     `yaml:"minify"`
	Bundle      *bool    `yaml:"bundle,omitempty"`
	External    []string `yaml:"external,omitempty"`
}

// File models hawkmap.yaml.
type File struct {
	Token               string    `yaml:"token"`
	Release             string    `yaml:"release"`
	CollectorEndpoint   string    `yaml:"collector_endpoint"`
	RemoveSourceMaps    *bool     `yaml:"remove_source_maps,omitempty"`
	RemoveFailedUploads bool      `yaml:"remove_failed_uploads"`
	Timeout             string    `yaml:"timeout,omitempty"`
	Build               BuildFile `yaml:"build"`
}

func defaultFile() File {
	return File{
		Build: BuildFile{
			Outdir:   DefaultOutDir,
			Format:   "esm",
			Platform: "browser",
		},
	}
}

// LoadFile reads path. A missing file yields defaults; environment
// variables fill the token and release when the file leaves them empty.
func LoadFile(path string) (File, error) {
	f := defaultFile()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if f.Token == "" {
		f.Token = os.Getenv(TokenEnv)
	}
	if f.Release == "" {
		f.Release = os.Getenv(ReleaseEnv)
	}
	if f.Build.Outdir == "" {
		f.Build.Outdir = DefaultOutDir
	}

	return f, nil
}

// Options converts the file into plugin options.
func (f File) Options() (Options, error) {
	opts := Options{
		Token:               f.Token,
		Release:             f.Release,
		CollectorEndpoint:   f.CollectorEndpoint,
		RemoveSourceMaps:    f.RemoveSourceMaps,
		RemoveFailedUploads: f.RemoveFailedUploads,
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return Options{}, fmt.Errorf("invalid timeout %q: %w", f.Timeout, err)
		}
		opts.Timeout = d
	}
	return opts, nil
}
