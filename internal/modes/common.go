// Package modes implements the two operation modes: build and upload.
package modes

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/thesavant42/hawkmap/internal/config"
	"github.com/thesavant42/hawkmap/internal/plugin"
	"github.com/thesavant42/hawkmap/internal/upload"
)

// Config holds configuration for all modes.
type Config struct {
	Plugin  config.Options   // Plugin options, validated per run
	Build   config.BuildFile // esbuild options from hawkmap.yaml and flags
	WorkDir string           // Project root (default: current directory)
	Verbose bool
	Out     io.Writer // Progress and success lines
	Err     io.Writer // Failure lines

	// Uploader overrides the HTTP collector client.
	Uploader upload.Uploader
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Build: config.BuildFile{
			Outdir:   config.DefaultOutDir,
			Format:   "esm",
			Platform: "browser",
		},
		WorkDir: ".",
		Out:     os.Stdout,
		Err:     os.Stderr,
	}
}

// workDir returns the absolute project root.
func (c *Config) workDir() (string, error) {
	dir := c.WorkDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	return abs, nil
}

func (c *Config) pluginOptions() []plugin.Option {
	opts := []plugin.Option{
		plugin.WithOutput(c.Out, c.Err),
		plugin.WithVerbose(c.Verbose),
	}
	if c.Uploader != nil {
		opts = append(opts, plugin.WithUploader(c.Uploader))
	}
	return opts
}
