// Package config validates plugin options and loads the hawkmap.yaml
// project file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/thesavant42/hawkmap/internal/token"
)

var (
	// ErrMissingToken is returned when no integration token is configured.
	ErrMissingToken = errors.New("integration token is required")

	// ErrInvalidEndpoint is returned for a collector endpoint that is not an
	// absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid collector endpoint")
)

// now is swapped in tests.
var now = time.Now

// Options is the raw plugin configuration as supplied by the user.
type Options struct {
	Token             string
	Release           string
	CollectorEndpoint string

	// RemoveSourceMaps defaults to true when nil.
	RemoveSourceMaps *bool

	// RemoveFailedUploads also deletes maps the collector did not accept.
	RemoveFailedUploads bool

	// Timeout bounds each upload request. Zero means no timeout.
	Timeout time.Duration
}

// Config is the validated plugin configuration. It is passed by value and
// never mutated after New.
type Config struct {
	Token               string
	Release             string
	CollectorEndpoint   string
	RemoveSourceMaps    bool
	RemoveFailedUploads bool
	Timeout             time.Duration
}

// Bool returns a pointer to b, for Options.RemoveSourceMaps.
func Bool(b bool) *bool {
	return &b
}

// New validates opts and fills defaults.
func New(opts Options) (Config, error) {
	if opts.Token == "" {
		return Config{}, ErrMissingToken
	}

	cfg := Config{
		Token:               opts.Token,
		Release:             opts.Release,
		CollectorEndpoint:   opts.CollectorEndpoint,
		RemoveSourceMaps:    true,
		RemoveFailedUploads: opts.RemoveFailedUploads,
		Timeout:             opts.Timeout,
	}
	if opts.RemoveSourceMaps != nil {
		cfg.RemoveSourceMaps = *opts.RemoveSourceMaps
	}
	if cfg.Release == "" {
		cfg.Release = strconv.FormatInt(now().UnixMilli(), 10)
	}
	if cfg.Timeout < 0 {
		return Config{}, fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}

	if cfg.CollectorEndpoint == "" {
		endpoint, err := token.CollectorEndpoint(cfg.Token)
		if err != nil {
			return Config{}, fmt.Errorf("failed to derive collector endpoint: %w", err)
		}
		cfg.CollectorEndpoint = endpoint
	}

	if err := validateEndpoint(cfg.CollectorEndpoint); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidEndpoint, raw)
	}
	return nil
}
