package modes

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/thesavant42/hawkmap/internal/config"
	"github.com/thesavant42/hawkmap/internal/plugin"
	"github.com/thesavant42/hawkmap/internal/sourcemap"
	"github.com/thesavant42/hawkmap/internal/ui"
	"github.com/thesavant42/hawkmap/internal/upload"
)

// ErrNoEntryPoints is returned when a build has nothing to bundle.
var ErrNoEntryPoints = errors.New("no entry points configured")

// BuildResult contains the results of a build.
type BuildResult struct {
	OutDir         string
	Release        string
	Outputs        []string // Emitted files, relative to OutDir
	PluginDisabled bool     // Configuration was invalid; built without upload
	Report         upload.Report
	Warnings       []string
}

var formats = map[string]api.Format{
	"esm":  api.FormatESModule,
	"cjs":  api.FormatCommonJS,
	"iife": api.FormatIIFE,
}

var platforms = map[string]api.Platform{
	"browser": api.PlatformBrowser,
	"node":    api.PlatformNode,
	"neutral": api.PlatformNeutral,
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
	"esnext": api.ESNext,
}

// BuildOptions translates the build section into esbuild options.
func BuildOptions(workDir string, b config.BuildFile, entries []string) (api.BuildOptions, error) {
	opts := api.BuildOptions{
		AbsWorkingDir:     workDir,
		EntryPoints:       entries,
		Outdir:            b.Outdir,
		Bundle:            true,
		Write:             true,
		External:          b.External,
		MinifySyntax:      b.Minify,
		MinifyWhitespace:  b.Minify,
		MinifyIdentifiers: b.Minify,
	}
	if b.Bundle != nil {
		opts.Bundle = *b.Bundle
	}

	if b.Format != "" {
		f, ok := formats[strings.ToLower(b.Format)]
		if !ok {
			return api.BuildOptions{}, fmt.Errorf("unknown format %q", b.Format)
		}
		opts.Format = f
	}
	if b.Platform != "" {
		p, ok := platforms[strings.ToLower(b.Platform)]
		if !ok {
			return api.BuildOptions{}, fmt.Errorf("unknown platform %q", b.Platform)
		}
		opts.Platform = p
	}
	if b.Target != "" {
		t, ok := targets[strings.ToLower(b.Target)]
		if !ok {
			return api.BuildOptions{}, fmt.Errorf("unknown target %q", b.Target)
		}
		opts.Target = t
	}

	return opts, nil
}

// RunBuild bundles the configured entry points with the Hawk plugin attached.
// Upload failures are reported in the result; only bundling errors fail.
func RunBuild(cfg *Config) (*BuildResult, error) {
	workDir, err := cfg.workDir()
	if err != nil {
		return nil, err
	}
	if len(cfg.Build.EntryPoints) == 0 {
		return nil, ErrNoEntryPoints
	}

	entries, err := ResolveEntryPoints(workDir, cfg.Build.EntryPoints)
	if err != nil {
		return nil, err
	}
	opts, err := BuildOptions(workDir, cfg.Build, entries)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{}

	var hawk *plugin.Plugin
	pluginCfg, err := config.New(cfg.Plugin)
	if err != nil {
		fmt.Fprintln(cfg.Err, ui.Error(fmt.Sprintf("Hawk plugin disabled: %v", err)))
		result.PluginDisabled = true
		opts.Plugins = []api.Plugin{plugin.Inert()}
	} else {
		hawk = plugin.New(pluginCfg, cfg.pluginOptions()...)
		opts.Plugins = []api.Plugin{hawk.Plugin()}
		result.Release = pluginCfg.Release
	}

	if cfg.Verbose {
		for _, e := range entries {
			fmt.Fprintln(cfg.Out, ui.Target("Entry", e))
		}
	}

	built := api.Build(opts)
	if len(built.Errors) > 0 {
		msgs := api.FormatMessages(built.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return nil, fmt.Errorf("esbuild failed with %d error(s):\n%s", len(built.Errors), strings.Join(msgs, ""))
	}
	for _, w := range built.Warnings {
		result.Warnings = append(result.Warnings, w.Text)
	}

	if hawk != nil {
		result.OutDir = hawk.OutDir()
		if r := hawk.LastReport(); r != nil {
			result.Report = *r
		}
	} else {
		result.OutDir = opts.Outdir
		if !filepath.IsAbs(result.OutDir) {
			result.OutDir = filepath.Join(workDir, result.OutDir)
		}
	}
	for _, a := range sourcemap.ListingFromOutputFiles(result.OutDir, built.OutputFiles) {
		result.Outputs = append(result.Outputs, a.FileName)
	}

	return result, nil
}
