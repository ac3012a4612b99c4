// Package plugin wires release tagging and sourcemap upload into esbuild.
//
// The plugin has two phases. Setup (configuring) fixes the output directory
// and forces sourcemap emission. OnEnd (finalizing) discovers the emitted
// maps and runs the upload pipeline over them.
package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/thesavant42/hawkmap/internal/collector"
	"github.com/thesavant42/hawkmap/internal/config"
	"github.com/thesavant42/hawkmap/internal/globals"
	"github.com/thesavant42/hawkmap/internal/sourcemap"
	"github.com/thesavant42/hawkmap/internal/ui"
	"github.com/thesavant42/hawkmap/internal/upload"
)

// Name is the esbuild plugin name.
const Name = "hawk"

// Phase is the lifecycle position of a Plugin.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfiguring
	PhaseFinalizing
)

// Option customizes a Plugin.
type Option func(*Plugin)

// WithOutput sets the writers for progress and failure lines.
func WithOutput(out, errOut io.Writer) Option {
	return func(p *Plugin) {
		p.out = out
		p.errOut = errOut
	}
}

// WithUploader replaces the HTTP collector client.
func WithUploader(u upload.Uploader) Option {
	return func(p *Plugin) {
		p.uploader = u
	}
}

// WithVerbose enables per-file detail lines.
func WithVerbose(v bool) Option {
	return func(p *Plugin) {
		p.verbose = v
	}
}

// Plugin holds the state of one build. It is not safe for overlapping builds.
type Plugin struct {
	cfg      config.Config
	uploader upload.Uploader
	out      io.Writer
	errOut   io.Writer
	verbose  bool

	phase  Phase
	outDir string
	write  bool
	report *upload.Report
}

// New creates a Plugin for a validated configuration.
func New(cfg config.Config, opts ...Option) *Plugin {
	p := &Plugin{
		cfg:    cfg,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.uploader == nil {
		p.uploader = collector.New(cfg.CollectorEndpoint, cfg.Token, cfg.Timeout)
	}
	return p
}

// FromOptions validates raw options and returns the esbuild plugin. A
// configuration error is logged to errOut and yields a plugin that does
// nothing, so the build itself proceeds.
func FromOptions(o config.Options, errOut io.Writer, opts ...Option) api.Plugin {
	cfg, err := config.New(o)
	if err != nil {
		fmt.Fprintln(errOut, ui.Error(fmt.Sprintf("Hawk plugin disabled: %v", err)))
		return Inert()
	}
	return New(cfg, append([]Option{WithOutput(os.Stdout, errOut)}, opts...)...).Plugin()
}

// Inert returns a plugin with an empty setup.
func Inert() api.Plugin {
	return api.Plugin{Name: Name, Setup: func(api.PluginBuild) {}}
}

// Plugin returns the esbuild plugin bound to p.
func (p *Plugin) Plugin() api.Plugin {
	return api.Plugin{Name: Name, Setup: p.setup}
}

// Phase reports the current lifecycle phase.
func (p *Plugin) Phase() Phase {
	return p.phase
}

// OutDir returns the resolved output directory, empty before setup.
func (p *Plugin) OutDir() string {
	return p.outDir
}

// LastReport returns the report of the most recent upload run, or nil.
func (p *Plugin) LastReport() *upload.Report {
	return p.report
}

var virtualFilter = "^" + regexp.QuoteMeta(globals.VirtualModuleID) + "$"

func (p *Plugin) setup(build api.PluginBuild) {
	p.phase = PhaseConfiguring
	p.report = nil
	p.outDir = resolveOutDir(build.InitialOptions)
	p.write = build.InitialOptions.Write
	build.InitialOptions.Sourcemap = globals.SourcemapMode(p.cfg.RemoveSourceMaps)
	loaders := build.InitialOptions.Loader

	build.OnResolve(api.OnResolveOptions{Filter: virtualFilter},
		func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			return api.OnResolveResult{
				Path:      globals.ResolvedVirtualModuleID,
				Namespace: globals.Namespace,
			}, nil
		})

	build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: globals.Namespace},
		func(args api.OnLoadArgs) (api.OnLoadResult, error) {
			if args.Path != globals.ResolvedVirtualModuleID {
				return api.OnLoadResult{}, nil
			}
			contents := globals.Script(p.cfg.Release)
			return api.OnLoadResult{
				Contents: &contents,
				Loader:   api.LoaderJS,
			}, nil
		})

	build.OnLoad(api.OnLoadOptions{Filter: globals.ScriptFilter, Namespace: "file"},
		func(args api.OnLoadArgs) (api.OnLoadResult, error) {
			return p.transform(args, loaders)
		})

	build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
		p.finalize(result)
		return api.OnEndResult{}, nil
	})
}

// transform appends the globals import to application scripts. Returning an
// empty result hands the file back to esbuild's default loader.
func (p *Plugin) transform(args api.OnLoadArgs, loaders map[string]api.Loader) (api.OnLoadResult, error) {
	if !globals.ShouldInject(args.Path + args.Suffix) {
		return api.OnLoadResult{}, nil
	}

	data, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, fmt.Errorf("failed to read %s: %w", args.Path, err)
	}

	contents := globals.AppendImport(args.Path, string(data))
	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     globals.Loader(args.Path, loaders),
		ResolveDir: filepath.Dir(args.Path),
	}, nil
}

func (p *Plugin) finalize(result *api.BuildResult) {
	if len(result.Errors) > 0 {
		fmt.Fprintln(p.out, ui.Warning("Build failed, skipping sourcemap upload"))
		return
	}
	if !p.write {
		fmt.Fprintln(p.out, ui.Warning("Build output is not written to disk, skipping sourcemap upload"))
		return
	}
	p.phase = PhaseFinalizing

	maps := sourcemap.Discover(sourcemap.ListingFromOutputFiles(p.outDir, result.OutputFiles))

	pipeline := &upload.Pipeline{
		Client:  p.uploader,
		Release: p.cfg.Release,
		Removal: upload.RemovalFor(p.cfg.RemoveSourceMaps, p.cfg.RemoveFailedUploads),
		Verbose: p.verbose,
		Out:     p.out,
		Err:     p.errOut,
	}
	report := pipeline.Run(context.Background(), p.outDir, maps)
	p.report = &report
}

// resolveOutDir fixes the directory uploads are read from. A build with
// neither Outdir nor Outfile gets the default written back so esbuild emits
// there as well.
func resolveOutDir(opts *api.BuildOptions) string {
	dir := opts.Outdir
	switch {
	case dir != "":
	case opts.Outfile != "":
		dir = filepath.Dir(opts.Outfile)
	default:
		dir = config.DefaultOutDir
		opts.Outdir = dir
	}

	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	base := opts.AbsWorkingDir
	if base == "" {
		if wd, err := os.Getwd(); err == nil {
			base = wd
		}
	}
	return filepath.Join(base, dir)
}
