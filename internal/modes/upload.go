package modes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thesavant42/hawkmap/internal/collector"
	"github.com/thesavant42/hawkmap/internal/config"
	"github.com/thesavant42/hawkmap/internal/sourcemap"
	"github.com/thesavant42/hawkmap/internal/ui"
	"github.com/thesavant42/hawkmap/internal/upload"
)

// UploadResult contains the results of uploading an existing output directory.
type UploadResult struct {
	Dir          string
	Release      string
	FilesScanned int
	Report       upload.Report
}

// RunUpload sends the sourcemaps already present in dir, without bundling.
// An empty dir means the configured output directory.
func RunUpload(cfg *Config, dir string) (*UploadResult, error) {
	pluginCfg, err := config.New(cfg.Plugin)
	if err != nil {
		return nil, err
	}

	workDir, err := cfg.workDir()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = cfg.Build.Outdir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workDir, dir)
	}

	listing, err := sourcemap.ListingFromDir(dir)
	if err != nil {
		return nil, err
	}

	if cfg.Verbose {
		fmt.Fprintln(cfg.Out, ui.Info(fmt.Sprintf("Scanned %d file(s) in %s", len(listing), ui.Path(dir))))
	}

	client := cfg.Uploader
	if client == nil {
		client = collector.New(pluginCfg.CollectorEndpoint, pluginCfg.Token, pluginCfg.Timeout)
	}

	removal := upload.RemovalFor(pluginCfg.RemoveSourceMaps, pluginCfg.RemoveFailedUploads)
	if removal != upload.RemoveNever {
		warnLinkedChunks(cfg, dir, listing)
	}

	pipeline := &upload.Pipeline{
		Client:  client,
		Release: pluginCfg.Release,
		Removal: removal,
		Verbose: cfg.Verbose,
		Out:     cfg.Out,
		Err:     cfg.Err,
	}

	return &UploadResult{
		Dir:          dir,
		Release:      pluginCfg.Release,
		FilesScanned: len(listing),
		Report:       pipeline.Run(context.Background(), dir, sourcemap.Discover(listing)),
	}, nil
}

// warnLinkedChunks flags scripts whose sourceMappingURL points at a local map.
// Those references dangle once the maps are removed.
func warnLinkedChunks(cfg *Config, dir string, listing sourcemap.Listing) {
	for _, a := range listing {
		if a.Kind != sourcemap.KindChunk {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(a.FileName)))
		if err != nil {
			continue
		}
		url := sourcemap.ExtractSourceMappingURL(string(data))
		if url == "" || strings.Contains(url, "://") {
			continue
		}
		fmt.Fprintln(cfg.Out, ui.Warning(fmt.Sprintf("%s references %s, which is removed after upload", ui.Path(a.FileName), url)))
	}
}
