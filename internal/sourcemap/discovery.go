package sourcemap

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Kind classifies an emitted build artifact.
type Kind string

const (
	KindAsset Kind = "asset"
	KindChunk Kind = "chunk"
)

// Artifact is one emitted file, named relative to the output directory.
type Artifact struct {
	FileName string
	Kind     Kind
}

// Listing is the ordered set of artifacts a build emitted.
type Listing []Artifact

// Ext is the sourcemap file extension.
const Ext = ".map"

// classify treats emitted scripts as chunks and everything else as assets.
func classify(name string) Kind {
	switch strings.ToLower(path.Ext(name)) {
	case ".js", ".mjs", ".cjs":
		return KindChunk
	default:
		return KindAsset
	}
}

// ListingFromOutputFiles converts esbuild output files into a listing.
// Files outside outDir keep their base name.
func ListingFromOutputFiles(outDir string, files []api.OutputFile) Listing {
	listing := make(Listing, 0, len(files))
	for _, f := range files {
		name := relativeName(outDir, f.Path)
		listing = append(listing, Artifact{FileName: name, Kind: classify(name)})
	}
	return listing
}

// ListingFromDir walks dir in lexical order and lists every regular file.
func ListingFromDir(dir string) (Listing, error) {
	var listing Listing
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		name := relativeName(dir, p)
		listing = append(listing, Artifact{FileName: name, Kind: classify(name)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return listing, nil
}

// Discover returns the asset file names ending in .map, in listing order.
func Discover(listing Listing) []string {
	maps := make([]string, 0)
	for _, a := range listing {
		if a.Kind == KindAsset && strings.HasSuffix(a.FileName, Ext) {
			maps = append(maps, a.FileName)
		}
	}
	return maps
}

func relativeName(dir, p string) string {
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(p)
	}
	return filepath.ToSlash(rel)
}
