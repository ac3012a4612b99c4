// Package sourcemap finds emitted sourcemaps and reads the few fields the
// uploader reports on.
package sourcemap

// SourceMap is the subset of the v3 sourcemap format hawkmap reads.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names,omitempty"`
	Mappings       string   `json:"mappings,omitempty"`
}

// Metadata summarizes a sourcemap for verbose upload logs.
type Metadata struct {
	File              string
	SourceCount       int
	HasSourcesContent bool
}

// ExtractMetadata extracts summary metadata from a SourceMap.
func (sm *SourceMap) ExtractMetadata() Metadata {
	return Metadata{
		File:              sm.File,
		SourceCount:       len(sm.Sources),
		HasSourcesContent: len(sm.SourcesContent) > 0,
	}
}
