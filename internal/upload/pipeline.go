// Package upload ships discovered sourcemaps to the collector one at a time
// and cleans them up afterward.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/thesavant42/hawkmap/internal/sourcemap"
	"github.com/thesavant42/hawkmap/internal/ui"
)

// Removal decides which local sourcemaps are deleted after an upload attempt.
type Removal int

const (
	// RemoveNever keeps every file.
	RemoveNever Removal = iota
	// RemoveOnSuccess deletes files the collector accepted.
	RemoveOnSuccess
	// RemoveAlways deletes files after any upload attempt, accepted or not.
	RemoveAlways
)

// RemovalFor maps the two configuration switches onto a policy.
func RemovalFor(removeSourceMaps, removeFailedUploads bool) Removal {
	switch {
	case !removeSourceMaps:
		return RemoveNever
	case removeFailedUploads:
		return RemoveAlways
	default:
		return RemoveOnSuccess
	}
}

func (r Removal) String() string {
	switch r {
	case RemoveNever:
		return "never"
	case RemoveOnSuccess:
		return "on-success"
	case RemoveAlways:
		return "always"
	default:
		return fmt.Sprintf("Removal(%d)", int(r))
	}
}

// Uploader sends one sourcemap to the collector.
type Uploader interface {
	Upload(ctx context.Context, release, fileName string, content []byte) error
}

// Outcome records what happened to a single sourcemap.
type Outcome struct {
	File    string
	Sent    bool
	Err     error
	Removed bool
}

// Report collects the outcomes of one pipeline run, in processing order.
type Report struct {
	Outcomes []Outcome
}

// Sent counts accepted uploads.
func (r Report) Sent() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Sent {
			n++
		}
	}
	return n
}

// Failed counts files that were not accepted.
func (r Report) Failed() int {
	return len(r.Outcomes) - r.Sent()
}

// Removed counts deleted local files.
func (r Report) Removed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Removed {
			n++
		}
	}
	return n
}

// Pipeline uploads sourcemaps sequentially. Out receives progress and
// success lines, Err receives failures.
type Pipeline struct {
	Client  Uploader
	Release string
	Removal Removal
	Verbose bool
	Out     io.Writer
	Err     io.Writer
}

// Run processes files in order. A failing file never stops the loop.
func (p *Pipeline) Run(ctx context.Context, outDir string, files []string) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(files))}
	if len(files) == 0 {
		fmt.Fprintln(p.out(), ui.Info("No sourcemaps found"))
		return report
	}

	fmt.Fprintln(p.out(), ui.Info(fmt.Sprintf("Uploading %d sourcemap(s) for release %s", len(files), ui.Path(p.Release))))

	for _, name := range files {
		report.Outcomes = append(report.Outcomes, p.process(ctx, outDir, name))
	}

	return report
}

func (p *Pipeline) process(ctx context.Context, outDir, name string) Outcome {
	outcome := Outcome{File: name}
	fullPath := filepath.Join(outDir, filepath.FromSlash(name))

	content, err := os.ReadFile(fullPath)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to read %s: %w", fullPath, err)
		fmt.Fprintln(p.err(), ui.Error(fmt.Sprintf("Failed to send %s: %v", ui.Path(fullPath), outcome.Err)))
		return outcome
	}

	if p.Verbose {
		p.describe(name, content)
	}

	if err := p.Client.Upload(ctx, p.Release, name, content); err != nil {
		outcome.Err = err
		fmt.Fprintln(p.err(), ui.Error(fmt.Sprintf("Failed to send %s: %v", ui.Path(fullPath), err)))
	} else {
		outcome.Sent = true
		fmt.Fprintln(p.out(), ui.Success(fmt.Sprintf("Sent %s", ui.Path(fullPath))))
	}

	if !p.shouldRemove(outcome.Sent) {
		if !outcome.Sent && p.Removal != RemoveNever {
			fmt.Fprintln(p.out(), ui.Warning(fmt.Sprintf("Kept %s after failed upload", ui.Path(fullPath))))
		}
		return outcome
	}

	if err := os.Remove(fullPath); err != nil {
		fmt.Fprintln(p.err(), ui.Error(fmt.Sprintf("Failed to remove %s: %v", ui.Path(fullPath), err)))
		return outcome
	}
	outcome.Removed = true
	if p.Verbose {
		fmt.Fprintln(p.out(), ui.Info(fmt.Sprintf("Removed %s", ui.Path(fullPath))))
	}

	return outcome
}

func (p *Pipeline) shouldRemove(sent bool) bool {
	switch p.Removal {
	case RemoveAlways:
		return true
	case RemoveOnSuccess:
		return sent
	default:
		return false
	}
}

// describe logs a one-line summary of the map. Parse failures are ignored;
// the collector is the judge of what it accepts.
func (p *Pipeline) describe(name string, content []byte) {
	sm, err := sourcemap.Parse(content)
	if err != nil {
		return
	}
	meta := sm.ExtractMetadata()
	fmt.Fprintln(p.out(), ui.Info(fmt.Sprintf("%s: %d source(s), %d bytes", name, meta.SourceCount, len(content))))
}

func (p *Pipeline) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}

func (p *Pipeline) err() io.Writer {
	if p.Err == nil {
		return p.out()
	}
	return p.Err
}
