package plugin

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/thesavant42/hawkmap/internal/config"
	"github.com/thesavant42/hawkmap/internal/globals"
	"github.com/thesavant42/hawkmap/internal/sourcemap"
)

type collectorLog struct {
	mu       sync.Mutex
	files    []string
	releases []string
	auth     []string
}

func newCollector(t *testing.T, body string) (*httptest.Server, *collectorLog) {
	t.Helper()
	log := &collectorLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		log.mu.Lock()
		log.files = append(log.files, hdr.Filename)
		log.releases = append(log.releases, r.FormValue("release"))
		log.auth = append(log.auth, r.Header.Get("Authorization"))
		log.mu.Unlock()
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, log
}

// writeProject lays out a tiny app with a local module and a vendored one.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/app.js":                    "import { greet } from './greet';\nimport dep from 'dep';\nconsole.log(greet(dep), window.HAWK_RELEASE);\n",
		"src/greet.ts":                  "export function greet(name: string): string {\n  return 'hi ' + name;\n}\n",
		"node_modules/dep/package.json": `{"name":"dep","main":"index.js"}`,
		"node_modules/dep/index.js":     "module.exports = 'dep';\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func build(t *testing.T, root string, plugins ...api.Plugin) api.BuildResult {
	t.Helper()
	result := api.Build(api.BuildOptions{
		AbsWorkingDir: root,
		EntryPoints:   []string{filepath.Join(root, "src", "app.js")},
		Outdir:        filepath.Join(root, "dist"),
		Bundle:        true,
		Write:         true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Plugins:       plugins,
	})
	if len(result.Errors) > 0 {
		t.Fatalf("build failed: %s", result.Errors[0].Text)
	}
	return result
}

func TestBuildUploadsAndRemovesSourcemap(t *testing.T) {
	root := writeProject(t)
	server, log := newCollector(t, `{"error": false}`)

	cfg, err := config.New(config.Options{Token: "tok", Release: "r-42", CollectorEndpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	p := New(cfg, WithOutput(&out, &errOut))

	build(t, root, p.Plugin())

	if len(log.files) != 1 || log.files[0] != "app.js.map" {
		t.Fatalf("collector received %v, want [app.js.map]", log.files)
	}
	if log.releases[0] != "r-42" || log.auth[0] != "Bearer tok" {
		t.Fatalf("unexpected release/auth: %v %v", log.releases, log.auth)
	}
	if _, err := os.Stat(filepath.Join(root, "dist", "app.js.map")); !os.IsNotExist(err) {
		t.Fatal("expected app.js.map to be removed")
	}
	if n := strings.Count(out.String(), "Sent"); n != 1 {
		t.Fatalf("expected one success line, got %d:\n%s", n, out.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("unexpected failure output:\n%s", errOut.String())
	}

	bundle, err := os.ReadFile(filepath.Join(root, "dist", "app.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bundle), `HAWK_RELEASE = "r-42"`) {
		t.Fatalf("bundle does not set the release:\n%s", bundle)
	}
	if url := sourcemap.ExtractSourceMappingURL(string(bundle)); url != "" {
		t.Fatalf("expected hidden sourcemap, found reference %q", url)
	}

	if p.Phase() != PhaseFinalizing {
		t.Fatalf("expected finalizing phase, got %v", p.Phase())
	}
	if r := p.LastReport(); r == nil || r.Sent() != 1 || r.Removed() != 1 {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestBuildKeepsLinkedSourcemapWhenRemovalDisabled(t *testing.T) {
	root := writeProject(t)
	server, _ := newCollector(t, `{"error": false}`)

	cfg, err := config.New(config.Options{
		Token:             "tok",
		Release:           "r-1",
		CollectorEndpoint: server.URL,
		RemoveSourceMaps:  config.Bool(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	p := New(cfg, WithOutput(io.Discard, io.Discard))

	build(t, root, p.Plugin())

	if _, err := os.Stat(filepath.Join(root, "dist", "app.js.map")); err != nil {
		t.Fatalf("expected app.js.map to be kept: %v", err)
	}
	bundle, err := os.ReadFile(filepath.Join(root, "dist", "app.js"))
	if err != nil {
		t.Fatal(err)
	}
	if url := sourcemap.ExtractSourceMappingURL(string(bundle)); url != "app.js.map" {
		t.Fatalf("expected linked sourcemap, got %q", url)
	}
}

func TestBuildFailedUploadIsLoggedAndKept(t *testing.T) {
	root := writeProject(t)
	server, _ := newCollector(t, `{"error": true, "message": "bad file"}`)

	cfg, err := config.New(config.Options{Token: "tok", Release: "r-1", CollectorEndpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	var errOut bytes.Buffer
	p := New(cfg, WithOutput(io.Discard, &errOut))

	build(t, root, p.Plugin())

	if !strings.Contains(errOut.String(), "bad file") {
		t.Fatalf("expected failure line:\n%s", errOut.String())
	}
	if _, err := os.Stat(filepath.Join(root, "dist", "app.js.map")); err != nil {
		t.Fatalf("failed upload should keep the map: %v", err)
	}
}

func TestTransformSkipsVendoredModules(t *testing.T) {
	root := writeProject(t)
	server, _ := newCollector(t, `{"error": false}`)

	cfg, err := config.New(config.Options{
		Token:             "tok",
		Release:           "r-1",
		CollectorEndpoint: server.URL,
		RemoveSourceMaps:  config.Bool(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	p := New(cfg, WithOutput(io.Discard, io.Discard))

	build(t, root, p.Plugin())

	data, err := os.ReadFile(filepath.Join(root, "dist", "app.js.map"))
	if err != nil {
		t.Fatal(err)
	}
	sm, err := sourcemap.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	for i, src := range sm.Sources {
		content := sm.SourcesContent[i]
		hasImport := strings.Contains(content, globals.VirtualModuleID)
		switch {
		case strings.Contains(src, "node_modules"):
			if hasImport {
				t.Errorf("vendored %s was transformed", src)
			}
		case strings.HasSuffix(src, "app.js"), strings.HasSuffix(src, "greet.ts"):
			if n := strings.Count(content, globals.VirtualModuleID); n != 1 {
				t.Errorf("%s has %d globals imports, want 1", src, n)
			}
		}
	}
}

func TestFromOptionsMissingTokenIsInert(t *testing.T) {
	root := writeProject(t)
	var errOut bytes.Buffer

	plugin := FromOptions(config.Options{}, &errOut)
	result := build(t, root, plugin)

	if !strings.Contains(errOut.String(), "integration token is required") {
		t.Fatalf("expected configuration error on stderr:\n%s", errOut.String())
	}
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".map") {
			t.Fatalf("inert plugin should not force sourcemaps, found %s", f.Path)
		}
		if strings.Contains(string(f.Contents), "HAWK_RELEASE =") {
			t.Fatal("inert plugin should not inject the release")
		}
	}
}

func TestFromOptionsMalformedTokenIsInert(t *testing.T) {
	var errOut bytes.Buffer

	FromOptions(config.Options{Token: base64.StdEncoding.EncodeToString([]byte("{}"))}, &errOut)

	if !strings.Contains(errOut.String(), "malformed integration token") {
		t.Fatalf("expected malformed token error:\n%s", errOut.String())
	}
}

func TestResolveOutDir(t *testing.T) {
	root := t.TempDir()

	opts := &api.BuildOptions{AbsWorkingDir: root}
	if got := resolveOutDir(opts); got != filepath.Join(root, config.DefaultOutDir) {
		t.Errorf("default: got %q", got)
	}
	if opts.Outdir != config.DefaultOutDir {
		t.Errorf("default outdir should be written back, got %q", opts.Outdir)
	}

	opts = &api.BuildOptions{AbsWorkingDir: root, Outfile: "out/bundle.js"}
	if got := resolveOutDir(opts); got != filepath.Join(root, "out") {
		t.Errorf("outfile: got %q", got)
	}

	abs := filepath.Join(root, "abs")
	opts = &api.BuildOptions{AbsWorkingDir: "/ignored", Outdir: abs}
	if got := resolveOutDir(opts); got != abs {
		t.Errorf("absolute: got %q", got)
	}
}

func TestBuildWithoutWriteSkipsUpload(t *testing.T) {
	root := writeProject(t)
	server, log := newCollector(t, `{"error": false}`)

	cfg, err := config.New(config.Options{Token: "tok", Release: "r-1", CollectorEndpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	p := New(cfg, WithOutput(&out, io.Discard))

	result := api.Build(api.BuildOptions{
		AbsWorkingDir: root,
		EntryPoints:   []string{filepath.Join(root, "src", "app.js")},
		Outdir:        filepath.Join(root, "dist"),
		Bundle:        true,
		Plugins:       []api.Plugin{p.Plugin()},
	})
	if len(result.Errors) > 0 {
		t.Fatalf("build failed: %s", result.Errors[0].Text)
	}

	if len(log.files) != 0 {
		t.Fatalf("expected no uploads, got %v", log.files)
	}
	if !strings.Contains(out.String(), "not written to disk") {
		t.Fatalf("expected skip warning:\n%s", out.String())
	}
	if p.LastReport() != nil {
		t.Fatal("expected no report")
	}
}

func TestReleaseIsSetBeforeTopLevelCode(t *testing.T) {
	node, err := exec.LookPath("node")
	if err != nil {
		t.Skip("node not available")
	}

	for _, entry := range []string{"main.js", "main.cjs", "main.cts"} {
		t.Run(entry, func(t *testing.T) {
			root := t.TempDir()
			src := filepath.Join(root, "src", entry)
			if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(src, []byte("console.log('RELEASE=' + global.HAWK_RELEASE);\n"), 0644); err != nil {
				t.Fatal(err)
			}
			server, _ := newCollector(t, `{"error": false}`)
			cfg, err := config.New(config.Options{Token: "tok", Release: "r-9", CollectorEndpoint: server.URL})
			if err != nil {
				t.Fatal(err)
			}
			p := New(cfg, WithOutput(io.Discard, io.Discard))

			outFile := filepath.Join(root, "dist", "out.js")
			result := api.Build(api.BuildOptions{
				AbsWorkingDir: root,
				EntryPoints:   []string{src},
				Outfile:       outFile,
				Bundle:        true,
				Write:         true,
				Format:        api.FormatCommonJS,
				Platform:      api.PlatformNode,
				Plugins:       []api.Plugin{p.Plugin()},
			})
			if len(result.Errors) > 0 {
				t.Fatalf("build failed: %s", result.Errors[0].Text)
			}

			got, err := exec.Command(node, outFile).CombinedOutput()
			if err != nil {
				t.Fatalf("node failed: %v\n%s", err, got)
			}
			if strings.TrimSpace(string(got)) != "RELEASE=r-9" {
				t.Fatalf("bundle printed %q, want RELEASE=r-9", got)
			}
		})
	}
}
