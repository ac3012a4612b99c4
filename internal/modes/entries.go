package modes

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// ResolveEntryPoints expands HTML entries into the local scripts they load.
// Other entries are made absolute against workDir. Duplicates are dropped.
func ResolveEntryPoints(workDir string, entries []string) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			resolved = append(resolved, p)
		}
	}

	for _, entry := range entries {
		abs := entry
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(workDir, entry)
		}

		if !isHTMLFile(abs) {
			add(abs)
			continue
		}

		scripts, err := htmlEntryScripts(workDir, abs)
		if err != nil {
			return nil, err
		}
		if len(scripts) == 0 {
			return nil, fmt.Errorf("no local scripts referenced by %s", entry)
		}
		for _, s := range scripts {
			add(s)
		}
	}

	return resolved, nil
}

func isHTMLFile(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}

// htmlEntryScripts returns the local script src paths of an HTML file.
// Root-relative srcs resolve against workDir, others against the HTML file.
func htmlEntryScripts(workDir, htmlPath string) ([]string, error) {
	f, err := os.Open(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", htmlPath, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", htmlPath, err)
	}

	var scripts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, attr := range n.Attr {
				if attr.Key == "src" && attr.Val != "" {
					if p, ok := localScriptPath(workDir, filepath.Dir(htmlPath), attr.Val); ok {
						scripts = append(scripts, p)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return scripts, nil
}

// localScriptPath maps a script src onto the filesystem. Remote and
// protocol-relative URLs are skipped.
func localScriptPath(workDir, htmlDir, src string) (string, bool) {
	u, err := url.Parse(src)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}

	p := filepath.FromSlash(u.Path)
	if strings.HasPrefix(u.Path, "/") {
		return filepath.Join(workDir, p), true
	}
	return filepath.Join(htmlDir, p), true
}
