// Package globals generates the release-tagging code that bundles import
// through the virtual:hawk/globals module.
package globals

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	// VirtualModuleID is the specifier application code imports.
	VirtualModuleID = "virtual:hawk/globals"

	// ResolvedVirtualModuleID is the internal id the specifier resolves to.
	// The NUL prefix keeps other tooling from treating it as a file path.
	ResolvedVirtualModuleID = "\x00" + VirtualModuleID

	// Namespace is the esbuild namespace the resolved id lives in.
	Namespace = "hawk-virtual"

	// GlobalName is the property set on the runtime global object.
	GlobalName = "HAWK_RELEASE"
)

// ScriptFilter matches the file extensions that receive the import.
const ScriptFilter = `\.(js|mjs|cjs|jsx|ts|mts|cts|tsx)$`

const scriptTemplate = `function hawkGlobalTarget() {
  if (typeof window !== "undefined") return window;
  if (typeof global !== "undefined") return global;
  if (typeof self !== "undefined") return self;
  return {};
}
hawkGlobalTarget().%s = %s;
`

// Script returns the module source that assigns release to HAWK_RELEASE.
func Script(release string) string {
	quoted, _ := json.Marshal(release)
	return fmt.Sprintf(scriptTemplate, GlobalName, quoted)
}

// isScriptExt reports whether ext is a JS/TS source extension.
func isScriptExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx":
		return true
	default:
		return false
	}
}

// CleanID strips ?query and #hash suffixes from a module id.
func CleanID(id string) string {
	if i := strings.IndexAny(id, "?#"); i != -1 {
		return id[:i]
	}
	return id
}

// ShouldInject reports whether the module id should get the globals import.
func ShouldInject(id string) bool {
	id = CleanID(id)
	if id == "" || id == VirtualModuleID || id == ResolvedVirtualModuleID {
		return false
	}
	if inNodeModules(id) {
		return false
	}
	return isScriptExt(path.Ext(toSlash(id)))
}

// toSlash normalizes Windows separators regardless of the host OS.
func toSlash(id string) string {
	return strings.ReplaceAll(id, `\`, "/")
}

func inNodeModules(id string) bool {
	for _, seg := range strings.Split(toSlash(id), "/") {
		if seg == "node_modules" {
			return true
		}
	}
	return false
}

// importRe matches a statement that already loads the virtual module. Only
// statements at the start of a line count, so comments and strings that
// mention the id do not.
var importRe = regexp.MustCompile(`(?m)^[ \t]*(?:import[ \t]*|require\([ \t]*)["']` +
	regexp.QuoteMeta(VirtualModuleID) + `["']`)

// AppendImport adds the globals import to code. ES modules get an import on
// a new last line, which esbuild hoists above the module body. CommonJS
// files get a require call in front of the first line, since require runs
// in place. Neither form moves existing lines. Code that already loads the
// virtual module is returned as is.
func AppendImport(id, code string) string {
	if importRe.MatchString(code) {
		return code
	}

	switch strings.ToLower(path.Ext(toSlash(CleanID(id)))) {
	case ".cjs", ".cts":
		return prependRequire(code)
	}

	if code != "" && !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + `import "` + VirtualModuleID + `";` + "\n"
}

// prependRequire puts the require call at the start of the first line, or
// of the second when the first is a shebang.
func prependRequire(code string) string {
	stmt := `require("` + VirtualModuleID + `");`
	if !strings.HasPrefix(code, "#!") {
		return stmt + code
	}
	i := strings.IndexByte(code, '\n')
	if i == -1 {
		return code + "\n" + stmt + "\n"
	}
	return code[:i+1] + stmt + code[i+1:]
}

// Loader picks the esbuild loader for a transformed file. Extension
// overrides from the build options win.
func Loader(id string, overrides map[string]api.Loader) api.Loader {
	ext := strings.ToLower(path.Ext(toSlash(CleanID(id))))
	if l, ok := overrides[ext]; ok {
		return l
	}
	switch ext {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJS
	}
}

// SourcemapMode returns the sourcemap setting the build is forced into.
// External maps carry no sourceMappingURL comment, which keeps deleted maps
// from being referenced by the shipped bundle.
func SourcemapMode(removeSourceMaps bool) api.SourceMap {
	if removeSourceMaps {
		return api.SourceMapExternal
	}
	return api.SourceMapLinked
}
