package depgraph

import (
	"encoding/json"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reference is a dependency mention found in one file's content.
type Reference struct {
	Spec     string
	Line     int
	Type     RelationType
	Strength Strength
	// Relative is set for specifiers that must resolve to a file
	// (./x, ../x). Bare package names are never relative.
	Relative bool
	kind     specKind
}

type specKind int

const (
	specPath specKind = iota
	specPython
	specGoImport
	specJavaImport
	specClass
	specConfig
)

var (
	// The ES patterns run over the whole content so that specifier lists
	// spanning several lines still match.
	reESImport   = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:[\w*\s{},$]+\s+from\s+)?['"]([^'"]+)['"]`)
	reESExport   = regexp.MustCompile(`(?m)^[ \t]*export\s+[\w*\s{},$]+\s+from\s+['"]([^'"]+)['"]`)
	reRequire    = regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`)
	reDynImport  = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)
	rePyFrom     = regexp.MustCompile(`^\s*from\s+([.\w]+)\s+import\s+`)
	rePyImport   = regexp.MustCompile(`^\s*import\s+([\w.]+(?:\s*,\s*[\w.]+)*)\s*$`)
	reCSSImport  = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]?([^'")\s;]+)['"]?\s*\)?`)
	reGoSingle   = regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	reGoBlockTok = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
	reJavaImport = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+?)(?:\.\*)?\s*;`)
	reExtends    = regexp.MustCompile(`\bclass\s+\w+(?:<[^>]*>)?\s+extends\s+([A-Za-z_$][\w$]*)`)
	rePyClass    = regexp.MustCompile(`^\s*class\s+\w+\s*\(\s*([A-Za-z_]\w*)`)
	reClassDecl  = regexp.MustCompile(`\b(?:class|interface)\s+([A-Z][\w$]*)`)
)

// Extract lists the references in content. The file extension selects the
// language-specific patterns; ES patterns apply to every text file.
func Extract(filePath, content string) []Reference {
	ext := strings.ToLower(path.Ext(filePath))
	switch ext {
	case ".json", ".yaml", ".yml":
		return extractConfig(ext, content)
	}

	var refs []Reference
	add := func(spec string, line int, t RelationType, s Strength, kind specKind) {
		refs = append(refs, Reference{
			Spec:     spec,
			Line:     line,
			Type:     t,
			Strength: s,
			Relative: kind == specPath && isRelative(spec),
			kind:     kind,
		})
	}

	switch ext {
	case ".py", ".go", ".css", ".scss", ".less":
	default:
		for _, m := range reESExport.FindAllStringSubmatchIndex(content, -1) {
			add(content[m[2]:m[3]], lineAt(content, m[0]), RelExport, StrengthStrong, specPath)
		}
		for _, m := range reESImport.FindAllStringSubmatchIndex(content, -1) {
			add(content[m[2]:m[3]], lineAt(content, m[0]), RelImport, StrengthStrong, specPath)
		}
	}

	inGoBlock := false
	for i, line := range strings.Split(content, "\n") {
		n := i + 1

		switch ext {
		case ".py":
			if m := rePyFrom.FindStringSubmatch(line); m != nil {
				add(m[1], n, RelImport, StrengthStrong, specPython)
				continue
			}
			if m := rePyImport.FindStringSubmatch(line); m != nil {
				for _, mod := range strings.Split(m[1], ",") {
					add(strings.TrimSpace(mod), n, RelImport, StrengthStrong, specPython)
				}
				continue
			}
			if m := rePyClass.FindStringSubmatch(line); m != nil && m[1] != "object" {
				add(m[1], n, RelInheritance, StrengthMedium, specClass)
			}
			continue
		case ".go":
			trimmed := strings.TrimSpace(line)
			if inGoBlock {
				if trimmed == ")" {
					inGoBlock = false
				} else if m := reGoBlockTok.FindStringSubmatch(line); m != nil {
					add(m[1], n, RelReference, StrengthWeak, specGoImport)
				}
				continue
			}
			if strings.HasPrefix(trimmed, "import (") {
				inGoBlock = true
				continue
			}
			if m := reGoSingle.FindStringSubmatch(line); m != nil {
				add(m[1], n, RelReference, StrengthWeak, specGoImport)
			}
			continue
		case ".java", ".kt", ".scala":
			if m := reJavaImport.FindStringSubmatch(line); m != nil {
				add(m[1], n, RelReference, StrengthWeak, specJavaImport)
				continue
			}
		case ".css", ".scss", ".less":
			if m := reCSSImport.FindStringSubmatch(line); m != nil {
				add(m[1], n, RelImport, StrengthStrong, specPath)
			}
			continue
		}

		for _, m := range reRequire.FindAllStringSubmatch(line, -1) {
			add(m[1], n, RelImport, StrengthStrong, specPath)
		}
		for _, m := range reDynImport.FindAllStringSubmatch(line, -1) {
			add(m[1], n, RelImport, StrengthMedium, specPath)
		}
		for _, m := range reExtends.FindAllStringSubmatch(line, -1) {
			add(m[1], n, RelInheritance, StrengthMedium, specClass)
		}
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Line < refs[j].Line })
	return refs
}

// lineAt returns the 1-based line number of byte offset off.
func lineAt(content string, off int) int {
	return strings.Count(content[:off], "\n") + 1
}

// Declarations lists the class and interface names declared in content.
func Declarations(content string) []string {
	var names []string
	for _, m := range reClassDecl.FindAllStringSubmatch(content, -1) {
		names = append(names, m[1])
	}
	return names
}

// extractConfig collects every string value of a JSON or YAML document.
// Unparseable documents yield nothing.
func extractConfig(ext, content string) []Reference {
	var doc any
	if ext == ".json" {
		if err := json.Unmarshal([]byte(content), &doc); err != nil {
			return nil
		}
	} else if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}

	var refs []Reference
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			if looksLikePath(t) {
				refs = append(refs, Reference{Spec: t, Type: RelConfig, Strength: StrengthWeak, kind: specConfig})
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		case map[string]any:
			for _, e := range t {
				walk(e)
			}
		}
	}
	walk(doc)
	return refs
}

func looksLikePath(s string) bool {
	if s == "" || len(s) > 512 || strings.ContainsAny(s, " \n\t") {
		return false
	}
	return strings.Contains(s, "/") || path.Ext(s) != ""
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".."
}

// ResolveExtensions are tried, in order, when a specifier has no exact match.
var ResolveExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go", ".css", ".json"}

// ResolvePath resolves a relative specifier from importer against exists.
// It tries the exact path, each extension, then index files.
func ResolvePath(importer, spec string, exists func(string) bool) (string, bool) {
	base := path.Clean(path.Join(path.Dir(importer), spec))
	if strings.HasPrefix(base, "../") || base == ".." {
		return "", false
	}
	for _, c := range candidates(base) {
		if exists(c) {
			return c, true
		}
	}
	return "", false
}

func candidates(base string) []string {
	out := []string{base}
	for _, ext := range ResolveExtensions {
		out = append(out, base+ext)
	}
	for _, ext := range ResolveExtensions {
		out = append(out, path.Join(base, "index"+ext))
	}
	return out
}

// resolvePython maps a dotted module name to a set file. Leading dots are
// relative to the importer's package; absolute names are tried from the
// importer's directory and from the root.
func resolvePython(importer, mod string, exists func(string) bool) (string, bool) {
	dots := len(mod) - len(strings.TrimLeft(mod, "."))
	rest := strings.ReplaceAll(strings.TrimLeft(mod, "."), ".", "/")

	var bases []string
	if dots > 0 {
		dir := path.Dir(importer)
		for i := 1; i < dots; i++ {
			dir = path.Dir(dir)
		}
		bases = append(bases, path.Join(dir, rest))
	} else {
		bases = append(bases, path.Join(path.Dir(importer), rest), rest)
	}

	for _, b := range bases {
		b = path.Clean(b)
		for _, c := range []string{b + ".py", path.Join(b, "__init__.py")} {
			if exists(c) {
				return c, true
			}
		}
	}
	return "", false
}

// resolveGoImport picks the set file whose directory is a suffix of the
// import path. The lowest path wins when several files share the package.
func resolveGoImport(importPath string, nodes []string) (string, bool) {
	for _, n := range nodes {
		if path.Ext(n) != ".go" {
			continue
		}
		dir := path.Dir(n)
		if dir == "." {
			continue
		}
		if importPath == dir || strings.HasSuffix(importPath, "/"+dir) {
			return n, true
		}
	}
	return "", false
}

func resolveJavaImport(name string, nodes []string) (string, bool) {
	suffix := strings.ReplaceAll(name, ".", "/")
	for _, n := range nodes {
		stem := strings.TrimSuffix(n, path.Ext(n))
		if stem == suffix || strings.HasSuffix(stem, "/"+suffix) {
			return n, true
		}
	}
	return "", false
}

// resolveConfig matches a string value against set paths, relative to the
// referencing file first and then to the root.
func resolveConfig(importer, value string, exists func(string) bool) (string, bool) {
	value = strings.TrimPrefix(value, "file:")
	for _, c := range []string{path.Join(path.Dir(importer), value), path.Clean(value)} {
		if exists(c) {
			return c, true
		}
	}
	return "", false
}
