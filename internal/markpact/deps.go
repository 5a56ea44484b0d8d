package markpact

import "strings"

// RuntimeKind identifies which package manager a deps/run block belongs to.
type RuntimeKind string

const (
	RuntimePython RuntimeKind = "python"
	RuntimeNode   RuntimeKind = "node"
)

// nodeOnlyPackages and pythonOnlyPackages are small, well-known marker sets
// used for the cross-language coherence warning in spec §4.2. They are not
// exhaustive package indexes — just enough well-known names to catch the
// copy-paste mistake of pasting a Node dependency list into a Python block
// or vice versa.
var nodeOnlyPackages = map[string]bool{
	"express": true, "react": true, "vue": true, "axios": true,
	"lodash": true, "webpack": true, "electron": true, "next": true,
	"svelte": true, "typescript": true, "eslint": true, "vite": true,
}

var pythonOnlyPackages = map[string]bool{
	"fastapi": true, "django": true, "flask": true, "requests": true,
	"numpy": true, "pandas": true, "uvicorn": true, "pydantic": true,
	"sqlalchemy": true, "pytest": true, "scipy": true,
}

// DepSpec is one parsed dependency specifier line from a deps block.
type DepSpec struct {
	// Name is the package name with any version constraint stripped.
	Name string
	// Raw is the original specifier line, trimmed, used verbatim when
	// writing requirements.txt / package.json.
	Raw string
}

// ParseDeps splits a deps block body into specifiers: blank lines and
// "#..." comments are ignored, per spec §6.
func ParseDeps(body string) []DepSpec {
	var out []DepSpec
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, DepSpec{Name: packageName(line), Raw: line})
	}
	return out
}

// packageName strips version constraints/extras from a specifier so the
// bare name can be looked up in the marker tables above.
func packageName(spec string) string {
	name := spec
	for _, cut := range []string{"==", ">=", "<=", "~=", "^", "@", ">", "<", "["} {
		if idx := strings.Index(name, cut); idx >= 0 {
			name = name[:idx]
		}
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// CrossLanguageWarnings returns one warning string per dependency specifier
// whose package name is a well-known marker for the *other* runtime than
// the one the deps block declares (spec §4.2). Messages are unprefixed;
// ValidateContent adds the "Warning:" prefix required by spec §4.8.
func CrossLanguageWarnings(lang RuntimeKind, deps []DepSpec) []string {
	var warnings []string
	for _, d := range deps {
		switch lang {
		case RuntimePython:
			if nodeOnlyPackages[d.Name] {
				warnings = append(warnings, "Found Node.js package '"+d.Name+"' in Python dependency block")
			}
		case RuntimeNode:
			if pythonOnlyPackages[d.Name] {
				warnings = append(warnings, "Found Python package '"+d.Name+"' in Node.js dependency block")
			}
		}
	}
	return warnings
}

// DepsLang classifies a deps block's language from its Block.Lang / Meta,
// falling back to "" (unknown) when neither names a recognized runtime.
func DepsLang(b Block) RuntimeKind {
	candidate := strings.ToLower(b.Lang)
	if candidate == "" {
		// Old dialect stows the language as the first meta token.
		fields := strings.Fields(b.Meta)
		if len(fields) > 0 {
			candidate = strings.ToLower(fields[0])
		}
	}
	switch candidate {
	case "python", "py":
		return RuntimePython
	case "javascript", "js", "node", "typescript", "ts":
		return RuntimeNode
	default:
		return ""
	}
}
