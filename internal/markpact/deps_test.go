package markpact

import "testing"

func TestParseDepsSkipsBlankAndComments(t *testing.T) {
	body := "fastapi==0.110.0\n\n# a comment\nuvicorn[standard]\n"
	deps := ParseDeps(body)
	if len(deps) != 2 {
		t.Fatalf("expected 2 deps, got %d: %+v", len(deps), deps)
	}
	if deps[0].Name != "fastapi" {
		t.Errorf("Name = %q, want fastapi", deps[0].Name)
	}
	if deps[1].Name != "uvicorn" {
		t.Errorf("Name = %q, want uvicorn", deps[1].Name)
	}
}

func TestCrossLanguageWarningsNodeInPython(t *testing.T) {
	deps := ParseDeps("express\nfastapi\n")
	warnings := CrossLanguageWarnings(RuntimePython, deps)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	want := "Found Node.js package 'express' in Python dependency block"
	if warnings[0] != want {
		t.Errorf("warning = %q, want %q", warnings[0], want)
	}
}

func TestCrossLanguageWarningsPythonInNode(t *testing.T) {
	deps := ParseDeps("express\nfastapi\n")
	warnings := CrossLanguageWarnings(RuntimeNode, deps)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	want := "Found Python package 'fastapi' in Node.js dependency block"
	if warnings[0] != want {
		t.Errorf("warning = %q, want %q", warnings[0], want)
	}
}

func TestDepsLangNewDialect(t *testing.T) {
	b := Block{Kind: KindDeps, Lang: "python"}
	if got := DepsLang(b); got != RuntimePython {
		t.Errorf("DepsLang = %q, want python", got)
	}
}

func TestDepsLangOldDialect(t *testing.T) {
	b := Block{Kind: KindDeps, Lang: "", Meta: "node"}
	if got := DepsLang(b); got != RuntimeNode {
		t.Errorf("DepsLang = %q, want node", got)
	}
}
