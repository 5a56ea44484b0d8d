package targets

import (
	"testing"

	"github.com/pactown/pactown/internal/markpact"
)

func TestResolveExplicitTargetBlock(t *testing.T) {
	doc := "```markpact:target framework=fastapi\n```\n" +
		"```python markpact:deps\nfastapi\n```\n"
	blocks, err := markpact.ParseBlocks(doc)
	if err != nil {
		t.Fatalf("ParseBlocks: %v", err)
	}
	tc, runtime := Resolve(blocks)
	if tc.Framework != "fastapi" {
		t.Errorf("Framework = %q, want fastapi", tc.Framework)
	}
	if tc.Platform != PlatformWeb {
		t.Errorf("Platform = %q, want web", tc.Platform)
	}
	if runtime != markpact.RuntimePython {
		t.Errorf("runtime = %q, want python", runtime)
	}
}

func TestResolveInferredFromDeps(t *testing.T) {
	doc := "```javascript markpact:deps\nexpress\npg\n```\n"
	blocks, err := markpact.ParseBlocks(doc)
	if err != nil {
		t.Fatalf("ParseBlocks: %v", err)
	}
	tc, runtime := Resolve(blocks)
	if tc.Framework != "express" {
		t.Errorf("Framework = %q, want express", tc.Framework)
	}
	if runtime != markpact.RuntimeNode {
		t.Errorf("runtime = %q, want node", runtime)
	}
}

func TestResolveFallsBackToGeneric(t *testing.T) {
	doc := "```bash markpact:run\necho hi\n```\n"
	blocks, err := markpact.ParseBlocks(doc)
	if err != nil {
		t.Fatalf("ParseBlocks: %v", err)
	}
	tc, _ := Resolve(blocks)
	if tc.Framework != "generic" {
		t.Errorf("Framework = %q, want generic", tc.Framework)
	}
	if tc.Platform != PlatformWeb {
		t.Errorf("Platform = %q, want web", tc.Platform)
	}
}

func TestResolveNodeInferredFromFileExtensionNoDeps(t *testing.T) {
	doc := "```js markpact:file path=server.js\nconsole.log(1)\n```\n" +
		"```bash markpact:run\nnode server.js\n```\n"
	blocks, err := markpact.ParseBlocks(doc)
	if err != nil {
		t.Fatalf("ParseBlocks: %v", err)
	}
	_, runtime := Resolve(blocks)
	if runtime != markpact.RuntimeNode {
		t.Errorf("runtime = %q, want node", runtime)
	}
}

func TestValidateBaseImage(t *testing.T) {
	fm, ok := Lookup("fastapi")
	if !ok {
		t.Fatal("fastapi framework not registered")
	}
	ref, err := ValidateBaseImage(fm)
	if err != nil {
		t.Fatalf("ValidateBaseImage: %v", err)
	}
	if ref == nil {
		t.Fatal("expected non-nil reference")
	}
}

func TestValidateBaseImageRejectsMalformed(t *testing.T) {
	bad := FrameworkMeta{Name: "broken", BaseImage: "UPPERCASE_NOT_ALLOWED::bad"}
	if _, err := ValidateBaseImage(bad); err == nil {
		t.Fatal("expected error for malformed base image")
	}
}
