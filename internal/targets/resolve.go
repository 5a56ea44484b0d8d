package targets

import (
	"strings"

	"github.com/pactown/pactown/internal/markpact"
)

// frameworkMarkers maps a dependency package name to the framework it
// implies, used by step 2 of the resolution order in spec §4.2.
var frameworkMarkers = map[string]string{
	"fastapi":  "fastapi",
	"django":   "django",
	"flask":    "flask",
	"express":  "express",
	"next":     "next",
	"electron": "electron",
}

// fileExtRuntime maps a file block's extension to the runtime it implies,
// used when no deps block is present to infer runtime kind (spec's node-
// inferred manifest case: a lone .js file block with no deps block).
var fileExtRuntime = map[string]markpact.RuntimeKind{
	".py": markpact.RuntimePython,
	".js": markpact.RuntimeNode,
	".ts": markpact.RuntimeNode,
	".mjs": markpact.RuntimeNode,
}

// Resolve implements the three-step resolution order from spec §4.2:
//  1. an explicit target block naming a framework wins outright;
//  2. otherwise, deps block package names are scanned for registered
//     framework markers;
//  3. otherwise, fall back to (web, generic) with a noop build command.
//
// It also returns the inferred RuntimeKind, needed by the Manifest
// Generator and Sandbox Manager even when no deps block names a language
// explicitly (spec's node-inferred case).
func Resolve(blocks []markpact.Block) (TargetConfig, markpact.RuntimeKind) {
	var targetBlock *markpact.Block
	var depsBlocks []markpact.Block
	var fileBlocks []markpact.Block
	for i := range blocks {
		switch blocks[i].Kind {
		case markpact.KindTarget:
			if targetBlock == nil {
				targetBlock = &blocks[i]
			}
		case markpact.KindDeps:
			depsBlocks = append(depsBlocks, blocks[i])
		case markpact.KindFile:
			fileBlocks = append(fileBlocks, blocks[i])
		}
	}

	runtime := inferRuntime(depsBlocks, fileBlocks)

	if targetBlock != nil {
		if framework := metaValue(targetBlock.Meta, "framework"); framework != "" {
			if fm, ok := Lookup(framework); ok {
				return fromFrameworkMeta(fm, targetBlock.Meta), runtime
			}
			// Named but unregistered: still honor platform/build_cmd hints
			// given directly in the target block.
			return TargetConfig{
				Platform:  Platform(orDefault(metaValue(targetBlock.Meta, "platform"), string(PlatformWeb))),
				Framework: framework,
				BuildCmd:  metaValue(targetBlock.Meta, "build_cmd"),
				Meta:      parseMeta(targetBlock.Meta),
			}, runtime
		}
	}

	for _, db := range depsBlocks {
		for _, d := range markpact.ParseDeps(db.Body) {
			if framework, ok := frameworkMarkers[d.Name]; ok {
				if fm, ok := Lookup(framework); ok {
					return fromFrameworkMeta(fm, ""), runtime
				}
			}
		}
	}

	generic, _ := Lookup("generic")
	return fromFrameworkMeta(generic, ""), runtime
}

func fromFrameworkMeta(fm FrameworkMeta, rawMeta string) TargetConfig {
	tc := TargetConfig{
		Platform:         fm.Platform,
		Framework:        fm.Name,
		BuildCmd:         fm.DefaultBuildCmd,
		ArtifactPatterns: fm.ArtifactPatterns,
		Meta:             parseMeta(rawMeta),
	}
	if build := metaValue(rawMeta, "build_cmd"); build != "" {
		tc.BuildCmd = build
	}
	return tc
}

// inferRuntime prefers an explicit deps-block language tag; absent that, it
// falls back to the extension of the first recognized file block, matching
// the original's node-inferred manifest behavior when a service ships only
// a run block and a .js file block with no deps block at all.
func inferRuntime(depsBlocks, fileBlocks []markpact.Block) markpact.RuntimeKind {
	for _, db := range depsBlocks {
		if lang := markpact.DepsLang(db); lang != "" {
			return lang
		}
	}
	for _, fb := range fileBlocks {
		path := fb.GetPath()
		for ext, kind := range fileExtRuntime {
			if strings.HasSuffix(path, ext) {
				return kind
			}
		}
	}
	return markpact.RuntimePython
}

func metaValue(meta, key string) string {
	for _, tok := range strings.Fields(meta) {
		k, v, ok := strings.Cut(tok, "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}

func parseMeta(meta string) map[string]string {
	if meta == "" {
		return nil
	}
	m := make(map[string]string)
	for _, tok := range strings.Fields(meta) {
		k, v, ok := strings.Cut(tok, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
