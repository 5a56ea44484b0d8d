package markpact

import "fmt"

// ValidationResult is the result of ValidateContent, matching the
// `{ valid: bool, errors: [string] }` shape from spec §4.8. Errors prefixed
// with "Warning:" are advisory and never flip Valid to false.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateContent runs the pre-flight checks from spec §4.8 against a whole
// markpact document: (a) at most one run block (a document with none is
// accepted; no default run command is resolved here); (b) every file block
// has a non-empty path; (c) dependency-language coherence; (d) no two file
// blocks share a path. Blocks of an unknown kind produce a warning.
func ValidateContent(content string) ValidationResult {
	blocks, err := ParseBlocks(content)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}

	result := ValidationResult{Valid: true}
	addError := func(msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, msg)
	}
	addWarning := func(msg string) {
		result.Errors = append(result.Errors, "Warning: "+msg)
	}

	// (a) at most one run block.
	runCount := 0
	for _, b := range blocks {
		if b.Kind == KindRun {
			runCount++
		}
	}
	if runCount > 1 {
		addError(fmt.Sprintf("expected at most one run block, found %d", runCount))
	}

	// (b) every file block has a non-empty path; (d) no two file blocks
	// share a path.
	seenPaths := make(map[string]bool)
	for _, b := range blocks {
		if b.Kind != KindFile {
			continue
		}
		path := b.GetPath()
		if path == "" {
			addError(fmt.Sprintf("file block at line %d has no path", b.Line))
			continue
		}
		if seenPaths[path] {
			addError(fmt.Sprintf("duplicate file path %q", path))
			continue
		}
		seenPaths[path] = true
	}

	// (c) dependency-language coherence.
	for _, b := range blocks {
		if b.Kind != KindDeps {
			continue
		}
		lang := DepsLang(b)
		if lang == "" {
			continue
		}
		deps := ParseDeps(b.Body)
		for _, w := range CrossLanguageWarnings(lang, deps) {
			addWarning(w)
		}
	}

	// Unknown block kinds parse but are reported as warnings.
	for _, b := range blocks {
		switch b.Kind {
		case KindFile, KindDeps, KindRun, KindTarget, KindEnv:
		default:
			addWarning(fmt.Sprintf("unknown block kind %q at line %d", b.Kind, b.Line))
		}
	}

	return result
}
