// Package markpact extracts markpact-tagged fenced code blocks from a
// Markdown document and validates the result. A block is "tagged" when its
// fence info string carries a markpact:<kind> token; every other fenced
// region is ignored.
package markpact

import (
	"fmt"
	"strings"
)

// Kind enumerates the block roles recognized by the parser. Unknown kinds
// still parse (they surface as a warning from ValidateContent, not a ParseError).
type Kind string

const (
	KindFile   Kind = "file"
	KindDeps   Kind = "deps"
	KindRun    Kind = "run"
	KindTarget Kind = "target"
	KindEnv    Kind = "env"
)

const tagPrefix = "markpact:"

// Block is a single markpact-tagged fenced code region.
type Block struct {
	Kind Kind
	Lang string
	Meta string
	Body string
	// Line is the 1-indexed line number of the opening fence, used for
	// ParseError messages.
	Line int
}

// GetPath parses Meta as whitespace-separated k=v pairs and returns the
// value of "path", or "" if no such pair is present.
func (b Block) GetPath() string {
	return b.metaValue("path")
}

func (b Block) metaValue(key string) string {
	for _, tok := range strings.Fields(b.Meta) {
		k, v, ok := strings.Cut(tok, "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}

// ParseError reports a malformed document: an opening fence with no
// matching close. It carries the 1-indexed line number of the offending
// fence, per spec §7.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("markpact: parse error at line %d: %s", e.Line, e.Message)
}

// ParseBlocks scans doc for fenced code regions tagged with markpact:<kind>
// and returns them in document order. An opening fence with no matching
// close is a *ParseError; untagged fences are silently skipped.
func ParseBlocks(doc string) ([]Block, error) {
	lines := strings.Split(doc, "\n")

	var blocks []Block
	i := 0
	for i < len(lines) {
		line := lines[i]
		if !strings.HasPrefix(strings.TrimRight(line, "\r"), "```") {
			i++
			continue
		}
		openLine := i + 1 // 1-indexed
		info := strings.TrimPrefix(strings.TrimRight(line, "\r"), "```")
		info = strings.TrimSpace(info)

		kind, lang, meta, tagged := parseInfoString(info)

		// Find the matching close: the next line whose trimmed content is
		// exactly "```".
		close := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimRight(lines[j], "\r") == "```" {
				close = j
				break
			}
		}
		if close == -1 {
			return nil, &ParseError{Line: openLine, Message: "unterminated fence (no matching closing ``` found)"}
		}

		if tagged {
			body := strings.Join(lines[i+1:close], "\n")
			blocks = append(blocks, Block{
				Kind: kind,
				Lang: lang,
				Meta: meta,
				Body: body,
				Line: openLine,
			})
		}

		i = close + 1
	}

	return blocks, nil
}

// parseInfoString accepts both fence-info dialects documented in spec §4.1:
//
//	new: <lang> markpact:<kind> [k=v ...]
//	old: markpact:<kind> <lang?> [k=v ...]
//
// The new dialect is recognized when the first token is not itself a
// markpact: tag (so the first token is treated as lang and the tag is
// sought among the remaining tokens). The old dialect is recognized when
// the first token is the tag itself, in which case Lang is always "" and
// every remaining token (including what would have been a language name)
// becomes part of Meta, matching the original implementation's behavior.
func parseInfoString(info string) (kind Kind, lang string, meta string, tagged bool) {
	tokens := strings.Fields(info)
	if len(tokens) == 0 {
		return "", "", "", false
	}

	if k, ok := cutTag(tokens[0]); ok {
		// Old dialect: first token is the tag.
		return Kind(k), "", strings.Join(tokens[1:], " "), true
	}

	// New dialect: first token is lang, tag must appear among the rest.
	lang = tokens[0]
	rest := tokens[1:]
	tagIdx := -1
	var tagKind string
	for idx, tok := range rest {
		if k, ok := cutTag(tok); ok {
			tagIdx = idx
			tagKind = k
			break
		}
	}
	if tagIdx == -1 {
		return "", "", "", false
	}
	metaTokens := append(append([]string{}, rest[:tagIdx]...), rest[tagIdx+1:]...)
	return Kind(tagKind), lang, strings.Join(metaTokens, " "), true
}

func cutTag(tok string) (string, bool) {
	if !strings.HasPrefix(tok, tagPrefix) {
		return "", false
	}
	return strings.TrimPrefix(tok, tagPrefix), true
}
