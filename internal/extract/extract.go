// Package extract implements best-effort field retrieval from
// semi-structured configuration text: JSON-with-comments, unquoted keys,
// trailing commas, and hand-edited files that no strict parser accepts.
//
// This is deliberately not a parser. The gateway owns the authoritative
// schema; this package only needs to recover individual values well
// enough for advisory reporting, and must never fail on malformed input.
package extract

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultWindow is the scoped-search line window used when a caller does
// not supply one. The window is a tunable heuristic, not a guarantee:
// deeply nested or minified text can over- or under-match.
const DefaultWindow = 40

var (
	patternMu sync.Mutex
	patterns  = map[string]*regexp.Regexp{}
)

// keyPattern returns a compiled matcher for key bound to a value with
// ':' or '='. The key may be bare, single- or double-quoted. Compiled
// patterns are cached; extraction over identical inputs is deterministic.
func keyPattern(key string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patterns[key]; ok {
		return re
	}
	quoted := regexp.QuoteMeta(key)
	re := regexp.MustCompile(`(?m)(?:^|[{,\s])(?:"` + quoted + `"|'` + quoted + `'|` + quoted + `)\s*[:=]\s*("([^"\\]|\\.)*"|'([^'\\]|\\.)*'|[^,}\]\s]+)`)
	patterns[key] = re
	return re
}

// Extract returns the first value bound to key anywhere in text.
// The second return is false when the key is unresolved: either absent,
// or present with a value the heuristic could not recover. Extraction
// never fails; unresolved is a first-class result.
func Extract(text, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	cleaned := StripComments(text)
	m := keyPattern(key).FindStringSubmatch(cleaned)
	if m == nil {
		return "", false
	}
	return cleanValue(m[1]), true
}

// ExtractScoped narrows the search to the window lines following the
// first occurrence of parentKey. Used to disambiguate keys that recur
// under different parents (a "mode" under "gateway" means something
// different than a "mode" under "sandbox"). window <= 0 selects
// DefaultWindow.
func ExtractScoped(text, parentKey, key string, window int) (string, bool) {
	if window <= 0 {
		window = DefaultWindow
	}
	cleaned := StripComments(text)
	lines := strings.Split(cleaned, "\n")

	parent := keyAnchor(parentKey)
	for i, line := range lines {
		if !parent.MatchString(line) {
			continue
		}
		end := i + 1 + window
		if end > len(lines) {
			end = len(lines)
		}
		scope := strings.Join(lines[i+1:end], "\n")
		// The parent's own line is included too: compact configs put the
		// child on the same line ({"gateway": {"mode": "lan"}}).
		if m := keyPattern(key).FindStringSubmatch(line[parentAnchorEnd(parent, line):] + "\n" + scope); m != nil {
			return cleanValue(m[1]), true
		}
		return "", false
	}
	return "", false
}

var anchorMu sync.Mutex
var anchors = map[string]*regexp.Regexp{}

// keyAnchor matches a line that introduces key as an object/section.
func keyAnchor(key string) *regexp.Regexp {
	anchorMu.Lock()
	defer anchorMu.Unlock()
	if re, ok := anchors[key]; ok {
		return re
	}
	quoted := regexp.QuoteMeta(key)
	re := regexp.MustCompile(`(?:^|[{,\s])(?:"` + quoted + `"|'` + quoted + `'|` + quoted + `)\s*[:=]`)
	anchors[key] = re
	return re
}

func parentAnchorEnd(re *regexp.Regexp, line string) int {
	loc := re.FindStringIndex(line)
	if loc == nil {
		return 0
	}
	return loc[1]
}

// cleanValue strips surrounding quotes and a trailing comma from a
// captured raw value.
func cleanValue(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.TrimSuffix(v, ",")
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			inner := v[1 : len(v)-1]
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			return inner
		}
	}
	return v
}

// StripComments removes //, #, and /* */ comments outside quoted strings.
// Quote tracking is per-line for line comments (good enough for config
// text; multi-line strings are not a concern in this format) and global
// for block comments.
func StripComments(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		if inBlock {
			if idx := strings.Index(line, "*/"); idx >= 0 {
				line = line[idx+2:]
				inBlock = false
			} else {
				out.WriteByte('\n')
				continue
			}
		}
		out.WriteString(stripLine(line, &inBlock))
		out.WriteByte('\n')
	}
	return out.String()
}

func stripLine(line string, inBlock *bool) string {
	var out strings.Builder
	var quote byte
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case quote != 0:
			out.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				out.WriteByte(line[i+1])
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			out.WriteByte(c)
		case c == '#':
			return out.String()
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return out.String()
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			rest := line[i+2:]
			if idx := strings.Index(rest, "*/"); idx >= 0 {
				// Block comment closed on the same line; keep scanning after it.
				line = rest[idx+2:]
				i = 0
				continue
			}
			*inBlock = true
			return out.String()
		default:
			out.WriteByte(c)
		}
		i++
	}
	return out.String()
}
