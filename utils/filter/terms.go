package filter

import (
	"regexp"
	"strings"
)

// CompiledTerm holds either a plain substring or a compiled regex for
// matching against release names.
type CompiledTerm struct {
	plain string         // lowercased substring (used when regex is nil)
	regex *regexp.Regexp // compiled regex (nil for plain terms)
}

// ParseWordList splits comma-separated free text into trimmed, non-empty
// tokens, preserving order. Empty input yields an empty list, which means
// "no filter".
func ParseWordList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if w := strings.TrimSpace(p); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// JoinWordList is the inverse of ParseWordList for storage and re-rendering.
func JoinWordList(words []string) string {
	return strings.Join(words, ", ")
}

// CompileTerms pre-compiles word-list tokens. Tokens wrapped in /slashes/
// are treated as case-insensitive regex; an invalid regex falls back to a
// plain substring match on the whole token. Empty tokens are skipped.
func CompileTerms(terms []string) []CompiledTerm {
	compiled := make([]CompiledTerm, 0, len(terms))
	for _, raw := range terms {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		if len(trimmed) >= 3 && trimmed[0] == '/' && trimmed[len(trimmed)-1] == '/' {
			pattern := trimmed[1 : len(trimmed)-1]
			re, err := regexp.Compile("(?i)" + pattern)
			if err == nil {
				compiled = append(compiled, CompiledTerm{regex: re})
				continue
			}
		}

		compiled = append(compiled, CompiledTerm{plain: strings.ToLower(trimmed)})
	}
	return compiled
}

// MatchesAnyTerm checks if the release name matches any of the compiled
// terms. Returns false if terms is empty.
func MatchesAnyTerm(name string, terms []CompiledTerm) bool {
	if len(terms) == 0 {
		return false
	}
	nameLower := strings.ToLower(name)
	for _, t := range terms {
		if t.regex != nil {
			if t.regex.MatchString(name) {
				return true
			}
		} else {
			if strings.Contains(nameLower, t.plain) {
				return true
			}
		}
	}
	return false
}

// ReleaseFilter applies a show's ignore and require word lists to release
// names: any ignore hit rejects, and a non-empty require list with no hits
// rejects. An empty require list imposes nothing.
type ReleaseFilter struct {
	ignore  []CompiledTerm
	require []CompiledTerm
}

// NewReleaseFilter compiles the two word lists once for repeated matching.
func NewReleaseFilter(ignoreWords, requireWords []string) *ReleaseFilter {
	return &ReleaseFilter{
		ignore:  CompileTerms(ignoreWords),
		require: CompileTerms(requireWords),
	}
}

// Rejects reports whether the release name fails the filter, with a short
// reason for logging when it does.
func (f *ReleaseFilter) Rejects(name string) (bool, string) {
	if MatchesAnyTerm(name, f.ignore) {
		return true, "matches an ignored word"
	}
	if len(f.require) > 0 && !MatchesAnyTerm(name, f.require) {
		return true, "matches no required word"
	}
	return false, ""
}
