// Package parser extracts wiki-style links from note content.
package parser

import (
	"regexp"
	"sort"
	"strings"
)

// wikilinkRe matches [[TARGET]] where TARGET contains no closing bracket.
var wikilinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// LinkSet is a set of referenced note titles.
type LinkSet map[string]struct{}

// Has reports whether title is in the set.
func (s LinkSet) Has(title string) bool {
	_, ok := s[title]
	return ok
}

// Sorted returns the titles in ascending order.
func (s LinkSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ExtractLinks returns the deduplicated, whitespace-trimmed targets of every
// [[...]] occurrence in content. Matches are non-overlapping and scanned left
// to right; an unterminated [[ produces nothing.
func ExtractLinks(content string) LinkSet {
	out := make(LinkSet)
	if content == "" {
		return out
	}
	for _, m := range wikilinkRe.FindAllStringSubmatch(content, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		out[target] = struct{}{}
	}
	return out
}
