// File: internal/agent/sections.go
package agent

import (
	"regexp"
	"strings"
	"sync"
)

// The model replies in loosely structured prose with literal section markers
// ("Thought:", "Action:", ...). Extraction is regex based on purpose: the
// markers are the contract, everything between a marker and the next
// recognized marker (or end of text) is that section's content, matched
// case-insensitively across newlines. All marker knowledge lives here so the
// output grammar can change without touching call sites.

// sectionExtractor pulls named sections out of free-form model output.
type sectionExtractor struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

func newSectionExtractor() *sectionExtractor {
	return &sectionExtractor{cache: make(map[string]*regexp.Regexp)}
}

// extract returns the trimmed content between marker and the first of the
// stop markers (or end of text). The second return reports whether the
// marker was present at all.
func (s *sectionExtractor) extract(text, marker string, stops ...string) (string, bool) {
	re := s.pattern(marker, stops)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// pattern compiles (and caches) the section regex: case-insensitive, with .
// matching newlines, non-greedy up to the first stop marker.
func (s *sectionExtractor) pattern(marker string, stops []string) *regexp.Regexp {
	key := marker + "\x00" + strings.Join(stops, "\x00")

	s.mu.Lock()
	defer s.mu.Unlock()
	if re, ok := s.cache[key]; ok {
		return re
	}

	var b strings.Builder
	b.WriteString(`(?is)`)
	b.WriteString(regexp.QuoteMeta(marker))
	b.WriteString(`\s*(.*?)(?:`)
	for _, stop := range stops {
		b.WriteString(regexp.QuoteMeta(stop))
		b.WriteString("|")
	}
	b.WriteString(`$)`)

	re := regexp.MustCompile(b.String())
	s.cache[key] = re
	return re
}

// firstLine returns the first non-empty line of a section.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
