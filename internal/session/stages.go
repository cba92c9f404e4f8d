package session

import "strings"

// StageSet is the closed set of stage names a session may occupy. Stage
// changes against names outside the set are rejected rather than stored.
type StageSet struct {
	names []string
	index map[string]string // lowercase -> canonical
}

func NewStageSet(names []string) *StageSet {
	set := &StageSet{index: make(map[string]string, len(names))}
	for _, name := range names {
		canonical := strings.TrimSpace(name)
		if canonical == "" {
			continue
		}
		key := strings.ToLower(canonical)
		if _, dup := set.index[key]; dup {
			continue
		}
		set.index[key] = canonical
		set.names = append(set.names, canonical)
	}
	return set
}

// Canonical maps a client-supplied stage name onto its canonical form.
// Leading slashes and a trailing ".html" are tolerated because clients
// echo stage names back out of routing paths.
func (s *StageSet) Canonical(name string) (string, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(name), "/")
	trimmed = strings.TrimSuffix(trimmed, ".html")
	canonical, ok := s.index[strings.ToLower(trimmed)]
	return canonical, ok
}

// Names returns the canonical stage names in declaration order.
func (s *StageSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *StageSet) Len() int {
	return len(s.names)
}
