// Package defaults implements the per-module defaults store (C3): a pure
// merge of on-disk and repo-supplied default-stream/profile documents,
// per spec.md §4.3.
package defaults

import "sort"

// Defaults is one module's resolved default configuration.
type Defaults struct {
	DefaultStream string // "" means unset
	Profiles      map[string]map[string]bool // stream -> set of profile names
	Intents       map[string]string          // intent name -> stream
}

func newDefaults() *Defaults {
	return &Defaults{Profiles: make(map[string]map[string]bool), Intents: make(map[string]string)}
}

// Document is one source's view of a module's defaults — either an
// on-disk YAML file or a repo's modulemd-defaults document.
type Document struct {
	Module        string
	DefaultStream string // "" means this document doesn't set one
	Profiles      map[string][]string
	Intents       map[string]string
}

// ProblemKind mirrors the subset of ModuleErrorType that the defaults
// merge can produce on its own (spec.md §4.6 owns the rest).
type ProblemKind int

const (
	ErrorInDefaults ProblemKind = iota
)

// Problem is one merge-time diagnostic, always non-fatal: the module
// keeps loading, its default is simply left unset.
type Problem struct {
	Kind   ProblemKind
	Module string
	Detail string
}

// Store holds the resolved Defaults for every module seen so far, plus the
// conflicting-default_stream bookkeeping needed to apply spec.md's "two
// sources disagree -> drop it" rule regardless of arrival order.
type Store struct {
	byModule map[string]*Defaults
	// streamVotes records every DefaultStream value proposed for a module,
	// in arrival order, so a later conflicting vote can retroactively
	// clear an earlier one.
	streamVotes map[string][]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byModule:    make(map[string]*Defaults),
		streamVotes: make(map[string][]string),
	}
}

// Add merges one Document into the store as a pure fold, returning any
// problems raised (spec.md design note: "model it as a fold... rather
// than mutating a singleton" — Add is the fold step; Store accumulates
// the running result across calls).
func (s *Store) Add(doc Document) []Problem {
	var problems []Problem

	d, ok := s.byModule[doc.Module]
	if !ok {
		d = newDefaults()
		s.byModule[doc.Module] = d
	}

	for stream, profiles := range doc.Profiles {
		set, ok := d.Profiles[stream]
		if !ok {
			set = make(map[string]bool)
			d.Profiles[stream] = set
		}
		for _, p := range profiles {
			set[p] = true
		}
	}

	for intentName, stream := range doc.Intents {
		d.Intents[intentName] = stream
	}

	if doc.DefaultStream != "" {
		s.streamVotes[doc.Module] = append(s.streamVotes[doc.Module], doc.DefaultStream)
		votes := s.streamVotes[doc.Module]
		if conflicting(votes) {
			d.DefaultStream = ""
			problems = append(problems, Problem{
				Kind:   ErrorInDefaults,
				Module: doc.Module,
				Detail: "conflicting default_stream across sources",
			})
		} else {
			d.DefaultStream = votes[0]
		}
	}

	return problems
}

func conflicting(votes []string) bool {
	for i := 1; i < len(votes); i++ {
		if votes[i] != votes[0] {
			return true
		}
	}
	return false
}

// GetDefaultStream returns name's resolved default stream, applying any
// configured intent override, or "" if unset.
func (s *Store) GetDefaultStream(name string, intentName string) string {
	d, ok := s.byModule[name]
	if !ok {
		return ""
	}
	if intentName != "" {
		if stream, ok := d.Intents[intentName]; ok && stream != "" {
			return stream
		}
	}
	return d.DefaultStream
}

// GetDefaultProfiles returns the union of default profiles for
// (name, stream), sorted for determinism.
func (s *Store) GetDefaultProfiles(name, stream string) []string {
	d, ok := s.byModule[name]
	if !ok {
		return nil
	}
	set, ok := d.Profiles[stream]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Modules returns every module name the store has seen, sorted.
func (s *Store) Modules() []string {
	out := make([]string, 0, len(s.byModule))
	for name := range s.byModule {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
