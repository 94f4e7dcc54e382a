// Package persist implements the module persistor (C4): the transactional
// key-value state described in spec.md §4.4 — per-module {state, stream,
// installed-profiles, stream-changes-count}, with save/rollback/isChanged
// and the diff reporters consumed by the container façade.
package persist

// State is a module's persisted enablement state.
type State int

const (
	StateUnknown State = iota
	StateEnabled
	StateDisabled
	StateDefault
	StateInstalled
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "ENABLED"
	case StateDisabled:
		return "DISABLED"
	case StateDefault:
		return "DEFAULT"
	case StateInstalled:
		return "INSTALLED"
	default:
		return "UNKNOWN"
	}
}

// ParseState is the inverse of State.String, used when reading persisted
// files back from disk.
func ParseState(s string) State {
	switch s {
	case "ENABLED":
		return StateEnabled
	case "DISABLED":
		return StateDisabled
	case "DEFAULT":
		return StateDefault
	case "INSTALLED":
		return StateInstalled
	default:
		return StateUnknown
	}
}

// Entry is one module's persisted record. Profiles is an ordered set: no
// duplicates, insertion order preserved so diffs and on-disk output are
// deterministic.
type Entry struct {
	State             State
	Stream            string
	Profiles          []string
	StreamChangeCount uint32

	// UserChanged records whether the current Stream was set by an
	// explicit, counted (count=true) operation, as opposed to a
	// system-driven one such as enableDependencyTree or applyObsoletes.
	// Persisted as stream_changed_by_user in the on-disk file (spec.md §6).
	UserChanged bool
}

func (e Entry) clone() Entry {
	out := e
	if e.Profiles != nil {
		out.Profiles = append([]string(nil), e.Profiles...)
	}
	return out
}

func (e Entry) hasProfile(name string) bool {
	for _, p := range e.Profiles {
		if p == name {
			return true
		}
	}
	return false
}

// addProfile appends name if absent, reports whether it was added.
func (e *Entry) addProfile(name string) bool {
	if e.hasProfile(name) {
		return false
	}
	e.Profiles = append(e.Profiles, name)
	return true
}

// removeProfile deletes name if present, reports whether it was removed.
func (e *Entry) removeProfile(name string) bool {
	for i, p := range e.Profiles {
		if p == name {
			e.Profiles = append(e.Profiles[:i], e.Profiles[i+1:]...)
			return true
		}
	}
	return false
}

// validate enforces the invariant from spec.md §3: a DISABLED entry carries
// no stream and no profiles.
func (e Entry) validate() bool {
	if e.State == StateDisabled {
		return e.Stream == "" && len(e.Profiles) == 0
	}
	return true
}

func equalEntries(a, b Entry) bool {
	if a.State != b.State || a.Stream != b.Stream || a.UserChanged != b.UserChanged {
		return false
	}
	if len(a.Profiles) != len(b.Profiles) {
		return false
	}
	for i := range a.Profiles {
		if a.Profiles[i] != b.Profiles[i] {
			return false
		}
	}
	return true
}
