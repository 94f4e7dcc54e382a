package persist

// StreamChange describes a module whose enabled/installed stream differs
// between committed and staging.
type StreamChange struct {
	Module string
	From   string
	To     string
}

// ProfileChange describes a profile that was installed or removed for a
// module between committed and staging.
type ProfileChange struct {
	Module  string
	Profile string
}

func (p *Persistor) names() []string {
	seen := map[string]bool{}
	var out []string
	for n := range p.committed {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for n := range p.staging {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// GetEnabledStreams lists modules whose staging state transitions to
// ENABLED, DEFAULT or INSTALLED with a nonempty stream, relative to
// committed — i.e. it was not already in one of those states with the
// same stream in committed.
func (p *Persistor) GetEnabledStreams() []StreamChange {
	var out []StreamChange
	for _, name := range p.names() {
		s := p.staging[name]
		if s.Stream == "" || !enabledLike(s.State) {
			continue
		}
		c := p.committed[name]
		if enabledLike(c.State) && c.Stream == s.Stream {
			continue
		}
		out = append(out, StreamChange{Module: name, To: s.Stream})
	}
	return out
}

// CurrentEnabledStreams lists every module whose staging state is
// currently ENABLED, DEFAULT or INSTALLED with a nonempty stream,
// regardless of what committed holds. Unlike GetEnabledStreams this is
// not a diff: it is the full current enabled set, as needed by callers
// that must rebuild their view from scratch (e.g. a fail-safe snapshot).
func (p *Persistor) CurrentEnabledStreams() []StreamChange {
	var out []StreamChange
	for _, name := range p.names() {
		s := p.staging[name]
		if s.Stream == "" || !enabledLike(s.State) {
			continue
		}
		out = append(out, StreamChange{Module: name, To: s.Stream})
	}
	return out
}

func enabledLike(st State) bool {
	return st == StateEnabled || st == StateDefault || st == StateInstalled
}

// GetDisabledModules lists modules whose staging state is DISABLED and
// was not DISABLED in committed.
func (p *Persistor) GetDisabledModules() []string {
	var out []string
	for _, name := range p.names() {
		s := p.staging[name]
		c := p.committed[name]
		if s.State == StateDisabled && c.State != StateDisabled {
			out = append(out, name)
		}
	}
	return out
}

// GetResetModules lists modules whose staging state is UNKNOWN and was
// not UNKNOWN in committed.
func (p *Persistor) GetResetModules() []string {
	var out []string
	for _, name := range p.names() {
		s := p.staging[name]
		c := p.committed[name]
		if s.State == StateUnknown && c.State != StateUnknown {
			out = append(out, name)
		}
	}
	return out
}

// GetSwitchedStreams lists modules whose stream changed between two
// nonempty values.
func (p *Persistor) GetSwitchedStreams() []StreamChange {
	var out []StreamChange
	for _, name := range p.names() {
		s := p.staging[name]
		c := p.committed[name]
		if c.Stream != "" && s.Stream != "" && c.Stream != s.Stream {
			out = append(out, StreamChange{Module: name, From: c.Stream, To: s.Stream})
		}
	}
	return out
}

// GetInstalledProfiles lists profiles present in staging but not in
// committed, per module.
func (p *Persistor) GetInstalledProfiles() []ProfileChange {
	return p.profileDiff(func(committed, staged []string) []string {
		return subtract(staged, committed)
	})
}

// GetRemovedProfiles lists profiles present in committed but not in
// staging, per module.
func (p *Persistor) GetRemovedProfiles() []ProfileChange {
	return p.profileDiff(func(committed, staged []string) []string {
		return subtract(committed, staged)
	})
}

func (p *Persistor) profileDiff(diff func(committed, staged []string) []string) []ProfileChange {
	var out []ProfileChange
	for _, name := range p.names() {
		s := p.staging[name]
		c := p.committed[name]
		for _, prof := range diff(c.Profiles, s.Profiles) {
			out = append(out, ProfileChange{Module: name, Profile: prof})
		}
	}
	return out
}

func subtract(base, minus []string) []string {
	exclude := make(map[string]bool, len(minus))
	for _, m := range minus {
		exclude[m] = true
	}
	var out []string
	for _, b := range base {
		if !exclude[b] {
			out = append(out, b)
		}
	}
	return out
}
