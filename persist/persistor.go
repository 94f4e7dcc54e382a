package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/rpm-software-management/module-container-go/log"
)

// Persistor is the transactional key-value store of committed module
// state. All mutators operate on a shadow ("staging") copy; Save promotes
// it atomically, Rollback discards it. See spec.md §4.4 and §5.
type Persistor struct {
	dir    string // <install_root>/<persist_dir>/modules/state
	max    uint32
	logger *log.Logger

	committed map[string]Entry
	staging   map[string]Entry
}

// Errors returned by mutators, classified the way spec.md §7 requires.
var (
	ErrEnableMultipleStreams = errors.New("cannot enable multiple streams")
	ErrModifyLimitExceeded   = errors.New("module state change limit for this transaction exceeded")
)

// Open loads committed state from dir (created if absent) and returns a
// Persistor whose staging starts out identical to committed.
func Open(dir string, maxStreamChanges uint32, logger *log.Logger) (*Persistor, error) {
	if maxStreamChanges == 0 {
		maxStreamChanges = 2
	}
	committed, err := loadAll(dir)
	if err != nil {
		return nil, errors.Wrap(err, "loading persisted module state")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating persist directory")
	}
	p := &Persistor{
		dir:       dir,
		max:       maxStreamChanges,
		logger:    logger,
		committed: committed,
		staging:   cloneMap(committed),
	}
	return p, nil
}

func cloneMap(m map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

func (p *Persistor) entry(name string) Entry {
	if e, ok := p.staging[name]; ok {
		return e
	}
	return Entry{State: StateUnknown}
}

func (p *Persistor) checkBudget(e Entry, count bool) error {
	if count && e.StreamChangeCount >= p.max {
		return ErrModifyLimitExceeded
	}
	return nil
}

func (p *Persistor) commitChange(name string, before, after Entry, count, userChanged bool) error {
	changed := !equalEntries(before, after)
	if count && changed {
		after.StreamChangeCount = before.StreamChangeCount + 1
		after.UserChanged = userChanged
	}
	p.staging[name] = after
	return nil
}

// Enable moves name to ENABLED(stream). Per spec.md §4.4, this is rejected
// with ErrEnableMultipleStreams if name is currently ENABLED or INSTALLED
// with a different stream.
func (p *Persistor) Enable(name, stream string, count bool) error {
	e := p.entry(name)
	if err := p.checkBudget(e, count); err != nil {
		return err
	}
	before := e.clone()

	switch e.State {
	case StateEnabled, StateInstalled:
		if e.Stream != stream {
			return errors.Wrapf(ErrEnableMultipleStreams, "module %s: stream %s already set, requested %s", name, e.Stream, stream)
		}
	case StateUnknown, StateDisabled, StateDefault:
		e.State = StateEnabled
		e.Stream = stream
		e.Profiles = nil
	}
	return p.commitChange(name, before, e, count, count)
}

// Disable moves name to DISABLED, clearing stream and profiles.
func (p *Persistor) Disable(name string, count bool) error {
	e := p.entry(name)
	if err := p.checkBudget(e, count); err != nil {
		return err
	}
	before := e.clone()

	if e.State != StateDisabled {
		e.State = StateDisabled
		e.Stream = ""
		e.Profiles = nil
	}
	return p.commitChange(name, before, e, count, count)
}

// Reset moves name back to UNKNOWN, clearing stream and profiles.
func (p *Persistor) Reset(name string, count bool) error {
	e := p.entry(name)
	if err := p.checkBudget(e, count); err != nil {
		return err
	}
	before := e.clone()

	if e.State != StateUnknown {
		e.State = StateUnknown
		e.Stream = ""
		e.Profiles = nil
	}
	return p.commitChange(name, before, e, count, count)
}

// Install adds profile to name's installed set, enabling stream first if
// name was UNKNOWN or DISABLED. The resulting state is always INSTALLED,
// per the first-profile promotion rule in spec.md §4.4.
func (p *Persistor) Install(name, stream, profile string, count bool) error {
	e := p.entry(name)
	if err := p.checkBudget(e, count); err != nil {
		return err
	}
	before := e.clone()

	switch e.State {
	case StateUnknown, StateDisabled:
		e.Stream = stream
	case StateEnabled, StateDefault, StateInstalled:
		if e.Stream != "" && e.Stream != stream {
			return errors.Wrapf(ErrEnableMultipleStreams, "module %s: stream %s already set, requested %s", name, e.Stream, stream)
		}
		e.Stream = stream
	}
	e.addProfile(profile)
	e.State = StateInstalled
	return p.commitChange(name, before, e, count, count)
}

// Uninstall removes profile from name's installed set. If the set becomes
// empty, state reverts from INSTALLED to ENABLED (the stream is retained).
// A no-op (UNKNOWN/DISABLED, or a stream mismatch) is not an error.
func (p *Persistor) Uninstall(name, stream, profile string, count bool) error {
	e := p.entry(name)
	if err := p.checkBudget(e, count); err != nil {
		return err
	}
	if e.State != StateEnabled && e.State != StateDefault && e.State != StateInstalled {
		return nil
	}
	if stream != "" && e.Stream != stream {
		return nil
	}
	before := e.clone()
	e.removeProfile(profile)
	if len(e.Profiles) == 0 && e.State == StateInstalled {
		e.State = StateEnabled
	}
	return p.commitChange(name, before, e, count, count)
}

// IsChanged reports whether staging differs from committed.
func (p *Persistor) IsChanged() bool {
	if len(p.staging) != len(p.committed) {
		return true
	}
	for name, s := range p.staging {
		c, ok := p.committed[name]
		if !ok || !equalEntries(s, c) {
			return true
		}
	}
	return false
}

// Rollback discards staging, reverting to committed.
func (p *Persistor) Rollback() {
	p.staging = cloneMap(p.committed)
}

// Save atomically promotes staging to committed and to disk: a new
// directory is populated next to dir, then swapped in with os.Rename,
// mirroring the teacher's SafeWriter commit shape (write sibling, then
// rename) in place of a non-atomic in-place rewrite. stream_change_count
// resets to 0 for every module on a successful save (spec.md invariant 2).
func (p *Persistor) Save() error {
	if !p.IsChanged() {
		p.staging = cloneMap(p.committed)
		return nil
	}
	if !validateAll(p.staging) {
		return errors.New("refusing to save: a DISABLED entry carries a stream or profiles")
	}

	if err := writeAll(p.dir, p.staging); err != nil {
		return errors.Wrap(err, "writing persisted module state")
	}

	committed := make(map[string]Entry, len(p.staging))
	for name, e := range p.staging {
		e.StreamChangeCount = 0
		committed[name] = e
	}
	p.committed = committed
	p.staging = cloneMap(committed)
	return nil
}

func validateAll(m map[string]Entry) bool {
	for _, e := range m {
		if !e.validate() {
			return false
		}
	}
	return true
}

// Modules returns the names of every module this persistor has an entry
// for, in staging, sorted for deterministic ordering.
func (p *Persistor) Modules() []string {
	names := make([]string, 0, len(p.staging))
	for name := range p.staging {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry returns a copy of name's current staged entry.
func (p *Persistor) Entry(name string) Entry {
	return p.entry(name).clone()
}

func pathFor(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.modulemd", name))
}
