package module

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"

	"github.com/rpm-software-management/module-container-go/defaults"
	"github.com/rpm-software-management/module-container-go/internal/resolve"
	"github.com/rpm-software-management/module-container-go/log"
	"github.com/rpm-software-management/module-container-go/lockfile"
	"github.com/rpm-software-management/module-container-go/moduleyaml"
	"github.com/rpm-software-management/module-container-go/persist"
)

// NoStreamException is raised by enableDependencyTree when no alternative of
// a dependency group resolves to a known build: either no stream is
// requested and no default is available, or no build of the stream exists.
type NoStreamException struct {
	Module string
}

func (e *NoStreamException) Error() string {
	return fmt.Sprintf("module %s: no stream requested and no default stream set", e.Module)
}

// Container is the façade (C5): it owns the ModulePackage collections, the
// defaults store, the persistor, the resolver's solver-pool handle, and the
// install-root lock, mediating every public operation this package exposes.
type Container struct {
	opts   Options
	logger *log.Logger
	lock   *lockfile.Lock

	packages   []*ModulePackage
	byIdentity map[Identity]*ModulePackage
	byID       map[int64]*ModulePackage
	byName     nameIndex
	nextID     int64

	defaultsStore *defaults.Store
	persistor     *persist.Persistor
	pool          resolve.Pool
	cache         *resolve.Cache

	activeIDs map[int64]bool
}

// NewContainer opens the persistor, loads on-disk defaults, acquires the
// install-root lock and returns a ready-to-use Container. pool may be nil,
// in which case a ReferenceSolver is used (tests, the demo CLI).
func NewContainer(opts Options, pool resolve.Pool, logger *log.Logger, w io.Writer) (*Container, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		if w == nil {
			w = os.Stderr
		}
		logger = log.New(w)
	}

	lk, err := lockfile.OpenContainerLock(filepath.Join(opts.InstallRoot, opts.PersistDir, ".lock"))
	if err != nil {
		return nil, errors.Wrap(err, "opening install-root lock")
	}
	if err := lk.TryLock(); err != nil {
		return nil, errors.Wrap(err, "acquiring install-root lock")
	}

	stateDir := filepath.Join(opts.InstallRoot, opts.PersistDir, "modules", "state")
	p, err := persist.Open(stateDir, opts.MaxStreamChanges, logger)
	if err != nil {
		lk.Unlock()
		return nil, errors.Wrap(err, "opening persistor")
	}

	ds := defaults.New()
	if _, err := ds.AddFromDisk(filepath.Join(opts.InstallRoot, "etc", "dnf", "modules.defaults.d")); err != nil {
		lk.Unlock()
		return nil, errors.Wrap(err, "loading on-disk defaults")
	}

	if pool == nil {
		pool = resolve.ReferenceSolver{}
	}

	c := &Container{
		opts:          opts,
		logger:        logger,
		lock:          lk,
		byIdentity:    make(map[Identity]*ModulePackage),
		byID:          make(map[int64]*ModulePackage),
		byName:        newNameIndex(),
		defaultsStore: ds,
		persistor:     p,
		pool:          pool,
		activeIDs:     make(map[int64]bool),
	}

	cachePath := filepath.Join(opts.InstallRoot, opts.PersistDir, "resolve-cache.db")
	if cache, err := resolve.OpenCache(cachePath); err == nil {
		c.cache = cache
	} else {
		logger.Warnf("resolve cache unavailable, proceeding uncached: %v", err)
	}

	return c, nil
}

// Close releases the resolve cache handle and the install-root lock. It
// does not save; callers that want their staging changes persisted must
// call Save first.
func (c *Container) Close() error {
	if c.cache != nil {
		_ = c.cache.Close()
	}
	return c.lock.Unlock()
}

func (c *Container) insertPackage(p *ModulePackage) {
	c.nextID++
	p.ID = c.nextID
	c.packages = append(c.packages, p)
	c.byIdentity[p.Identity()] = p
	c.byID[p.ID] = p
	c.byName.insert(p)
}

// Add parses yaml (one or more "---"-separated modulemd documents) and
// inserts every modulemd record into the container, forwarding any
// modulemd-defaults records to the defaults store. A duplicate identity
// (an already-known build, offered again by any repo) is logged and skipped
// rather than raised, per spec.md §7.
func (c *Container) Add(yaml io.Reader, repoID string) error {
	modules, defs, err := moduleyaml.Decode(yaml)
	if err != nil {
		return errors.Wrap(err, "decoding modulemd")
	}

	for _, m := range modules {
		id := Identity{Name: m.Name, Stream: m.Stream, Version: m.Version, Context: m.Context, Arch: m.Arch}
		if _, dup := c.byIdentity[id]; dup {
			c.logger.Warnf("skipping duplicate module build %s from repo %s", id, repoID)
			continue
		}
		pkg := NewModulePackage(id, repoID)
		pkg.Artifacts = m.Artifacts
		pkg.Profiles = m.Profiles
		pkg.StaticContext = m.StaticContext
		for _, group := range m.Requires {
			var g DependencyGroup
			for _, alt := range group {
				g = append(g, DependencyAlternative{Module: alt.Module, Stream: alt.Stream})
			}
			pkg.Requires = append(pkg.Requires, g)
		}
		c.insertPackage(pkg)
		c.logger.WithModule(id.Name).Debugf("added module build %s from repo %s", id, repoID)
	}

	for _, d := range defs {
		problems := c.defaultsStore.Add(defaults.Document{
			Module:        d.Module,
			DefaultStream: d.DefaultStream,
			Profiles:      d.Profiles,
			Intents:       d.Intents,
		})
		for _, p := range problems {
			c.logger.Warnf("defaults merge problem for %s: %s", p.Module, p.Detail)
		}
	}
	return nil
}

// Find returns every package matching n, in insertion order. When n names
// an exact module, the lookup goes through the name index instead of
// scanning every package the container holds.
func (c *Container) Find(n Nsvcap) []*ModulePackage {
	candidates := c.packages
	if n.Name != "" {
		candidates = c.byName.get(n.Name)
	}
	var out []*ModulePackage
	for _, p := range candidates {
		if n.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// FindSubject parses subject as an Nsvcap and delegates to Find.
func (c *Container) FindSubject(subject string) []*ModulePackage {
	return c.Find(ParseNsvcap(subject))
}

// FindFields is the QueryFields form of Find.
func (c *Container) FindFields(f QueryFields) []*ModulePackage {
	return c.Find(f.toNsvcap())
}

// --- persistor passthroughs -------------------------------------------------

func (c *Container) Enable(name, stream string) error  { return c.persistor.Enable(name, stream, true) }
func (c *Container) Disable(name string) error          { return c.persistor.Disable(name, true) }
func (c *Container) Reset(name string) error            { return c.persistor.Reset(name, true) }
func (c *Container) Install(name, stream, profile string) error {
	return c.persistor.Install(name, stream, profile, true)
}
func (c *Container) Uninstall(name, stream, profile string) error {
	return c.persistor.Uninstall(name, stream, profile, true)
}

func (c *Container) IsChanged() bool  { return c.persistor.IsChanged() }
func (c *Container) Rollback()        { c.persistor.Rollback() }

// Save promotes staging to committed, refreshes the fail-safe snapshot
// directory for the new committed state, and clears the stream-change
// budget for every module, per spec.md §4.4 invariant 2.
func (c *Container) Save() error {
	if err := c.updateFailSafeData(); err != nil {
		return errors.Wrap(err, "updating fail-safe snapshots")
	}
	return c.persistor.Save()
}

// --- requiresModuleEnablement ------------------------------------------------

// RequiresModuleEnablement returns module packages whose artifacts
// intersect packageSet and whose streams are not currently enabled.
func (c *Container) RequiresModuleEnablement(packageSet []string) []*ModulePackage {
	want := make(map[string]bool, len(packageSet))
	for _, rpm := range packageSet {
		want[rpm] = true
	}

	var out []*ModulePackage
	seen := make(map[string]bool)
	for _, p := range c.packages {
		key := p.Name() + ":" + p.Stream()
		if seen[key] {
			continue
		}
		intersects := false
		for _, art := range p.Artifacts {
			if want[art] {
				intersects = true
				break
			}
		}
		if !intersects {
			continue
		}
		entry := c.persistor.Entry(p.Name())
		if entry.Stream == p.Stream() && (entry.State == persist.StateEnabled || entry.State == persist.StateInstalled || entry.State == persist.StateDefault) {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// --- enableDependencyTree ----------------------------------------------------

// EnableDependencyTree expands seeds transitively, enabling every traversed
// (module, stream) pair with count=false, and returns the full set of
// (name, stream) pairs it enabled (including the seeds themselves).
func (c *Container) EnableDependencyTree(seeds []*ModulePackage) ([]resolve.NameStream, error) {
	var result []resolve.NameStream
	visited := make(map[string]bool)

	var worklist []*ModulePackage
	worklist = append(worklist, seeds...)

	for len(worklist) > 0 {
		pkg := worklist[0]
		worklist = worklist[1:]

		key := pkg.Name() + ":" + pkg.Stream()
		if visited[key] {
			continue
		}
		visited[key] = true

		if err := c.persistor.Enable(pkg.Name(), pkg.Stream(), false); err != nil {
			return nil, errors.Wrapf(err, "enabling dependency %s", key)
		}
		result = append(result, resolve.NameStream{Name: pkg.Name(), Stream: pkg.Stream()})

		for _, group := range pkg.Requires {
			next, err := c.resolveDependencyGroup(group)
			if err != nil {
				return nil, err
			}
			if next != nil {
				worklist = append(worklist, next)
			}
		}
	}
	return result, nil
}

func (c *Container) resolveDependencyGroup(group DependencyGroup) (*ModulePackage, error) {
	for _, alt := range group {
		stream := alt.Stream
		if stream == "" {
			stream = c.defaultsStore.GetDefaultStream(alt.Module, "")
			if stream == "" {
				continue
			}
		}
		candidates := getLatestModules(c.packagesNamed(alt.Module, stream), false, nil)
		if len(candidates) > 0 {
			return candidates[0], nil
		}
	}
	if len(group) > 0 {
		return nil, &NoStreamException{Module: group[0].Module}
	}
	return nil, nil
}

func (c *Container) packagesNamed(name, stream string) []*ModulePackage {
	var out []*ModulePackage
	for _, p := range c.byName.get(name) {
		if p.Stream() == stream {
			out = append(out, p)
		}
	}
	return out
}

// --- isModuleActive ----------------------------------------------------------

// IsModuleActive reports whether id was part of the last successful
// resolveActiveModulePackages outcome.
func (c *Container) IsModuleActive(id int64) bool { return c.activeIDs[id] }

// IsPackageActive is the *ModulePackage overload of IsModuleActive.
func (c *Container) IsPackageActive(p *ModulePackage) bool { return c.activeIDs[p.ID] }

// --- applyObsoletes ----------------------------------------------------------

// ApplyObsoletes rewrites persistor entries whose (name, stream) is
// superseded by a successor module's identity, preserving profiles. Per
// spec.md §9 this does not count against the stream-change budget: it is a
// system-initiated rewrite, not user intent, so every Enable call here
// passes count=false.
func (c *Container) ApplyObsoletes(obsoletes map[resolve.NameStream]resolve.NameStream) error {
	for from, to := range obsoletes {
		entry := c.persistor.Entry(from.Name)
		if entry.Stream != from.Stream {
			continue
		}
		if err := c.persistor.Reset(from.Name, false); err != nil {
			return errors.Wrapf(err, "clearing obsoleted stream %s:%s", from.Name, from.Stream)
		}
		if err := c.persistor.Enable(to.Name, to.Stream, false); err != nil {
			return errors.Wrapf(err, "applying obsoletion %s -> %s", from.Name, to.Name)
		}
		for _, profile := range entry.Profiles {
			if err := c.persistor.Install(to.Name, to.Stream, profile, false); err != nil {
				return errors.Wrapf(err, "carrying profile %s across obsoletion", profile)
			}
		}
	}
	return nil
}

// --- fail-safe snapshots -----------------------------------------------------

func (c *Container) failSafeDir() string {
	return filepath.Join(c.opts.InstallRoot, "var", "lib", "dnf", "modulefailsafe")
}

// LoadFailSafeData returns the raw modulemd snapshot bytes previously saved
// for name:stream, or nil if none exists.
func (c *Container) LoadFailSafeData(name, stream string) ([]byte, error) {
	path := filepath.Join(c.failSafeDir(), name+":"+stream)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

// updateFailSafeData writes a snapshot for every currently-enabled stream
// that lacks one, and removes snapshots for streams no longer enabled.
func (c *Container) updateFailSafeData() error {
	dir := c.failSafeDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	wanted := make(map[string]*ModulePackage)
	for _, sc := range c.persistor.CurrentEnabledStreams() {
		for _, p := range c.packagesNamed(sc.Module, sc.To) {
			wanted[sc.Module+":"+sc.To] = p
			break
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(entries))
	for _, e := range entries {
		existing[e.Name()] = true
	}

	for key, p := range wanted {
		if existing[key] {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, key), []byte(modulemdSnapshot(p)), 0644); err != nil {
			return err
		}
	}
	for key := range existing {
		if _, ok := wanted[key]; !ok {
			_ = os.Remove(filepath.Join(dir, key))
		}
	}
	return nil
}

func modulemdSnapshot(p *ModulePackage) string {
	return fmt.Sprintf("document: modulemd\ndata:\n  name: %s\n  stream: %s\n  version: %d\n  context: %s\n  arch: %s\n",
		p.Name(), p.Stream(), p.Version(), p.Context(), p.Arch())
}

// --- resolve -----------------------------------------------------------------

// Resolve runs resolveActiveModulePackages: it composes the effective
// enablement set, consults the resolve cache, and otherwise delegates to
// the resolver adapter's two-pass solve. ctx is merged via constext with
// context.Background(), so only the caller's cancellation reaches the
// adapter.
func (c *Container) Resolve(ctx context.Context) (resolve.Result, error) {
	mergedCtx, cancel := constext.Cons(ctx, context.Background())
	defer cancel()

	input := resolve.AdapterInput{
		Disabled: make(map[string]bool),
		Debug:    c.opts.DebugSolver,
	}

	for _, name := range c.persistor.Modules() {
		e := c.persistor.Entry(name)
		switch e.State {
		case persist.StateDisabled:
			input.Disabled[name] = true
		case persist.StateEnabled, persist.StateInstalled, persist.StateDefault:
			if e.Stream != "" {
				input.Enabled = append(input.Enabled, resolve.NameStream{Name: name, Stream: e.Stream})
			}
		}
	}

	for _, name := range c.defaultsStore.Modules() {
		if stream := c.defaultsStore.GetDefaultStream(name, ""); stream != "" {
			input.Defaulted = append(input.Defaulted, resolve.NameStream{Name: name, Stream: stream})
		}
	}

	for _, p := range c.packages {
		var reqs [][]resolve.NameStream
		for _, group := range p.Requires {
			var alt []resolve.NameStream
			for _, a := range group {
				alt = append(alt, resolve.NameStream{Name: a.Module, Stream: a.Stream})
			}
			reqs = append(reqs, alt)
		}
		input.Candidates = append(input.Candidates, resolve.Candidate{
			ID: p.ID, Name: p.Name(), Stream: p.Stream(), Version: p.Version(), Requires: reqs,
		})
	}

	res := resolve.Resolve(mergedCtx, c.pool, input, c.cache)

	c.activeIDs = make(map[int64]bool, len(res.ActiveIDs))
	for _, id := range res.ActiveIDs {
		c.activeIDs[id] = true
	}
	return res, nil
}

// AllPackages returns every package the container holds, in insertion order.
func (c *Container) AllPackages() []*ModulePackage {
	out := make([]*ModulePackage, len(c.packages))
	copy(out, c.packages)
	return out
}

// ModuleNames returns every distinct module name known to the container,
// in lexicographic order (the name index's natural walk order).
func (c *Container) ModuleNames() []string {
	return c.byName.names()
}

// AddPlatformPackage is the exported entry point for the C5
// addPlatformPackage operation; override bypasses /etc/os-release detection.
func (c *Container) AddPlatformPackage(override string) (*ModulePackage, error) {
	return c.addPlatformPackage(override)
}
