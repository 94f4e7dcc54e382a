// Package module implements the module package container: the in-memory
// representation of module metadata, the subject-matching query language
// over it, and the façade that mediates between that metadata, persisted
// user intent and the dependency resolver.
package module

import "fmt"

// DependencyAlternative is one "(module, stream-or-any)" constraint inside
// an "or" group of a ModulePackage's requires. An empty Stream means any
// stream of Module satisfies the constraint.
type DependencyAlternative struct {
	Module string
	Stream string
}

// DependencyGroup is an "or" of alternatives; a ModulePackage's Requires is
// an "and" of groups.
type DependencyGroup []DependencyAlternative

// Identity is the (name, stream, version, context, arch) tuple that
// uniquely identifies a ModulePackage within a Container.
type Identity struct {
	Name    string
	Stream  string
	Version uint64
	Context string
	Arch    string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", id.Name, id.Stream, id.Version, id.Context, id.Arch)
}

// ModulePackage is an immutable record of one module build, as produced by
// the (externally owned) modulemd loader. Once constructed it is never
// mutated; a container may hold many ModulePackages that share a
// (name, stream) but differ in version, context or arch.
type ModulePackage struct {
	id Identity

	// ID is a monotonically assigned solver id, unique within the owning
	// Container, used to talk to the resolver adapter and the external
	// package pool without repeating the full identity tuple.
	ID int64

	RepoID        string
	Artifacts     []string // RPM NEVRAs provided by this build
	Profiles      map[string][]string
	Requires      []DependencyGroup
	StaticContext bool
}

// NewModulePackage constructs a ModulePackage. id.Name and id.Stream must be
// non-empty and must not contain ':' — that is the caller's (loader's)
// responsibility to validate before construction, since a malformed
// document is skipped rather than raised (spec.md §7).
func NewModulePackage(id Identity, repoID string) *ModulePackage {
	return &ModulePackage{
		id:       id,
		RepoID:   repoID,
		Profiles: make(map[string][]string),
	}
}

func (p *ModulePackage) Identity() Identity { return p.id }
func (p *ModulePackage) Name() string       { return p.id.Name }
func (p *ModulePackage) Stream() string     { return p.id.Stream }
func (p *ModulePackage) Version() uint64    { return p.id.Version }
func (p *ModulePackage) Context() string    { return p.id.Context }
func (p *ModulePackage) Arch() string       { return p.id.Arch }

func (p *ModulePackage) NSVCA() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", p.id.Name, p.id.Stream, p.id.Version, p.id.Context, p.id.Arch)
}

// latestBefore implements the ordering relation from spec.md §4.1: greater
// version wins; on a version tie, greater context wins only when both
// records carry a repo-assigned (static) context; a full tie means the two
// records are co-latest and neither is "before" the other.
func latestBefore(a, b *ModulePackage) bool {
	if a.Version() != b.Version() {
		return a.Version() < b.Version()
	}
	if a.StaticContext && b.StaticContext && a.Context() != b.Context() {
		return a.Context() < b.Context()
	}
	return false
}

type groupKey struct {
	name, stream, context, arch string
}

func keyOf(p *ModulePackage) groupKey {
	return groupKey{p.Name(), p.Stream(), p.Context(), p.Arch()}
}

// isActiveFunc reports whether p belongs to the active set; injected rather
// than hard-wired so getLatestModules stays independent of Container.
type isActiveFunc func(*ModulePackage) bool

// getLatestModules groups input by (name, stream, context, arch) and
// retains the maximal elements of each group under latestBefore. Per the
// open question in spec.md §9, two co-latest static-context records with
// differing contexts are both retained: context is part of the group key,
// so they land in different groups and are never compared with each other.
func getLatestModules(input []*ModulePackage, activeOnly bool, isActive isActiveFunc) []*ModulePackage {
	groups := make(map[groupKey][]*ModulePackage)
	order := make([]groupKey, 0)
	for _, p := range input {
		k := keyOf(p)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}

	var out []*ModulePackage
	for _, k := range order {
		members := groups[k]
		var maximal []*ModulePackage
		for _, candidate := range members {
			dominated := false
			for _, other := range members {
				if other == candidate {
					continue
				}
				if latestBefore(candidate, other) {
					dominated = true
					break
				}
			}
			if !dominated {
				maximal = append(maximal, candidate)
			}
		}
		out = append(out, maximal...)
	}

	if !activeOnly || isActive == nil {
		return out
	}
	var filtered []*ModulePackage
	for _, p := range out {
		if isActive(p) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// GetLatestModulesPerRepo groups input by repo, then by module name, and
// within each name keeps only the latest versions (per getLatestModules'
// notion of "latest"). The outer slice order is insertion order of
// repositories as first encountered in input.
func GetLatestModulesPerRepo(input []*ModulePackage) []RepoModules {
	var repoOrder []string
	seen := map[string]bool{}
	for _, p := range input {
		if !seen[p.RepoID] {
			seen[p.RepoID] = true
			repoOrder = append(repoOrder, p.RepoID)
		}
	}

	byRepo := make(map[string][]*ModulePackage)
	for _, p := range input {
		byRepo[p.RepoID] = append(byRepo[p.RepoID], p)
	}

	result := make([]RepoModules, 0, len(repoOrder))
	for _, repo := range repoOrder {
		pkgs := byRepo[repo]
		byName := make(map[string][]*ModulePackage)
		var nameOrder []string
		for _, p := range pkgs {
			if _, ok := byName[p.Name()]; !ok {
				nameOrder = append(nameOrder, p.Name())
			}
			byName[p.Name()] = append(byName[p.Name()], p)
		}
		rm := RepoModules{RepoID: repo}
		for _, name := range nameOrder {
			rm.Modules = append(rm.Modules, NameModules{
				Name:    name,
				Latest:  getLatestModules(byName[name], false, nil),
			})
		}
		result = append(result, rm)
	}
	return result
}

// RepoModules is the outermost dimension of GetLatestModulesPerRepo.
type RepoModules struct {
	RepoID  string
	Modules []NameModules
}

// NameModules is the per-module-name dimension of GetLatestModulesPerRepo.
type NameModules struct {
	Name   string
	Latest []*ModulePackage
}
