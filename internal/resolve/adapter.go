package resolve

import (
	"context"
)

// Resolve implements the two-pass solve strategy from spec.md §4.6:
//
//  1. Compose the effective enablement set (Enabled ∪ Defaulted ∪
//     DependencyPulled, minus Disabled).
//  2. Attempt a solve with every known candidate.
//  3. On failure, retry using only the latest candidate per (name,stream).
//  4. Classify: first-pass failure that the second pass resolves ->
//     ErrorInLatest; second-pass failure -> Err, or CannotResolve when
//     there are no candidates at all. A context already done before the
//     first pass also yields CannotResolve.
//
// A cache hit short-circuits the whole thing.
func Resolve(ctx context.Context, pool Pool, in AdapterInput, cache *Cache) Result {
	effective := effectiveSet(in)
	key := InputHash(effective, in.Debug)
	if cache != nil {
		if res, ok := cache.Get(key); ok {
			return res
		}
	}

	require := make([]NameStream, 0, len(effective))
	for _, ns := range effective {
		require = append(require, ns)
	}

	res := resolveTwoPass(ctx, pool, in.Candidates, require, in.Debug)

	if cache != nil {
		_ = cache.Put(key, res)
	}
	return res
}

func effectiveSet(in AdapterInput) []NameStream {
	seen := make(map[string]NameStream)
	add := func(ns NameStream) {
		if in.Disabled != nil && in.Disabled[ns.Name] {
			return
		}
		if _, ok := seen[ns.Name]; !ok {
			seen[ns.Name] = ns
		}
	}
	for _, ns := range in.Enabled {
		add(ns)
	}
	for _, ns := range in.Defaulted {
		add(ns)
	}
	for _, ns := range in.DependencyPulled {
		add(ns)
	}

	out := make([]NameStream, 0, len(seen))
	for _, ns := range seen {
		out = append(out, ns)
	}
	return out
}

func resolveTwoPass(ctx context.Context, pool Pool, candidates []Candidate, require []NameStream, debug bool) Result {
	select {
	case <-ctx.Done():
		return Result{ErrKind: CannotResolve, Problems: [][]string{{ctx.Err().Error()}}}
	default:
	}

	first, err := pool.Solve(Job{Candidates: candidates, Require: require, Debug: debug})
	if err == nil && len(first.Problems) == 0 {
		return Result{ActiveIDs: first.Selected, ErrKind: NoError}
	}

	latestOnly := latestPerNameStream(candidates)
	second, err2 := pool.Solve(Job{Candidates: latestOnly, Require: require, Debug: debug})
	if err2 == nil && len(second.Problems) == 0 {
		return Result{
			ActiveIDs: second.Selected,
			Problems:  problemSlices(first.Problems),
			ErrKind:   ErrorInLatest,
		}
	}

	if len(second.Problems) > 0 && len(latestOnly) == 0 {
		return Result{Problems: problemSlices(second.Problems), ErrKind: CannotResolve}
	}

	return Result{Problems: problemSlices(second.Problems), ErrKind: Err}
}

func problemSlices(m map[string][]string) [][]string {
	out := make([][]string, 0, len(m))
	for _, lines := range m {
		out = append(out, lines)
	}
	return out
}

func latestPerNameStream(candidates []Candidate) []Candidate {
	type key struct{ name, stream string }
	best := make(map[key]Candidate)
	for _, c := range candidates {
		k := key{c.Name, c.Stream}
		if cur, ok := best[k]; !ok || c.Version > cur.Version {
			best[k] = c
		}
	}
	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}
