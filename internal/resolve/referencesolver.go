package resolve

import "fmt"

// ReferenceSolver is a small backtracking implementation of Pool, used as
// the default when no external SAT backend is wired in (tests, and the
// demo CLI). Real deployments are expected to supply a Pool backed by the
// actual package-pool's SAT solver; spec.md §1 treats that solver as an
// external collaborator, not something this repository implements.
//
// It enforces the one module-level law the container relies on: at most
// one stream of a given module may be selected in a solution.
type ReferenceSolver struct{}

func (ReferenceSolver) Solve(job Job) (Solution, error) {
	byID := make(map[int64]Candidate, len(job.Candidates))
	byName := make(map[string][]Candidate)
	for _, c := range job.Candidates {
		byID[c.ID] = c
		byName[c.Name] = append(byName[c.Name], c)
	}

	selected := make(map[string]int64) // module name -> chosen candidate id
	problems := make(map[string][]string)

	var satisfy func(name, stream string, trail map[string]bool) bool
	satisfy = func(name, stream string, trail map[string]bool) bool {
		if id, ok := selected[name]; ok {
			c := byID[id]
			return stream == "" || c.Stream == stream
		}
		if trail[name] {
			// cyclic dependency: defer to whatever the cycle's other leg
			// decides, per spec.md §9 ("delegate cycle-breaking to the
			// SAT solver rather than a topological sort here").
			return true
		}
		trail[name] = true

		candidates := byName[name]
		for _, c := range candidates {
			if stream != "" && c.Stream != stream {
				continue
			}
			if trySelect(c, trail, byID, selected, satisfy) {
				return true
			}
		}
		problems[name] = append(problems[name], fmt.Sprintf("no candidate for %s:%s satisfies the request", name, stream))
		return false
	}

	ok := true
	for _, req := range job.Require {
		if !satisfy(req.Name, req.Stream, map[string]bool{}) {
			ok = false
		}
	}
	if !ok {
		return Solution{Problems: problems}, nil
	}

	ids := make([]int64, 0, len(selected))
	for _, id := range selected {
		ids = append(ids, id)
	}
	return Solution{Selected: ids}, nil
}

func trySelect(c Candidate, trail map[string]bool, byID map[int64]Candidate, selected map[string]int64, satisfy func(string, string, map[string]bool) bool) bool {
	prior, hadPrior := selected[c.Name]
	selected[c.Name] = c.ID

	for _, group := range c.Requires {
		groupOK := false
		for _, alt := range group {
			if satisfy(alt.Name, alt.Stream, trail) {
				groupOK = true
				break
			}
		}
		if !groupOK {
			if hadPrior {
				selected[c.Name] = prior
			} else {
				delete(selected, c.Name)
			}
			return false
		}
	}
	return true
}
