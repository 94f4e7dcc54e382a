package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveSatisfiableInput(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "httpd", Stream: "2.4", Version: 1},
		{ID: 2, Name: "httpd", Stream: "2.2", Version: 1},
	}
	in := AdapterInput{
		Enabled:    []NameStream{{Name: "httpd", Stream: "2.4"}},
		Candidates: candidates,
	}

	res := Resolve(context.Background(), ReferenceSolver{}, in, nil)
	require.Equal(t, NoError, res.ErrKind)
	require.Contains(t, res.ActiveIDs, int64(1))
	require.NotContains(t, res.ActiveIDs, int64(2))
}

// S6: a module requiring platform:27 when only platform:26 is present.
func TestResolveUnsatisfiableDependencyIsError(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "nodejs", Stream: "10", Version: 1, Requires: [][]NameStream{
			{{Name: "platform", Stream: "f27"}},
		}},
		{ID: 2, Name: "platform", Stream: "f26", Version: 1},
	}
	in := AdapterInput{
		Enabled:    []NameStream{{Name: "nodejs", Stream: "10"}},
		Candidates: candidates,
	}

	res := Resolve(context.Background(), ReferenceSolver{}, in, nil)
	require.NotEqual(t, NoError, res.ErrKind)
	require.NotEmpty(t, res.Problems)
}

func TestResolveExcludesDisabledFromEffectiveSet(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "httpd", Stream: "2.4", Version: 1},
	}
	in := AdapterInput{
		Defaulted:  []NameStream{{Name: "httpd", Stream: "2.4"}},
		Disabled:   map[string]bool{"httpd": true},
		Candidates: candidates,
	}

	res := Resolve(context.Background(), ReferenceSolver{}, in, nil)
	require.Equal(t, NoError, res.ErrKind)
	require.Empty(t, res.ActiveIDs)
}

func TestResolveCacheHitSkipsSolver(t *testing.T) {
	dir := t.TempDir() + "/cache.db"
	cache, err := OpenCache(dir)
	require.NoError(t, err)
	defer cache.Close()

	in := AdapterInput{
		Enabled:    []NameStream{{Name: "httpd", Stream: "2.4"}},
		Candidates: []Candidate{{ID: 1, Name: "httpd", Stream: "2.4", Version: 1}},
	}

	first := Resolve(context.Background(), ReferenceSolver{}, in, cache)
	require.Equal(t, NoError, first.ErrKind)

	// A poisoned pool would fail any real solve; a cache hit must bypass it.
	second := Resolve(context.Background(), poisonedPool{}, in, cache)
	require.Equal(t, first.ActiveIDs, second.ActiveIDs)
}

type poisonedPool struct{}

func (poisonedPool) Solve(Job) (Solution, error) {
	panic("solver should not be invoked on a cache hit")
}

func TestLatestPerNameStreamKeepsHighestVersion(t *testing.T) {
	in := []Candidate{
		{ID: 1, Name: "httpd", Stream: "2.4", Version: 1},
		{ID: 2, Name: "httpd", Stream: "2.4", Version: 3},
		{ID: 3, Name: "httpd", Stream: "2.4", Version: 2},
	}
	out := latestPerNameStream(in)
	require.Len(t, out, 1)
	require.Equal(t, int64(2), out[0].ID)
}
