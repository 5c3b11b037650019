package policy

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustPolicy(id int64, kind Kind, pattern string, profile Profile, params map[string]string, parent *int64) Policy {
	return Policy{
		ID:       id,
		Kind:     kind,
		Pattern:  regexp.MustCompile(pattern),
		Profile:  profile,
		Params:   params,
		Priority: 1,
		ParentID: parent,
	}
}

func ptr(v int64) *int64 { return &v }

func TestResolveNoMatchReturnsBypass(t *testing.T) {
	t.Parallel()

	r := NewResolver([]Policy{
		mustPolicy(1, KindURL, `wiley\.com`, ProfileAPI, nil, nil),
	})
	chain, err := r.Resolve(Input{URL: "https://example.org/paper"})
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, ProfileBypass, chain[0].Profile)
}

func TestResolveRanking(t *testing.T) {
	t.Parallel()

	// Three roots match; api with params must win over api over proxy.
	r := NewResolver([]Policy{
		mustPolicy(1, KindURL, `sciencedirect\.com`, ProfileProxy, nil, nil),
		mustPolicy(2, KindURL, `sciencedirect\.com`, ProfileAPI, nil, nil),
		mustPolicy(3, KindURL, `sciencedirect\.com`, ProfileAPI, map[string]string{"browserHtml": "true"}, nil),
	})
	chain, err := r.Resolve(Input{URL: "https://www.sciencedirect.com/science/article/pii/1"})
	require.NoError(t, err)
	require.Equal(t, int64(3), chain[0].ID)
}

func TestResolveChainOrdersChildren(t *testing.T) {
	t.Parallel()

	r := NewResolver([]Policy{
		mustPolicy(10, KindURL, `iop\.org`, ProfileProxy, nil, nil),
		mustPolicy(11, KindURL, `iop\.org`, ProfileBypass, nil, ptr(10)),
		mustPolicy(12, KindURL, `iop\.org`, ProfileAPI, map[string]string{"javascript": "true"}, ptr(10)),
		mustPolicy(13, KindURL, `iop\.org`, ProfileAPI, nil, ptr(10)),
		// Child of a different root must not join the chain.
		mustPolicy(14, KindURL, `iop\.org`, ProfileAPI, nil, ptr(99)),
	})
	chain, err := r.Resolve(Input{URL: "https://iopscience.iop.org/article/1/pdf"})
	require.NoError(t, err)
	require.Len(t, chain, 4)
	require.Equal(t, int64(10), chain[0].ID)
	require.Equal(t, []int64{12, 13, 11}, []int64{chain[1].ID, chain[2].ID, chain[3].ID})
}

func TestResolveConflictingRoots(t *testing.T) {
	t.Parallel()

	r := NewResolver([]Policy{
		mustPolicy(1, KindURL, `wiley\.com`, ProfileAPI, map[string]string{"a": "1"}, nil),
		mustPolicy(2, KindURL, `onlinelibrary`, ProfileAPI, map[string]string{"b": "2"}, nil),
	})
	_, err := r.Resolve(Input{URL: "https://onlinelibrary.wiley.com/doi/10.1/x"})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.ElementsMatch(t, []int64{1, 2}, conflict.IDs)
}

func TestResolveSingleParamsRootDoesNotConflict(t *testing.T) {
	t.Parallel()

	r := NewResolver([]Policy{
		mustPolicy(1, KindURL, `wiley\.com`, ProfileAPI, map[string]string{"a": "1"}, nil),
		mustPolicy(2, KindURL, `wiley\.com`, ProfileAPI, nil, nil),
		mustPolicy(3, KindURL, `wiley\.com`, ProfileProxy, nil, nil),
	})
	chain, err := r.Resolve(Input{URL: "https://onlinelibrary.wiley.com/doi/10.1/x"})
	require.NoError(t, err)
	require.Equal(t, int64(1), chain[0].ID)
}

func TestResolveDOIScopedPolicies(t *testing.T) {
	t.Parallel()

	r := NewResolver([]Policy{
		mustPolicy(1, KindDOI, `^10\.1002/`, ProfileAPI, nil, nil),
		mustPolicy(2, KindURL, `doi\.org`, ProfileProxy, nil, nil),
	})

	// DOI matches the doi-scoped policy, URL matches the url-scoped one;
	// api outranks proxy.
	chain, err := r.Resolve(Input{URL: "https://doi.org/10.1002/jum.15761", DOI: "10.1002/jum.15761"})
	require.NoError(t, err)
	require.Equal(t, int64(1), chain[0].ID)

	// Without the DOI only the url-scoped policy matches.
	chain, err = r.Resolve(Input{URL: "https://doi.org/10.9999/other"})
	require.NoError(t, err)
	require.Equal(t, int64(2), chain[0].ID)
}

func TestResolveOrphanChildrenFallBackToBypass(t *testing.T) {
	t.Parallel()

	r := NewResolver([]Policy{
		mustPolicy(5, KindURL, `example\.com`, ProfileAPI, nil, ptr(42)),
	})
	chain, err := r.Resolve(Input{URL: "https://example.com/a"})
	require.NoError(t, err)
	require.Equal(t, ProfileBypass, chain[0].Profile)
}

func TestConflictErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ConflictError{Locator: "10.1002/x", IDs: []int64{1, 2}}
	require.Contains(t, err.Error(), "10.1002/x")
	require.True(t, errors.As(error(err), new(*ConflictError)))
}
