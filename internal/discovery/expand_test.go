package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandRejectsEmptyPatterns(t *testing.T) {
	e := NewExpander()
	for _, pattern := range []string{"", "   ", "*", " ** ", "!!!"} {
		_, err := e.Expand(pattern)
		assert.ErrorIs(t, err, ErrEmptyKeyword, "pattern %q", pattern)
	}
}

func TestExpandLiteralKeyword(t *testing.T) {
	names, err := BaseNames("Flipper")
	require.NoError(t, err)

	require.NotEmpty(t, names)
	assert.Equal(t, "flipper", names[0], "literal keyword comes first")
	assert.Contains(t, names, "getflipper")
	assert.Contains(t, names, "flipperhub")
	assertUnique(t, names)
	assertBrandableLengths(t, names)
}

func TestExpandLeadingWildcard(t *testing.T) {
	names, err := BaseNames("*stack")
	require.NoError(t, err)

	expected := make([]string, 0, len(Prefixes))
	for _, p := range Prefixes {
		expected = append(expected, p+"stack")
	}
	assert.Equal(t, expected, names)
}

func TestExpandTrailingWildcard(t *testing.T) {
	names, err := BaseNames("ai*")
	require.NoError(t, err)

	assert.Equal(t, "aihub", names[0])
	assert.Contains(t, names, "aiapp")
	assert.Contains(t, names, "aicloud", "alternative words extend the suffix list")
	assert.Len(t, names, len(Suffixes)+len(AlternativeWords))
}

func TestExpandInfixWildcard(t *testing.T) {
	names, err := BaseNames("cl*d")
	require.NoError(t, err)
	assert.Equal(t, []string{"cld", "clod", "clad", "clid", "cllyd", "clerd"}, names)
}

func TestExpandFiltersLength(t *testing.T) {
	names, err := BaseNames("ab")
	require.NoError(t, err)
	assert.NotContains(t, names, "ab")
	assertBrandableLengths(t, names)

	names, err = BaseNames("abcdefghijklmnopqrs")
	require.NoError(t, err)
	assertBrandableLengths(t, names)
	assert.Contains(t, names, "abcdefghijklmnopqrs")
	assert.NotContains(t, names, "superabcdefghijklmnopqrs")
}

func TestExpandCrossesTLDsWithinBounds(t *testing.T) {
	e := NewExpander()
	candidates, err := e.Expand("getsupermind")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(candidates), DefaultMaxCandidates)
	require.GreaterOrEqual(t, len(candidates), 3)
	assert.Equal(t, "getsupermind.com", candidates[0].Name())
	assert.Equal(t, "getsupermind.net", candidates[1].Name())
	assert.Equal(t, "getsupermind.org", candidates[2].Name())
}

func TestExpandIsDeterministic(t *testing.T) {
	e := NewExpander()
	for _, pattern := range []string{"flip", "*ify", "ai*", "fl*p", "startup.com"} {
		first, err := e.Expand(pattern)
		require.NoError(t, err)
		second, err := e.Expand(pattern)
		require.NoError(t, err)
		assert.Equal(t, first, second, "pattern %q", pattern)
	}
}

func TestExpandHonoursCustomCap(t *testing.T) {
	e := &Expander{MaxCandidates: 5, TLDsPerName: 2, TLDs: []string{"com", "io", "ai"}}
	candidates, err := e.Expand("ai*")
	require.NoError(t, err)
	require.Len(t, candidates, 5)
	assert.Equal(t, Candidate{BaseName: "aihub", TLD: "com"}, candidates[0])
	assert.Equal(t, Candidate{BaseName: "aihub", TLD: "io"}, candidates[1])
	assert.Equal(t, Candidate{BaseName: "ailab", TLD: "com"}, candidates[2])
}

func TestExpandStripsPastedDomain(t *testing.T) {
	names, err := BaseNames("https://www.Startup.com/")
	require.NoError(t, err)
	assert.Equal(t, "startup", names[0])
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OperationSearch, Classify("flip"))
	assert.Equal(t, OperationWildcardExplore, Classify("flip*"))
}

func assertUnique(t *testing.T, names []string) {
	t.Helper()
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		_, dup := seen[n]
		assert.False(t, dup, "duplicate base name %q", n)
		seen[n] = struct{}{}
	}
}

func assertBrandableLengths(t *testing.T, names []string) {
	t.Helper()
	for _, n := range names {
		assert.GreaterOrEqual(t, len(n), MinBaseLen, n)
		assert.LessOrEqual(t, len(n), MaxBaseLen, n)
	}
}
