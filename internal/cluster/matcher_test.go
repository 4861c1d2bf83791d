package cluster

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func TestMatchEmptyCorpusMintsDistinctIDs(t *testing.T) {
	t.Parallel()

	first := Match([]float64{1, 0}, nil, DefaultThreshold)
	second := Match([]float64{1, 0}, []Entry{}, DefaultThreshold)

	assert.False(t, first.Matched)
	assert.False(t, second.Matched)
	assert.NotEmpty(t, first.ThemeID)
	assert.NotEqual(t, first.ThemeID, second.ThemeID)
}

func TestMatchIgnoresInvalidEntries(t *testing.T) {
	t.Parallel()

	m := NewMatcher(DefaultThreshold, sequentialIDs())
	existing := []Entry{
		{Vector: nil, ThemeID: "nil-vector"},
		{Vector: []float64{1, 0, 0}, ThemeID: "wrong-dim"},
		{Vector: []float64{1, 0}, ThemeID: ""},
		{Vector: []float64{math.NaN(), 1}, ThemeID: "nan"},
	}

	got := m.Match([]float64{1, 0}, existing)
	assert.Equal(t, Decision{ThemeID: "new-1", Score: 0, Matched: false}, got)
}

func TestMatchThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	existing := []Entry{{Vector: []float64{1, 0}, ThemeID: "theme-a"}}
	candidate := []float64{1, 1}
	exact := Cosine(candidate, existing[0].Vector)

	joined := NewMatcher(exact, sequentialIDs()).Match(candidate, existing)
	assert.True(t, joined.Matched)
	assert.Equal(t, "theme-a", joined.ThemeID)
	assert.InDelta(t, exact, joined.Score, 1e-12)

	above := NewMatcher(math.Nextafter(exact, 2), sequentialIDs()).Match(candidate, existing)
	assert.False(t, above.Matched)
	assert.Equal(t, "new-1", above.ThemeID)
}

func TestMatchPicksBestScore(t *testing.T) {
	t.Parallel()

	existing := []Entry{
		{Vector: []float64{0, 1}, ThemeID: "far"},
		{Vector: []float64{0.9, 0.1}, ThemeID: "near"},
		{Vector: []float64{0.5, 0.5}, ThemeID: "middle"},
	}
	got := NewMatcher(0.5, sequentialIDs()).Match([]float64{1, 0}, existing)
	require.True(t, got.Matched)
	assert.Equal(t, "near", got.ThemeID)
}

func TestMatchTieGoesToFirstEntry(t *testing.T) {
	t.Parallel()

	existing := []Entry{
		{Vector: []float64{1, 0}, ThemeID: "first"},
		{Vector: []float64{2, 0}, ThemeID: "second"},
	}
	m := NewMatcher(0.8, sequentialIDs())
	for i := 0; i < 5; i++ {
		got := m.Match([]float64{3, 0}, existing)
		assert.Equal(t, "first", got.ThemeID)
	}
}

func TestMatchBelowThresholdMintsNewTheme(t *testing.T) {
	t.Parallel()

	existing := []Entry{{Vector: []float64{1, 0}, ThemeID: "theme-a"}}
	got := NewMatcher(0.8, sequentialIDs()).Match([]float64{0, 1}, existing)
	assert.False(t, got.Matched)
	assert.Equal(t, "new-1", got.ThemeID)
}

func TestMatchZeroCandidateNeverJoins(t *testing.T) {
	t.Parallel()

	existing := []Entry{{Vector: []float64{1, 0}, ThemeID: "theme-a"}}
	got := NewMatcher(0.8, sequentialIDs()).Match([]float64{0, 0}, existing)
	assert.False(t, got.Matched)
	assert.Zero(t, got.Score)
}

func TestNewThemeIDIsRandom(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := NewThemeID()
		require.Len(t, id, 36)
		_, dup := seen[id]
		require.False(t, dup, "duplicate theme id %s", id)
		seen[id] = struct{}{}
	}
}
