package cluster

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// DefaultThreshold is the minimum cosine similarity for joining an existing theme.
const DefaultThreshold = 0.8

// Entry is one stored (embedding, theme id) pair.
type Entry struct {
	Vector  []float64
	ThemeID string
	// Seq is the store's insertion sequence (thesis_id). Matching ignores it.
	Seq int64
}

// Decision is the outcome of matching one candidate vector.
type Decision struct {
	ThemeID string
	// Score is the best cosine similarity seen, 0 when nothing was comparable.
	Score float64
	// Matched is true when ThemeID is an existing theme.
	Matched bool
}

// IDFunc mints theme identifiers.
type IDFunc func() string

// NewThemeID returns a random UUIDv4 string.
func NewThemeID() string {
	return uuid.NewString()
}

// Matcher decides theme membership for candidate vectors.
type Matcher struct {
	threshold float64
	newID     IDFunc
}

// NewMatcher builds a Matcher. A nil newID uses NewThemeID.
func NewMatcher(threshold float64, newID IDFunc) *Matcher {
	if newID == nil {
		newID = NewThemeID
	}
	return &Matcher{threshold: threshold, newID: newID}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match compares candidate with every valid entry. The best score wins; among
// equal scores the earliest entry in existing wins. A best score at or above the
// threshold joins that theme, otherwise a new theme id is minted. Entries with a
// blank theme id, a different dimension or non-finite components are ignored.
func (m *Matcher) Match(candidate []float64, existing []Entry) Decision {
	bestIdx := -1
	bestScore := 0.0
	for i, entry := range existing {
		if !usableEntry(candidate, entry) {
			continue
		}
		score := Cosine(candidate, entry.Vector)
		if bestIdx < 0 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if bestIdx >= 0 && bestScore >= m.threshold {
		return Decision{
			ThemeID: existing[bestIdx].ThemeID,
			Score:   bestScore,
			Matched: true,
		}
	}
	return Decision{
		ThemeID: m.newID(),
		Score:   bestScore,
		Matched: false,
	}
}

// Match is the package-level form of Matcher.Match with random theme ids.
func Match(candidate []float64, existing []Entry, threshold float64) Decision {
	return NewMatcher(threshold, nil).Match(candidate, existing)
}

func usableEntry(candidate []float64, entry Entry) bool {
	if strings.TrimSpace(entry.ThemeID) == "" {
		return false
	}
	if len(entry.Vector) == 0 || len(entry.Vector) != len(candidate) {
		return false
	}
	for _, value := range entry.Vector {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}
