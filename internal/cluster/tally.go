package cluster

// Tally counts theme votes and remembers the order in which themes first
// received a vote.
type Tally struct {
	counts map[string]int
	order  []string
}

func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

func (t *Tally) Vote(themeID string) {
	if _, seen := t.counts[themeID]; !seen {
		t.order = append(t.order, themeID)
	}
	t.counts[themeID]++
}

func (t *Tally) Len() int {
	return len(t.order)
}

func (t *Tally) Count(themeID string) int {
	return t.counts[themeID]
}

// Winner returns the theme with the most votes. On a tie the theme that was
// voted for first wins. ok is false when no votes were cast.
func (t *Tally) Winner() (themeID string, votes int, ok bool) {
	for _, id := range t.order {
		if c := t.counts[id]; c > votes {
			themeID, votes = id, c
		}
	}
	return themeID, votes, votes > 0
}
