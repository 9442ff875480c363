package domain

// Tally accumulates atomic field comparisons. It is an immutable value:
// combining two tallies produces a new one.
type Tally struct {
	Matches     int `json:"matches"`
	Comparisons int `json:"comparisons"`
}

// Match returns a tally of one successful comparison.
func Match() Tally { return Tally{Matches: 1, Comparisons: 1} }

// Mismatch returns a tally of one failed comparison.
func Mismatch() Tally { return Tally{Comparisons: 1} }

// Mismatches returns a tally of n failed comparisons.
func Mismatches(n int) Tally {
	if n < 0 {
		n = 0
	}
	return Tally{Comparisons: n}
}

// MatchIf returns Match when ok is true and Mismatch otherwise.
func MatchIf(ok bool) Tally {
	if ok {
		return Match()
	}
	return Mismatch()
}

// Combine returns the element-wise sum of t and other.
func (t Tally) Combine(other Tally) Tally {
	return Tally{
		Matches:     t.Matches + other.Matches,
		Comparisons: t.Comparisons + other.Comparisons,
	}
}

// Fraction returns matches over comparisons. A tally with no comparisons
// has nothing that failed and reports 1.
func (t Tally) Fraction() float64 {
	if t.Comparisons == 0 {
		return 1
	}
	return float64(t.Matches) / float64(t.Comparisons)
}

// Complete reports whether every comparison matched.
func (t Tally) Complete() bool { return t.Matches == t.Comparisons }

// SumTallies combines any number of tallies.
func SumTallies(tallies ...Tally) Tally {
	var total Tally
	for _, t := range tallies {
		total = total.Combine(t)
	}
	return total
}
