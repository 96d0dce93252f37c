package dailyset

// IsValidTriple reports whether a, b and c form a set: on every attribute the
// three values are either all equal or pairwise distinct. Three cards with a
// repeated card never form a set.
func IsValidTriple(a, b, c Card) bool {
	if a == b || a == c || b == c {
		return false
	}
	x, y, z := a.attrs(), b.attrs(), c.attrs()
	for i := range x {
		allSame := x[i] == y[i] && y[i] == z[i]
		allDiff := x[i] != y[i] && y[i] != z[i] && x[i] != z[i]
		if !allSame && !allDiff {
			return false
		}
	}
	return true
}

// FindAllTriples returns every set on the board, in combination order.
// Boards with fewer than 3 cards or with a repeated card yield nil.
func FindAllTriples(cards []Card) []Triple {
	if len(cards) < 3 || hasDuplicates(cards) {
		return nil
	}
	var out []Triple
	for i := 0; i < len(cards)-2; i++ {
		for j := i + 1; j < len(cards)-1; j++ {
			for k := j + 1; k < len(cards); k++ {
				if IsValidTriple(cards[i], cards[j], cards[k]) {
					out = append(out, Triple{cards[i], cards[j], cards[k]})
				}
			}
		}
	}
	return out
}

// HasTriple is FindAllTriples without collecting the results.
func HasTriple(cards []Card) bool {
	if len(cards) < 3 || hasDuplicates(cards) {
		return false
	}
	for i := 0; i < len(cards)-2; i++ {
		for j := i + 1; j < len(cards)-1; j++ {
			for k := j + 1; k < len(cards); k++ {
				if IsValidTriple(cards[i], cards[j], cards[k]) {
					return true
				}
			}
		}
	}
	return false
}

func hasDuplicates(cards []Card) bool {
	seen := make(map[Card]struct{}, len(cards))
	for _, c := range cards {
		if _, ok := seen[c]; ok {
			return true
		}
		seen[c] = struct{}{}
	}
	return false
}
