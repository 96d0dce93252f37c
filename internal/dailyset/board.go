package dailyset

import (
	"math/rand/v2"
	"sort"
)

const (
	BoardSize = 12

	strictAttempts  = 200
	relaxedAttempts = 10
)

// Board is the ordered list of cards in play.
type Board []Card

func (b Board) Clone() Board {
	return append(Board(nil), b...)
}

// Pick returns the cards at the given indices. Indices must be exactly three
// unique values within bounds.
func (b Board) Pick(indices []int) (Triple, error) {
	if len(indices) != 3 {
		return Triple{}, ErrInvalidIndices
	}
	var t Triple
	for n, i := range indices {
		if i < 0 || i >= len(b) {
			return Triple{}, ErrInvalidIndices
		}
		for _, prev := range indices[:n] {
			if prev == i {
				return Triple{}, ErrInvalidIndices
			}
		}
		t[n] = b[i]
	}
	return t, nil
}

// Without returns a copy of the board with the given indices removed,
// removing from the highest index down so earlier positions do not shift.
func (b Board) Without(indices []int) Board {
	desc := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(desc)))
	out := b.Clone()
	for _, i := range desc {
		out = append(out[:i], out[i+1:]...)
	}
	return out
}

// Seed reads the digits of date as one integer: "2025-09-01" → 20250901.
func Seed(date string) uint64 {
	var seed uint64
	for _, r := range date {
		if r >= '0' && r <= '9' {
			seed = seed*10 + uint64(r-'0')
		}
	}
	return seed
}

// GenerateBoard builds the board for date. The result depends on date only.
//
// Draws are taken from the front of a repeatedly shuffled deck. The first
// draw with a set and all three shapes wins; failing that, the first draw with
// a set; failing that, the last draw.
func GenerateBoard(date string) Board {
	seed := Seed(date)
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	deck := Deck()

	shuffle(src, deck)
	for range strictAttempts {
		draw := deck[:BoardSize]
		if HasTriple(draw) && hasAllShapes(draw) {
			return Board(draw).Clone()
		}
		shuffle(src, deck)
	}

	draw := deck[:BoardSize]
	for range relaxedAttempts {
		if HasTriple(draw) {
			break
		}
		shuffle(src, deck)
		draw = deck[:BoardSize]
	}
	return Board(draw).Clone()
}

// shuffle is a Fisher-Yates pass driven by src alone, so a date maps to the
// same board on every build.
func shuffle(src *rand.PCG, cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := int(src.Uint64() % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func hasAllShapes(cards []Card) bool {
	var seen [3]bool
	for _, c := range cards {
		if c.Shape >= 0 && c.Shape < 3 {
			seen[c.Shape] = true
		}
	}
	return seen[0] && seen[1] && seen[2]
}
