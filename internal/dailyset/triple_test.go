package dailyset

import "testing"

func card(shape, color, shading, number int) Card {
	return Card{Shape: shape, Color: color, Shading: shading, Number: number}
}

func TestIsValidTriple(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Card
		want    bool
	}{
		{"all different, number same", card(0, 0, 0, 1), card(1, 1, 1, 1), card(2, 2, 2, 1), true},
		{"two colors", card(0, 0, 0, 1), card(1, 0, 0, 1), card(2, 2, 2, 1), false},
		{"all attributes different", card(0, 1, 2, 1), card(1, 2, 0, 2), card(2, 0, 1, 3), true},
		{"two numbers", card(0, 0, 0, 1), card(1, 1, 1, 1), card(2, 2, 2, 2), false},
		{"repeated card", card(0, 0, 0, 1), card(0, 0, 0, 1), card(0, 0, 0, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTriple(tt.a, tt.b, tt.c); got != tt.want {
				t.Errorf("IsValidTriple = %v, want %v", got, tt.want)
			}
			// Order of the three cards never matters.
			if got := IsValidTriple(tt.c, tt.a, tt.b); got != tt.want {
				t.Errorf("IsValidTriple (rotated) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindAllTriplesFullDeck(t *testing.T) {
	got := FindAllTriples(Deck())
	if len(got) != 1080 {
		t.Fatalf("triples in full deck = %d, want 1080", len(got))
	}
	for _, tr := range got {
		if !IsValidTriple(tr[0], tr[1], tr[2]) {
			t.Fatalf("invalid triple returned: %v", tr)
		}
	}
}

func TestFindAllTriplesDegenerate(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
	}{
		{"empty", nil},
		{"two cards", []Card{card(0, 0, 0, 1), card(1, 1, 1, 1)}},
		{"duplicates", []Card{card(0, 0, 0, 1), card(1, 1, 1, 1), card(2, 2, 2, 1), card(0, 0, 0, 1)}},
		{"no set", []Card{card(0, 0, 0, 1), card(0, 0, 0, 2), card(1, 0, 0, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindAllTriples(tt.cards); len(got) != 0 {
				t.Errorf("FindAllTriples = %v, want empty", got)
			}
			if HasTriple(tt.cards) {
				t.Error("HasTriple = true, want false")
			}
		})
	}
}

func TestDeck(t *testing.T) {
	deck := Deck()
	if len(deck) != 81 {
		t.Fatalf("deck size = %d, want 81", len(deck))
	}
	if hasDuplicates(deck) {
		t.Fatal("deck has duplicate cards")
	}
	for _, c := range deck {
		if !c.Valid() {
			t.Fatalf("card %+v out of range", c)
		}
	}
}
