package dailyset

import (
	"encoding/json"
	"fmt"
)

// Card is one of the 81 cards of the deck. Shape, Color and Shading range
// over 0..2, Number over 1..3.
type Card struct {
	Shape   int
	Color   int
	Shading int
	Number  int
}

func (c Card) attrs() [4]int {
	return [4]int{c.Shape, c.Color, c.Shading, c.Number}
}

func (c Card) Valid() bool {
	return inRange(c.Shape, 0, 2) && inRange(c.Color, 0, 2) &&
		inRange(c.Shading, 0, 2) && inRange(c.Number, 1, 3)
}

func inRange(v, lo, hi int) bool { return v >= lo && v <= hi }

// MarshalJSON encodes the card as [shape, color, shading, number].
func (c Card) MarshalJSON() ([]byte, error) {
	a := c.attrs()
	return json.Marshal(a[:])
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var a []int
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a) != 4 {
		return fmt.Errorf("card needs 4 attributes, got %d", len(a))
	}
	*c = Card{Shape: a[0], Color: a[1], Shading: a[2], Number: a[3]}
	if !c.Valid() {
		return fmt.Errorf("card %v out of range", a)
	}
	return nil
}

// Deck returns the full deck in a fixed order.
func Deck() []Card {
	deck := make([]Card, 0, 81)
	for shape := 0; shape < 3; shape++ {
		for color := 0; color < 3; color++ {
			for shading := 0; shading < 3; shading++ {
				for number := 1; number <= 3; number++ {
					deck = append(deck, Card{Shape: shape, Color: color, Shading: shading, Number: number})
				}
			}
		}
	}
	return deck
}

// Triple is three cards, in the order they were selected.
type Triple [3]Card

func (t Triple) MarshalJSON() ([]byte, error) {
	return json.Marshal(t[:])
}

func (t *Triple) UnmarshalJSON(data []byte) error {
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return err
	}
	if len(cards) != 3 {
		return fmt.Errorf("triple needs 3 cards, got %d", len(cards))
	}
	copy(t[:], cards)
	return nil
}
