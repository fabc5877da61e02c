package engine

import "fmt"

// Card is one face-down/face-up tile. Its identity is shared with exactly one
// other card on the same board.
type Card struct {
	identity string
	image    string
	flipped  bool
}

// NewCard creates a face-down card
func NewCard(identity, image string) *Card {
	return &Card{identity: identity, image: image}
}

func (c *Card) String() string {
	return fmt.Sprintf("Card(%s, flipped=%v)", c.identity, c.flipped)
}

// Identity returns the card's face value
func (c *Card) Identity() string {
	return c.identity
}

// Image returns the display hint for the card face
func (c *Card) Image() string {
	return c.image
}

// IsFlipped reports whether the card is face-up
func (c *Card) IsFlipped() bool {
	return c.flipped
}

// ToggleFlip turns the card over
func (c *Card) ToggleFlip() {
	c.flipped = !c.flipped
}

// FlipDown turns the card face-down regardless of its current state
func (c *Card) FlipDown() {
	c.flipped = false
}

// Matches reports whether both cards carry the same identity
func (c *Card) Matches(other *Card) bool {
	if other == nil {
		return false
	}
	return c.identity == other.identity
}
