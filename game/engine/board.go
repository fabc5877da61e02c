package engine

import (
	"math/rand"
	"time"
)

// Board is the fixed-size collection of cards for one game. The number of
// cards never changes after construction; only their order and flip state do.
type Board struct {
	cards []*Card
	rng   *rand.Rand
}

// BoardOption customises a Board
type BoardOption func(*Board)

// WithRand sets the random source used for shuffling
func WithRand(rng *rand.Rand) BoardOption {
	return func(b *Board) {
		b.rng = rng
	}
}

// NewBoard creates two face-down cards for every face
func NewBoard(faces []Face, opts ...BoardOption) *Board {
	b := &Board{
		cards: make([]*Card, 0, len(faces)*2),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for _, face := range faces {
		b.cards = append(b.cards, NewCard(face.Name, face.Image), NewCard(face.Name, face.Image))
	}
	return b
}

// Shuffle reorders the cards with two or three Fisher-Yates passes
func (b *Board) Shuffle() {
	passes := 2 + b.rng.Intn(2)
	for p := 0; p < passes; p++ {
		for i := len(b.cards) - 1; i > 0; i-- {
			j := b.rng.Intn(i + 1)
			b.cards[i], b.cards[j] = b.cards[j], b.cards[i]
		}
	}
}

// ColumnCount returns the grid width used to lay out the board. The result is
// always even unless it equals the number of cards.
func (b *Board) ColumnCount() int {
	return ColumnCount(len(b.cards))
}

// ColumnCount computes the layout width for n cards
func ColumnCount(n int) int {
	columns := n / 2
	if columns < 2 {
		columns = 2
	}
	if columns > n {
		columns = n
	}
	if columns%2 != 0 {
		if columns == n-1 {
			columns = n
		} else {
			columns--
		}
	}
	return columns
}

// ResetAll turns every card face-down without reordering
func (b *Board) ResetAll() {
	for _, card := range b.cards {
		card.FlipDown()
	}
}

// Cards returns the cards in board order
func (b *Board) Cards() []*Card {
	cards := make([]*Card, len(b.cards))
	copy(cards, b.cards)
	return cards
}

// Len returns the number of cards on the board
func (b *Board) Len() int {
	return len(b.cards)
}

// At returns the card at position i, or nil if i is out of range
func (b *Board) At(i int) *Card {
	if i < 0 || i >= len(b.cards) {
		return nil
	}
	return b.cards[i]
}

// IndexOf returns the board position of card, or -1 if it is not on the board
func (b *Board) IndexOf(card *Card) int {
	for i, c := range b.cards {
		if c == card {
			return i
		}
	}
	return -1
}

// replace swaps the board contents in place, keeping the random source
func (b *Board) replace(cards []*Card) {
	b.cards = cards
}
