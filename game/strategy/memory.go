// Package strategy holds players that choose which card to turn next.
package strategy

import (
	"sort"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/util/collections"
)

// Memory is a player with perfect recall. It turns an unseen card first and
// completes the pair with the twin whenever it has already seen it, so every
// card is turned face-up at most twice.
type Memory struct {
	seen    map[int]string
	matched collections.Set[int]
	first   int
}

// NewMemory returns a player that has seen nothing yet
func NewMemory() *Memory {
	m := &Memory{}
	m.Reset()
	return m
}

// Reset forgets everything, for a new run
func (m *Memory) Reset() {
	m.seen = make(map[int]string)
	m.matched = collections.NewSet[int]()
	m.first = -1
}

// Observe records every face-up identity and every matched card in state
func (m *Memory) Observe(state *engine.GameState) {
	if state == nil {
		return
	}
	for _, card := range state.Cards {
		if card.Identity != "" {
			m.seen[card.Index] = card.Identity
		}
		if card.Matched {
			m.matched.Add(card.Index)
		}
	}
}

// Selected records an accepted selection
func (m *Memory) Selected(index int) {
	if m.first < 0 {
		m.first = index
		return
	}
	m.first = -1
}

// Waiting reports whether the first card of a pair is face-up and the
// second one has not been chosen yet
func (m *Memory) Waiting() bool {
	return m.first >= 0
}

// Known returns the number of cards whose face has been seen
func (m *Memory) Known() int {
	return len(m.seen)
}

// Next returns the index to select on a board of n cards, or -1 when every
// card is matched
func (m *Memory) Next(n int) int {
	if m.first >= 0 {
		if twin := m.twinOf(m.first); twin >= 0 {
			return twin
		}
		return m.unseen(n)
	}

	if pair := m.knownPair(); pair >= 0 {
		return pair
	}
	return m.unseen(n)
}

func (m *Memory) twinOf(index int) int {
	identity, ok := m.seen[index]
	if !ok {
		return -1
	}
	for _, i := range m.seenIndexes() {
		if i != index && m.seen[i] == identity && !m.matched.Contains(i) {
			return i
		}
	}
	return -1
}

// knownPair returns the first card of a seen but unmatched pair
func (m *Memory) knownPair() int {
	firstSeen := make(map[string]int)
	for _, i := range m.seenIndexes() {
		if m.matched.Contains(i) {
			continue
		}
		identity := m.seen[i]
		if j, ok := firstSeen[identity]; ok {
			return j
		}
		firstSeen[identity] = i
	}
	return -1
}

func (m *Memory) unseen(n int) int {
	for i := 0; i < n; i++ {
		if i == m.first || m.matched.Contains(i) {
			continue
		}
		if _, ok := m.seen[i]; !ok {
			return i
		}
	}
	return -1
}

func (m *Memory) seenIndexes() []int {
	indexes := make([]int, 0, len(m.seen))
	for i := range m.seen {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}
