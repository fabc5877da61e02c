package strategy

import (
	"testing"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

func state(cards ...engine.CardView) *engine.GameState {
	for i := range cards {
		cards[i].Index = i
	}
	return &engine.GameState{Cards: cards}
}

func TestMemory_StartsWithUnseenCards(t *testing.T) {
	m := NewMemory()

	if got := m.Next(4); got != 0 {
		t.Errorf("Expected first card 0, got %d", got)
	}

	m.Selected(0)
	m.Observe(state(engine.CardView{Identity: "A", Flipped: true}, engine.CardView{}, engine.CardView{}, engine.CardView{}))
	if got := m.Next(4); got != 1 {
		t.Errorf("Expected an unseen second card, got %d", got)
	}
}

func TestMemory_CompletesKnownTwin(t *testing.T) {
	m := NewMemory()
	// A mismatch showed A at 0 and B at 1
	m.Observe(state(
		engine.CardView{Identity: "A", Flipped: true},
		engine.CardView{Identity: "B", Flipped: true},
		engine.CardView{},
		engine.CardView{},
	))

	// Turning 2 reveals the second B, so its twin at 1 comes next
	m.Selected(2)
	m.Observe(state(
		engine.CardView{},
		engine.CardView{},
		engine.CardView{Identity: "B", Flipped: true},
		engine.CardView{},
	))
	if got := m.Next(4); got != 1 {
		t.Errorf("Expected twin at 1, got %d", got)
	}
	if m.Known() != 3 {
		t.Errorf("Expected 3 known cards, got %d", m.Known())
	}
}

func TestMemory_PrefersKnownPair(t *testing.T) {
	m := NewMemory()
	m.Observe(state(
		engine.CardView{Identity: "A"},
		engine.CardView{Identity: "B"},
		engine.CardView{Identity: "C"},
		engine.CardView{Identity: "B"},
		engine.CardView{},
		engine.CardView{},
	))

	if got := m.Next(6); got != 1 {
		t.Errorf("Expected first card of the known B pair, got %d", got)
	}
}

func TestMemory_SkipsMatched(t *testing.T) {
	m := NewMemory()
	m.Observe(state(
		engine.CardView{Identity: "A", Flipped: true, Matched: true},
		engine.CardView{Identity: "A", Flipped: true, Matched: true},
		engine.CardView{},
		engine.CardView{},
	))

	if got := m.Next(4); got != 2 {
		t.Errorf("Expected 2, got %d", got)
	}

	m.Observe(state(
		engine.CardView{Identity: "A", Matched: true},
		engine.CardView{Identity: "A", Matched: true},
		engine.CardView{Identity: "B", Matched: true},
		engine.CardView{Identity: "B", Matched: true},
	))
	if got := m.Next(4); got != -1 {
		t.Errorf("Expected no move on a solved board, got %d", got)
	}
}

func TestMemory_Reset(t *testing.T) {
	m := NewMemory()
	m.Selected(3)
	m.Observe(state(engine.CardView{Identity: "A"}))
	m.Reset()

	if m.Waiting() || m.Known() != 0 {
		t.Error("Expected a blank memory after Reset")
	}
}

func TestSimulate(t *testing.T) {
	config := engine.DefaultGameConfig()
	pairs := len(config.Cards)

	for seed := int64(1); seed <= 20; seed++ {
		result, err := Simulate(config, seed)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if result.Attempts < pairs || result.Attempts > 2*pairs-1 {
			t.Errorf("seed %d: attempts %d outside [%d, %d]", seed, result.Attempts, pairs, 2*pairs-1)
		}
		if result.Selections != 2*result.Attempts {
			t.Errorf("seed %d: expected two selections per attempt, got %d for %d", seed, result.Selections, result.Attempts)
		}
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	config := engine.DefaultGameConfig()

	a, err := Simulate(config, 42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Simulate(config, 42)
	if err != nil {
		t.Fatal(err)
	}
	if *a != *b {
		t.Errorf("Expected equal results for equal seeds, got %+v and %+v", a, b)
	}
}
