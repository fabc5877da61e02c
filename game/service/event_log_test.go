package service

import (
	"testing"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

func TestEventLog(t *testing.T) {
	log := NewEventLog(3)

	for i := 1; i <= 5; i++ {
		log.Record(engine.Event{Type: engine.EventTick, ElapsedSeconds: i})
	}

	if log.Len() != 3 {
		t.Fatalf("Expected 3 retained events, got %d", log.Len())
	}
	if log.Total() != 5 {
		t.Errorf("Expected total 5, got %d", log.Total())
	}

	events := log.Events()
	for i, ev := range events {
		if ev.ElapsedSeconds != i+3 {
			t.Errorf("Expected oldest-first order, got %d at %d", ev.ElapsedSeconds, i)
		}
	}
}

func TestEventLogSince(t *testing.T) {
	log := NewEventLog(4)
	log.Record(engine.Event{Type: engine.EventRender})
	cursor := log.Total()

	if got := log.Since(cursor); len(got) != 0 {
		t.Errorf("Expected nothing new, got %d", len(got))
	}

	log.Record(engine.Event{Type: engine.EventCardFlipped})
	log.Record(engine.Event{Type: engine.EventCardFlipped})

	got := log.Since(cursor)
	if len(got) != 2 || got[0].Type != engine.EventCardFlipped {
		t.Errorf("Expected 2 flips since cursor, got %+v", got)
	}

	// Cursor older than what is retained returns whatever is left
	for i := 0; i < 10; i++ {
		log.Record(engine.Event{Type: engine.EventTick})
	}
	if got := log.Since(0); len(got) != 4 {
		t.Errorf("Expected all 4 retained events, got %d", len(got))
	}
}

func TestNewEventLogDefaultSize(t *testing.T) {
	log := NewEventLog(0)
	for i := 0; i < DefaultEventLogSize+10; i++ {
		log.Record(engine.Event{})
	}
	if log.Len() != DefaultEventLogSize {
		t.Errorf("Expected %d events, got %d", DefaultEventLogSize, log.Len())
	}
}
