package engine

import "time"

// Status is the lifecycle stage of a game run
type Status string

const (
	Idle    Status = "idle"
	Playing Status = "playing"
	Won     Status = "won"
)

const (
	// Flip duration bounds in milliseconds
	MinFlipDurationMs     = 350
	MaxFlipDurationMs     = 3000
	DefaultFlipDurationMs = 1000

	// Validation constants
	MinPairs = 2
	MaxPairs = 32

	TickInterval = time.Second
	PollInterval = 100 * time.Millisecond
)

// Face describes one card identity and how to display it
type Face struct {
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// CardView is the externally visible state of a single board position.
// Identity and Image are only filled in for face-up cards.
type CardView struct {
	Index    int    `json:"index"`
	Identity string `json:"identity,omitempty"`
	Image    string `json:"image,omitempty"`
	Flipped  bool   `json:"flipped"`
	Matched  bool   `json:"matched"`
}

// PersistedCard keeps the full card state for persistence
type PersistedCard struct {
	Identity string `json:"identity"`
	Image    string `json:"image,omitempty"`
	Matched  bool   `json:"matched"`
}

// GameState represents a snapshot of a game run
type GameState struct {
	RunID          string     `json:"run_id"`
	Status         Status     `json:"status"`
	Attempts       int        `json:"attempts"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	Elapsed        string     `json:"elapsed"`
	Columns        int        `json:"columns"`
	Cards          []CardView `json:"cards"`
	TotalCards     int        `json:"total_cards"`
	MatchedCards   int        `json:"matched_cards"`
	PendingCards   int        `json:"pending_cards"`
	FlipDurationMs int        `json:"flip_duration_ms"`
	GameOver       bool       `json:"game_over"`
	Victory        bool       `json:"victory"`
	Message        string     `json:"message"`
	ConfigName     string     `json:"config_name"`
	Warning        string     `json:"warning,omitempty"`

	// Deck holds every card in board order, face values included. It is only
	// populated by Snapshot and is used to restore persisted sessions.
	Deck []PersistedCard `json:"deck,omitempty"`
}

// EventType identifies what happened inside the engine
type EventType string

const (
	EventRender        EventType = "render"
	EventCardFlipped   EventType = "card_flipped"
	EventPairCompleted EventType = "pair_completed"
	EventMatch         EventType = "match"
	EventMismatch      EventType = "mismatch"
	EventFlipBack      EventType = "flip_back"
	EventTick          EventType = "tick"
	EventVictory       EventType = "victory"
	EventReset         EventType = "reset"
	EventWarning       EventType = "warning"
)

// Event is emitted to subscribers after every state transition
type Event struct {
	Type           EventType `json:"type"`
	RunID          string    `json:"run_id"`
	Cards          []int     `json:"cards,omitempty"`
	Attempts       int       `json:"attempts"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
