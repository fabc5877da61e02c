package service

import (
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// SelectResult contains the result of a card selection
type SelectResult struct {
	Accepted  bool              `json:"accepted"`
	Index     int               `json:"index"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	// Events raised by this call, including a reset when one was requested
	Events []engine.Event `json:"events,omitempty"`
}

// HistoryOptions configures event history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
	// Ticks are left out unless asked for; they dominate the log otherwise
	IncludeTicks bool `json:"include_ticks"`
}

// HistoryResponse contains paginated event history
type HistoryResponse struct {
	Events      []engine.Event `json:"events"`
	TotalEvents int            `json:"total_events"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	TotalPages  int            `json:"total_pages"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// ConfigInfo provides information about a card set
type ConfigInfo struct {
	Filename       string  `json:"filename"`
	ConfigID       string  `json:"config_id"` // The identifier to use for session creation
	Name           string  `json:"name"`      // Display name
	Description    string  `json:"description"`
	Pairs          int     `json:"pairs"`
	Cards          int     `json:"cards"`
	Columns        int     `json:"columns"`
	FlipDurationMs float64 `json:"flip_duration_ms"`
}
