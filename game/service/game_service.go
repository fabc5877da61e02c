package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	SelectCard(ctx context.Context, sessionID string, index int, reset bool) (*SelectResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetEventHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.GameConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles card set loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Config         *engine.GameConfig
	Events         *EventLog
	CreatedAt      time.Time
	LastAccessedAt time.Time

	closers []func()
}

// Attach creates the session's event log if needed and subscribes it to
// the engine
func (s *Session) Attach() {
	if s.Events == nil {
		s.Events = NewEventLog(DefaultEventLogSize)
	}
	s.Watch(s.Events.Record)
}

// Watch subscribes listener to the session's engine until Close
func (s *Session) Watch(listener func(engine.Event)) {
	s.closers = append(s.closers, s.Engine.Subscribe(listener))
}

// Close detaches listeners and stops the engine's timers
func (s *Session) Close() {
	for _, unsubscribe := range s.closers {
		unsubscribe()
	}
	s.closers = nil
	s.Engine.Close()
}
