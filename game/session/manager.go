package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/metrics"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// EventSink receives every engine event of every session
type EventSink func(sessionID string, ev engine.Event)

// Option customises a Manager
type Option func(*Manager)

// WithEngineOptions applies opts to every engine the manager creates
func WithEngineOptions(opts ...engine.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithEventLogSize sets how many events each session keeps
func WithEventLogSize(size int) Option {
	return func(m *Manager) {
		m.eventLogSize = size
	}
}

// Manager handles game session lifecycle
type Manager struct {
	sessions     map[string]*service.Session
	persistence  SessionPersistence
	engineOpts   []engine.Option
	eventLogSize int
	logger       zerolog.Logger
	mu           sync.RWMutex

	sink   EventSink
	sinkMu sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:     make(map[string]*service.Session),
		eventLogSize: service.DefaultEventLogSize,
		logger:       log.With().Str("component", "sessions").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence, opts ...Option) *Manager {
	m := NewManager(opts...)
	m.persistence = persistence
	return m
}

// SetEventSink installs a receiver for engine events of all sessions
func (m *Manager) SetEventSink(sink EventSink) {
	m.sinkMu.Lock()
	defer m.sinkMu.Unlock()
	m.sink = sink
}

func (m *Manager) forward(sessionID string) func(engine.Event) {
	return func(ev engine.Event) {
		m.sinkMu.RLock()
		sink := m.sink
		m.sinkMu.RUnlock()
		if sink != nil {
			sink(sessionID, ev)
		}
	}
}

// adopt wires a session that was built elsewhere (e.g. loaded from disk)
func (m *Manager) adopt(session *service.Session) {
	if session.Events == nil {
		session.Events = service.NewEventLog(m.eventLogSize)
	}
	session.Attach()
	session.Watch(m.forward(session.ID))
}

// Create creates a new session with the given ID and configuration
func (m *Manager) Create(id string, config *engine.GameConfig) (*service.Session, error) {
	if id == "" {
		id = m.generateSessionID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	// Listeners go in at construction so the first render is recorded
	events := service.NewEventLog(m.eventLogSize)
	opts := append([]engine.Option{
		engine.WithListener(events.Record),
		engine.WithListener(m.forward(id)),
		engine.WithLogger(m.logger.With().Str("session", id).Logger()),
	}, m.engineOpts...)

	eng, err := engine.NewEngine(config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	now := time.Now()
	session := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		Events:         events,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	m.sessions[strings.ToLower(id)] = session
	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Set(float64(len(m.sessions)))

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			m.logger.Warn().Err(err).Str("session", id).Msg("failed to persist new session")
		}
	}

	m.logger.Info().Str("session", id).Str("config", config.Name).Msg("session created")
	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	// Try loading from persistence if not in memory
	if m.persistence != nil && m.persistence.Exists(id) {
		loaded, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// Another caller may have loaded it meanwhile
		if existing, ok := m.sessions[strings.ToLower(id)]; ok {
			loaded.Close()
			return existing, nil
		}
		m.adopt(loaded)
		m.sessions[strings.ToLower(id)] = loaded
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		return loaded, nil
	}

	return nil, ErrSessionNotFound
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id string, config *engine.GameConfig) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, config)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and storage, stopping its engine
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	inMemory := false

	if session, exists := m.sessions[lowerID]; exists {
		session.Close()
		delete(m.sessions, lowerID)
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		inMemory = true
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	session, exists := m.sessions[lowerID]
	if !exists {
		return ErrSessionNotFound
	}

	session.Close()
	delete(m.sessions, lowerID)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	m.mu.Unlock()

	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	return m.persistence.Save(session)
}

// CleanupExpiredSessions drops sessions that haven't been accessed within
// maxAge from memory and stops their engines. Persisted copies are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			session.Close()
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		m.logger.Info().Int("removed", removed).Msg("expired sessions cleaned up")
	}
	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every session's engine
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		session.Close()
	}
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	for {
		bytes := make([]byte, 2)
		rand.Read(bytes)
		id := hex.EncodeToString(bytes)

		m.mu.RLock()
		taken := m.sessionExists(id)
		m.mu.RUnlock()
		if !taken && (m.persistence == nil || !m.persistence.Exists(id)) {
			return id
		}
	}
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		if _, exists := m.sessions[strings.ToLower(id)]; exists {
			continue
		}

		session, err := m.persistence.Load(id)
		if err != nil {
			m.logger.Warn().Err(err).Str("session", id).Msg("failed to load persisted session")
			continue
		}

		m.adopt(session)
		m.sessions[strings.ToLower(id)] = session
		loadedCount++
	}

	if loadedCount > 0 {
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		m.logger.Info().Int("count", loadedCount).Msg("loaded persisted sessions")
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessions := m.List()

	errorCount := 0
	for _, session := range sessions {
		if err := m.persistence.Save(session); err != nil {
			m.logger.Warn().Err(err).Str("session", session.ID).Msg("failed to save session")
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}
