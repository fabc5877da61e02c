package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/memorygame/util/collections"
)

var (
	ErrCardIndexOutOfRange = errors.New("card index out of range")
	ErrEngineClosed        = errors.New("engine is closed")
	ErrInvalidState        = errors.New("invalid game state")
)

// Engine provides the main interface for game operations
type Engine interface {
	GetState() *GameState
	Snapshot() *GameState
	SetState(state *GameState) error
	Reset() (*GameState, error)
	Close()

	SelectCard(card *Card) bool
	SelectIndex(index int) (bool, error)

	Subscribe(listener func(Event)) (unsubscribe func())

	Status() Status
	Attempts() int
	ElapsedSeconds() int
	RunID() string
	Warning() *ConfigurationWarning
	Board() *Board
	GetConfig() *GameConfig
}

// Option customises a GameEngine
type Option func(*GameEngine)

// WithClock replaces the clock used for delayed work
func WithClock(clock Clock) Option {
	return func(e *GameEngine) {
		e.clock = clock
	}
}

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *GameEngine) {
		e.logger = logger
	}
}

// WithListener subscribes listener before the first run starts, so it also
// sees the events raised during construction
func WithListener(listener func(Event)) Option {
	return func(e *GameEngine) {
		e.nextSubID++
		e.subscribers = append(e.subscribers, subscriber{id: e.nextSubID, fn: listener})
	}
}

// WithConfig attaches the card set whose messages the engine reports
func WithConfig(config *GameConfig) Option {
	return func(e *GameEngine) {
		e.config = config
	}
}

type subscriber struct {
	id int
	fn func(Event)
}

// GameEngine implements the Engine interface. All mutation happens under a
// single mutex; delayed work captures the run generation and is discarded
// once the generation moves on.
type GameEngine struct {
	mu sync.Mutex

	board  *Board
	config *GameConfig
	clock  Clock
	logger zerolog.Logger

	flipDurationMs float64
	flipDuration   time.Duration
	warning        *ConfigurationWarning

	status     Status
	runID      string
	generation uint64
	closed     bool
	attempts   int
	elapsed    int
	message    string
	pending    []*Card
	matched    collections.Set[*Card]

	timers    collections.Set[Timer]
	tickTimer Timer
	pollTimer Timer

	subscribers []subscriber
	nextSubID   int
	queue       []Event
	flushing    bool
}

// New creates an engine over board and starts the first run
func New(board *Board, flipDurationMs float64, opts ...Option) *GameEngine {
	e := &GameEngine{
		board:   board,
		clock:   RealClock{},
		logger:  log.With().Str("component", "engine").Logger(),
		status:  Idle,
		matched: collections.NewSet[*Card](),
		timers:  collections.NewSet[Timer](),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config == nil {
		e.config = DefaultGameConfig()
	}

	e.flipDurationMs, e.warning = ClampFlipDuration(flipDurationMs)
	e.flipDuration = time.Duration(e.flipDurationMs * float64(time.Millisecond))

	e.mu.Lock()
	e.startLocked()
	e.emitLocked(Event{Type: EventRender})
	if e.warning != nil {
		e.logger.Warn().Err(e.warning).Msg("flip duration replaced")
		e.emitLocked(Event{Type: EventWarning, Message: e.warning.Error()})
	}
	e.unlockAndFlush()

	return e
}

// NewEngine creates an engine from a validated card set
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	return NewEngineWithBoard(config, nil, opts...)
}

// NewEngineWithBoard is NewEngine with options for the underlying board
func NewEngineWithBoard(config *GameConfig, boardOpts []BoardOption, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}
	board := NewBoard(config.Faces(), boardOpts...)
	opts = append([]Option{WithConfig(config)}, opts...)
	return New(board, config.FlipDurationMs, opts...), nil
}

// startLocked begins a fresh run: new generation, shuffled face-down board,
// zeroed counters, and the periodic tasks
func (e *GameEngine) startLocked() {
	e.stopTimersLocked()
	e.generation++
	e.runID = uuid.NewString()
	e.attempts = 0
	e.elapsed = 0
	e.pending = e.pending[:0]
	e.matched.Clear()
	e.message = e.config.Messages.Welcome

	e.board.Shuffle()
	e.board.ResetAll()

	e.status = Playing
	e.scheduleTickLocked()
	e.schedulePollLocked()

	e.logger.Debug().Str("run_id", e.runID).Int("cards", e.board.Len()).Msg("run started")
}

// SelectCard flips card and records it as part of the current pair. It
// returns false when the selection is ignored.
func (e *GameEngine) SelectCard(card *Card) bool {
	e.mu.Lock()
	accepted := e.selectLocked(card)
	e.unlockAndFlush()
	return accepted
}

// SelectIndex selects the card at a board position
func (e *GameEngine) SelectIndex(index int) (bool, error) {
	e.mu.Lock()
	card := e.board.At(index)
	if card == nil {
		n := e.board.Len()
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %d (board has %d cards)", ErrCardIndexOutOfRange, index, n)
	}
	accepted := e.selectLocked(card)
	e.unlockAndFlush()
	return accepted, nil
}

func (e *GameEngine) selectLocked(card *Card) bool {
	if e.closed || e.status != Playing || card == nil {
		return false
	}
	if len(e.pending) >= 2 || card.IsFlipped() {
		return false
	}
	index := e.board.IndexOf(card)
	if index < 0 {
		return false
	}

	card.ToggleFlip()
	e.pending = append(e.pending, card)
	e.emitLocked(Event{Type: EventCardFlipped, Cards: []int{index}})

	if len(e.pending) == 2 {
		e.attempts++
		first, second := e.pending[0], e.pending[1]
		e.emitLocked(Event{Type: EventPairCompleted, Cards: e.indexesLocked(first, second)})
		e.scheduleLocked(e.flipDuration, func() {
			e.evaluateLocked(first, second)
		})
	}
	return true
}

func (e *GameEngine) evaluateLocked(first, second *Card) {
	e.pending = e.pending[:0]
	cards := e.indexesLocked(first, second)

	if first.Matches(second) {
		e.matched.Add(first)
		e.matched.Add(second)
		e.message = e.config.Messages.Match
		e.emitLocked(Event{Type: EventMatch, Cards: cards, Message: e.message})
		return
	}

	e.message = e.config.Messages.Mismatch
	e.emitLocked(Event{Type: EventMismatch, Cards: cards, Message: e.message})
	e.scheduleLocked(e.flipDuration, func() {
		first.FlipDown()
		second.FlipDown()
		e.emitLocked(Event{Type: EventFlipBack, Cards: cards})
	})
}

func (e *GameEngine) scheduleTickLocked() {
	e.tickTimer = e.scheduleLocked(TickInterval, func() {
		if e.status != Playing {
			return
		}
		e.elapsed++
		e.emitLocked(Event{Type: EventTick})
		e.scheduleTickLocked()
	})
}

func (e *GameEngine) schedulePollLocked() {
	e.pollTimer = e.scheduleLocked(PollInterval, func() {
		if e.status != Playing {
			return
		}
		if e.board.Len() > 0 && e.matched.Len() == e.board.Len() {
			e.winLocked()
			return
		}
		e.schedulePollLocked()
	})
}

func (e *GameEngine) winLocked() {
	e.status = Won
	e.stopTimerLocked(e.tickTimer)
	e.stopTimerLocked(e.pollTimer)
	e.tickTimer, e.pollTimer = nil, nil
	e.message = e.config.VictoryMessage(e.attempts)

	e.logger.Info().Str("run_id", e.runID).Int("attempts", e.attempts).Int("elapsed", e.elapsed).Msg("game won")
	e.emitLocked(Event{Type: EventVictory, Message: e.message})
}

// scheduleLocked runs task under the engine lock after d, unless the run has
// changed or the engine was closed in the meantime
func (e *GameEngine) scheduleLocked(d time.Duration, task func()) Timer {
	generation := e.generation
	var timer Timer
	timer = e.clock.AfterFunc(d, func() {
		e.mu.Lock()
		e.timers.Remove(timer)
		if e.closed || generation != e.generation {
			e.mu.Unlock()
			return
		}
		task()
		e.unlockAndFlush()
	})
	e.timers.Add(timer)
	return timer
}

func (e *GameEngine) stopTimerLocked(timer Timer) {
	if timer == nil {
		return
	}
	timer.Stop()
	e.timers.Remove(timer)
}

func (e *GameEngine) stopTimersLocked() {
	for _, timer := range e.timers.Values() {
		timer.Stop()
	}
	e.timers.Clear()
	e.tickTimer, e.pollTimer = nil, nil
}

// Reset abandons the current run and starts a new one
func (e *GameEngine) Reset() (*GameState, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.startLocked()
	e.emitLocked(Event{Type: EventReset}, Event{Type: EventRender})
	state := e.stateLocked(false)
	e.unlockAndFlush()
	return state, nil
}

// Close stops all outstanding timers. The engine ignores further input.
func (e *GameEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.stopTimersLocked()
	e.logger.Debug().Str("run_id", e.runID).Msg("engine closed")
}

// Subscribe registers a listener for engine events. Listeners are called in
// order, outside the engine lock.
func (e *GameEngine) Subscribe(listener func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSubID++
	id := e.nextSubID
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: listener})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, sub := range e.subscribers {
				if sub.id == id {
					e.subscribers = append(e.subscribers[:i:i], e.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *GameEngine) emitLocked(events ...Event) {
	now := time.Now()
	for _, event := range events {
		event.RunID = e.runID
		event.Attempts = e.attempts
		event.ElapsedSeconds = e.elapsed
		event.Timestamp = now
		e.queue = append(e.queue, event)
	}
}

// unlockAndFlush releases the engine lock and delivers queued events. Only one
// goroutine delivers at a time; events queued by others (or by listeners
// re-entering the engine) are picked up by the active deliverer, so ordering
// matches the order of state transitions.
func (e *GameEngine) unlockAndFlush() {
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	for len(e.queue) > 0 {
		batch := e.queue
		e.queue = nil
		subscribers := make([]subscriber, len(e.subscribers))
		copy(subscribers, e.subscribers)
		e.mu.Unlock()

		for _, event := range batch {
			for _, sub := range subscribers {
				sub.fn(event)
			}
		}

		e.mu.Lock()
	}
	e.flushing = false
	e.mu.Unlock()
}

func (e *GameEngine) indexesLocked(cards ...*Card) []int {
	indexes := make([]int, len(cards))
	for i, card := range cards {
		indexes[i] = e.board.IndexOf(card)
	}
	return indexes
}

// GetState returns a snapshot of the current run. Face values of face-down
// cards are hidden.
func (e *GameEngine) GetState() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(false)
}

// Snapshot is GetState including the full deck, for persistence
func (e *GameEngine) Snapshot() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(true)
}

func (e *GameEngine) stateLocked(withDeck bool) *GameState {
	cards := e.board.Cards()
	state := &GameState{
		RunID:          e.runID,
		Status:         e.status,
		Attempts:       e.attempts,
		ElapsedSeconds: e.elapsed,
		Elapsed:        FormatElapsed(e.elapsed),
		Columns:        e.board.ColumnCount(),
		Cards:          make([]CardView, len(cards)),
		TotalCards:     len(cards),
		MatchedCards:   e.matched.Len(),
		PendingCards:   len(e.pending),
		FlipDurationMs: int(e.flipDurationMs),
		GameOver:       e.status == Won,
		Victory:        e.status == Won,
		Message:        e.message,
		ConfigName:     e.config.Name,
	}
	if e.warning != nil {
		state.Warning = e.warning.Error()
	}

	for i, card := range cards {
		view := CardView{
			Index:   i,
			Flipped: card.IsFlipped(),
			Matched: e.matched.Contains(card),
		}
		if view.Flipped {
			view.Identity = card.Identity()
			view.Image = card.Image()
		}
		state.Cards[i] = view
	}

	if withDeck {
		state.Deck = make([]PersistedCard, len(cards))
		for i, card := range cards {
			state.Deck[i] = PersistedCard{
				Identity: card.Identity(),
				Image:    card.Image(),
				Matched:  e.matched.Contains(card),
			}
		}
	}
	return state
}

// SetState restores a snapshot taken with Snapshot. Pending selections are
// not restored; their cards come back face-down.
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if len(state.Deck) != e.board.Len() {
		e.mu.Unlock()
		return fmt.Errorf("%w: deck has %d cards, board has %d", ErrInvalidState, len(state.Deck), e.board.Len())
	}
	counts := make(map[string]int, len(state.Deck)/2)
	for _, pc := range state.Deck {
		counts[pc.Identity]++
	}
	for identity, n := range counts {
		if n != 2 {
			e.mu.Unlock()
			return fmt.Errorf("%w: identity '%s' appears %d times", ErrInvalidState, identity, n)
		}
	}

	e.stopTimersLocked()
	e.generation++

	cards := make([]*Card, len(state.Deck))
	e.matched.Clear()
	for i, pc := range state.Deck {
		card := NewCard(pc.Identity, pc.Image)
		if pc.Matched {
			card.ToggleFlip()
			e.matched.Add(card)
		}
		cards[i] = card
	}
	e.board.replace(cards)

	e.pending = e.pending[:0]
	e.runID = state.RunID
	if e.runID == "" {
		e.runID = uuid.NewString()
	}
	e.attempts = state.Attempts
	e.elapsed = state.ElapsedSeconds
	e.message = state.Message

	if e.matched.Len() == e.board.Len() {
		e.status = Won
	} else {
		e.status = Playing
		e.scheduleTickLocked()
		e.schedulePollLocked()
	}

	e.emitLocked(Event{Type: EventRender})
	e.unlockAndFlush()
	return nil
}

// Status returns the lifecycle stage of the current run
func (e *GameEngine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Attempts returns the number of completed pair selections
func (e *GameEngine) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// ElapsedSeconds returns the seconds counted by the tick task
func (e *GameEngine) ElapsedSeconds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

// RunID identifies the current run; it changes on every Reset
func (e *GameEngine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Warning returns the configuration warning raised at construction, if any
func (e *GameEngine) Warning() *ConfigurationWarning {
	return e.warning
}

// FlipDuration returns the effective flip duration
func (e *GameEngine) FlipDuration() time.Duration {
	return e.flipDuration
}

// Board returns the engine's board
func (e *GameEngine) Board() *Board {
	return e.board
}

// GetConfig returns the card set the engine was built from
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// IsMatched reports whether card belongs to a matched pair
func (e *GameEngine) IsMatched(card *Card) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matched.Contains(card)
}

// PendingCount returns how many cards are waiting for pair evaluation
func (e *GameEngine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
