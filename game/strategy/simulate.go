package strategy

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// ErrStuck is returned when the player has no card left to turn but the
// game is not won
var ErrStuck = errors.New("player has no move")

// Result summarises one simulated game
type Result struct {
	Attempts       int
	ElapsedSeconds int
	Selections     int
}

// Simulate plays config to victory with a Memory player on a manual clock.
// The board is shuffled from seed, so equal seeds replay the same game.
func Simulate(config *engine.GameConfig, seed int64) (*Result, error) {
	clock := engine.NewManualClock()
	eng, err := engine.NewEngineWithBoard(config,
		[]engine.BoardOption{engine.WithRand(rand.New(rand.NewSource(seed)))},
		engine.WithClock(clock),
		engine.WithLogger(zerolog.Nop()),
	)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	player := NewMemory()
	// Covers the comparison, the flip back and the next victory check
	settle := 2*eng.FlipDuration() + engine.PollInterval
	result := &Result{}

	for eng.Status() == engine.Playing {
		state := eng.GetState()
		player.Observe(state)

		index := player.Next(len(state.Cards))
		if index < 0 {
			clock.Advance(engine.PollInterval)
			if eng.Status() == engine.Playing {
				return nil, fmt.Errorf("%w after %d attempts", ErrStuck, eng.Attempts())
			}
			break
		}

		accepted, err := eng.SelectIndex(index)
		if err != nil {
			return nil, err
		}
		if !accepted {
			return nil, fmt.Errorf("selection of card %d was ignored", index)
		}
		result.Selections++
		player.Selected(index)
		player.Observe(eng.GetState())

		if !player.Waiting() {
			clock.Advance(settle)
		}
	}

	result.Attempts = eng.Attempts()
	result.ElapsedSeconds = eng.ElapsedSeconds()
	return result, nil
}
