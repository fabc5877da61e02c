// Package engine provides the core logic of the memory (card-matching) game.
//
// A Board holds two cards for every face of a card set. The GameEngine runs
// the game as a small state machine (Idle, Playing, Won): players flip two
// cards at a time, matching pairs stay face-up, mismatches turn back over
// after the flip duration, and the run is won once every card is matched.
//
// Core Types:
//
// Card and Board model the deck. GameEngine implements the Engine interface
// and owns all timing: a one second tick counts elapsed time, a 100ms poll
// detects completion, and pair evaluation is delayed by the flip duration.
// Delayed work goes through a Clock so tests can drive time by hand.
// GameConfig describes a card set loaded from JSON or YAML.
//
// Usage:
//
//	config, err := engine.LoadGameConfig("configs/classic.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer gameEngine.Close()
//
//	unsubscribe := gameEngine.Subscribe(func(ev engine.Event) {
//		fmt.Println(ev.Type, ev.Attempts)
//	})
//	defer unsubscribe()
//
//	gameEngine.SelectIndex(0)
//	gameEngine.SelectIndex(1)
//	state := gameEngine.GetState()
//
// Events are delivered in the order the state changed, outside the engine
// lock. Every Reset starts a new run with a new RunID; timers belonging to an
// earlier run never touch the new one.
package engine
