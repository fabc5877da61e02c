// Package config provides card set management for the memory game server.
//
// Card sets are JSON or YAML files in a directory. The file name without its
// extension is the config ID used when creating sessions. Each set defines:
//   - A display name and description
//   - The card faces (name plus an image hint); every face becomes a pair
//   - The flip duration in milliseconds
//   - Messages for welcome, match, mismatch and victory
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load specific card set
//	gameConfig, err := manager.LoadConfig("animals")
//
//	// List available card sets
//	configs, err := manager.ListConfigs()
//
// The default set is "classic" when present, otherwise the first valid file,
// otherwise the built-in programming languages deck.
package config
