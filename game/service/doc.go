// Package service provides the business logic layer for the memory game.
//
// The service package implements:
//   - Multi-session game management
//   - Card set listing and loading
//   - Card selection and reset
//   - A bounded event log per session
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages card set loading and validation.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Each session owns its own engine with its own timers, and
// its EventLog is subscribed to that engine for the session's lifetime.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "animals")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.SelectCard(ctx, info.ID, 0, false)
//
// Event history:
//
// SelectCard returns the events raised by the call itself. Events raised
// later by timers (match, mismatch, flip back, victory, ticks) are read back
// with GetEventHistory.
package service
