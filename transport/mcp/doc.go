// Package mcp provides the Model Context Protocol server for the memory game.
//
// The server is a thin client: every tool call is forwarded to the REST API
// and the JSON response is rendered as text for the agent.
//
// MCP Tools:
//   - create_session, list_sessions, get_session: session management
//   - game_state: board grid with [?] for face-down and (Name) for matched cards
//   - select_card: turn a card face-up by index, optionally resetting first
//   - reset_game: shuffle and start a new run
//   - event_history: paginated engine events
//   - list_configs: available card sets
//   - game_instructions: rules and strategy
//   - list_currencies, convert_currency: exchange rates through the server
//
// Transport Modes:
//
// The server can be served over stdio for local MCP clients, or mounted on
// the HTTP server at /mcp:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
