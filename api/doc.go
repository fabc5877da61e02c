// Package api provides the HTTP REST API of the memory game server.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "animals"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/sessions/unified - Several sessions in one response
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session and stop its timers
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current board, face-down cards hidden
//   - POST /api/sessions/{id}/select - Select a card ({"index": 3, "reset": false})
//   - POST /api/sessions/{id}/reset - Shuffle and start a new run
//   - GET /api/sessions/{id}/events - Engine events (?page&limit&order&ticks=true)
//
// Configuration:
//   - GET /api/configs - List card sets
//   - GET /api/configs/{name} - Get a card set
//   - POST /api/configs - Save a card set
//
// Currency:
//   - GET /api/currencies - Supported currencies
//   - GET /api/convert?amount=100&from=EUR&to=USD[&date=2024-01-31]
//
// Other:
//   - GET /ws?session={id} - WebSocket stream of engine events
//   - GET /metrics - Prometheus metrics
//   - GET /health - Liveness check
//
// Errors are returned as JSON with an HTTP status matching the cause:
//
//	{"error": "session not found: ..."}
//
// Unknown sessions and card sets give 404, malformed input 400, and a
// failing exchange-rate API 502.
package api
