// Package websocket pushes live game updates to browsers.
//
// A Hub keeps the connected clients of every session. Engine events are
// handed to the hub with PublishEvent, which never blocks, so it can be used
// directly as an engine listener. The hub's Run loop owns the client map and
// is the only goroutine that touches it.
//
// Outgoing messages are JSON:
//
//	{"session_id":"ab12","event":"mismatch","data":{...},"game_state":{...}}
//
// With a StateProvider configured, every message except ticks carries a
// fresh state snapshot and a client receives a "state_update" as soon as it
// connects. Incoming messages are ignored.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithStateProvider(stateOf))
//	go hub.Run(ctx)
//	sessions.SetEventSink(hub.PublishEvent)
package websocket
