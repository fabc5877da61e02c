// Package session keeps the live memory game sessions of the server.
//
// Each session owns one engine, an event log fed by that engine, and the
// card set it was created from. Sessions are addressed by short hex IDs
// (four characters when generated) and lookups ignore case.
//
// Engines run their own timers, so removing a session from the manager
// (Delete, DeleteFromMemory or CleanupExpiredSessions) always stops its
// engine. A manager created with NewManagerWithPersistence writes every new
// session to disk and transparently reloads sessions that are not in memory.
//
// Usage:
//
//	manager := session.NewManager()
//	manager.SetEventSink(func(id string, ev engine.Event) {
//		hub.Broadcast(id, ev)
//	})
//
//	sess, err := manager.Create("", config)
//	if err != nil {
//		return err
//	}
//	sess.Engine.SelectIndex(3)
package session
