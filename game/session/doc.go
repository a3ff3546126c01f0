// Package session provides the in-memory session registry for the guessing game.
//
// The session package implements:
//   - One session per client identifier, with last-start-wins replacement
//   - Exact, case-sensitive identifier matching
//   - Per-identifier serialization through Manager.Lock
//   - Idle session cleanup
//
// Concurrency:
//
// The session map is guarded by a RWMutex held only for map access. Work on
// a session, including the engine round trip, runs under Lock(id), so two
// requests for the same identifier run one at a time while requests for
// different identifiers proceed in parallel. Lock entries are reference
// counted and removed when no goroutine holds or waits for them.
//
// Usage:
//
//	manager := session.NewManager()
//
//	unlock := manager.Lock("alice")
//	defer unlock()
//
//	sess, err := manager.Get("alice")
//	if errors.Is(err, service.ErrSessionNotFound) {
//		// no game started for alice
//	}
//
// Sessions live for the lifetime of the process unless deleted explicitly or
// removed by CleanupExpiredSessions.
package session
