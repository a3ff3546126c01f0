// Package websocket pushes live session events to WebSocket watchers.
//
// A Hub owns every connection. Clients subscribe to one session with
// /ws?session=<id> and receive one JSON message per event:
//
//	{"session_id": "alice", "event": "answered", "data": {...}, "timestamp": "..."}
//
// Events: game_started, answered, game_won, answer_cancelled, session_deleted.
// Messages from clients are ignored apart from control frames.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	hub.ServeWS(w, r, "alice")
//	hub.BroadcastEvent("alice", websocket.EventAnswered, payload)
package websocket
