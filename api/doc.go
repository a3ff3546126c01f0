// Package api provides the HTTP surface of the guessing game.
//
// Game endpoints (all GET, JSON responses):
//   - /{username}/start - Start or restart a game
//   - /{username}/answer/{answer} - Answer with a code from 0 to 4
//   - /{username}/cancel - Undo the last answer
//
// Management endpoints:
//   - GET /api/sessions - List sessions, most recently used first
//   - GET /api/sessions/{id} - Get one session
//   - DELETE /api/sessions/{id} - Delete a session
//   - GET /api/sessions/{id}/qr - PNG QR code for the session URL
//   - GET /api/catalogs - List character catalogs
//   - GET /healthz - Liveness check
//   - GET /ws?session={id} - WebSocket stream of session events
//   - GET / - HTML documentation
//
// A username is a raw path segment and is matched exactly.
//
// Error Handling:
//
// Errors are returned as JSON with a single message field:
//
//	{"message": "No game session found for carol"}
//
// Status codes: 400 invalid answer, 404 unknown session, 409 game already
// won or nothing to cancel, 502 engine unavailable, 500 anything else.
//
// Usage:
//
//	server := api.NewServer(gameService, hub)
//	http.ListenAndServe(":3000", server)
package api
