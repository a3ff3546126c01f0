// Package mcp exposes the guessing game to AI agents over the Model Context
// Protocol.
//
// The Client registers one tool per play operation and forwards every call
// to the REST API, so an agent and a browser playing the same username see
// the same game:
//   - start_game: start or restart a game for a username
//   - answer_question: submit an answer code (0-4)
//   - cancel_answer: undo the last answer
//   - get_session, list_sessions: inspect running games
//   - list_catalogs: list character catalogs
//   - game_instructions: rules and answer codes
//
// The MCP server can be served over stdio or mounted on the HTTP server at
// POST /mcp.
//
//	client := mcp.NewClient("http://localhost:3000")
//	server.ServeStdio(client.GetMCPServer())
package mcp
