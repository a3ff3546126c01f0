// Package engine defines the guessing engine collaborator used by the game server.
//
// The engine itself is opaque to the rest of the system. It is reached through
// a narrow capability interface:
//   - Engine.Start begins a game and returns its Game handle
//   - Game.Answer submits one of the five answer codes
//   - Game.Cancel undoes the last answer
//   - Game.State inspects the latest question, progress and guess
//
// Implementations:
//
// Simulator plays locally over a Catalog of characters and yes/no questions.
// It is used for development, demos and tests.
//
// RemoteEngine forwards every call as JSON over HTTP to an upstream guessing
// service configured with ENGINE_URL.
//
// Usage:
//
//	eng := engine.NewSimulator(catalogs)
//	game, err := eng.Start(ctx, engine.Options{Region: "id"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	state, err := game.Answer(ctx, engine.Yes)
//	if state.Win {
//		fmt.Println(state.Suggestion.Name)
//	}
//
// Answer codes:
//
//	0 Yes, 1 No, 2 Don't know, 3 Probably, 4 Probably not
package engine
