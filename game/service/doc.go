// Package service coordinates guessing-game sessions.
//
// The service package implements:
//   - Starting a game for a client identifier, replacing any previous game
//   - Forwarding answers and cancels to the session's engine game
//   - Legality of transitions (no answers after a win)
//   - Mapping engine failures to service errors
//
// Core Interfaces:
//
// GameService is the operation surface used by every transport.
// SessionManager stores sessions and serializes work per identifier.
// CatalogManager stores the catalogs the simulated engine can play and picks
// the default one.
//
// State Machine:
//
//	active --answer--> active
//	active --winning answer--> won
//	active|won --cancel--> active
//	won --answer--> ErrGameOver
//
// A failed engine call leaves the session exactly as it was. Only a
// successful Engine.Start creates or replaces a session.
//
// Errors:
//
// ErrSessionNotFound, ErrInvalidAnswer, ErrEngineUnavailable, ErrGameOver and
// ErrNothingToCancel are returned wrapped; match them with errors.Is. Catalog
// operations add ErrCatalogNotFound, ErrInvalidCatalog and ErrCatalogsDisabled.
package service
