package engine

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrUnavailable is returned when the engine cannot serve a request,
	// e.g. the upstream is down or a catalog cannot be loaded.
	ErrUnavailable = errors.New("guessing engine unavailable")

	// ErrNoAnswerToCancel is returned by Cancel when no answer has been given yet.
	ErrNoAnswerToCancel = errors.New("no answer to cancel")

	// ErrGameOver is returned by Answer once the engine has made its guess.
	ErrGameOver = errors.New("game is over")

	// ErrInvalidAnswer is returned for answer codes outside the closed set.
	ErrInvalidAnswer = errors.New("invalid answer")
)

// Engine starts guessing games. Implementations must be safe for concurrent use.
type Engine interface {
	Start(ctx context.Context, opts Options) (Game, error)
}

// Game is the opaque handle to one running game held by an Engine.
// A failed Answer or Cancel must leave the game in its previous state.
type Game interface {
	// State returns the most recent state without contacting the engine.
	State() State

	Answer(ctx context.Context, a Answer) (State, error)
	Cancel(ctx context.Context) (State, error)
}

// Func adapts a function to the Engine interface.
type Func func(ctx context.Context, opts Options) (Game, error)

// Start calls f(ctx, opts).
func (f Func) Start(ctx context.Context, opts Options) (Game, error) {
	return f(ctx, opts)
}
