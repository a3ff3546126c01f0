package service

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrEngineUnavailable = errors.New("guessing engine unavailable")
	ErrGameOver          = errors.New("game is already over")
	ErrNothingToCancel   = errors.New("no answer to cancel")

	ErrCatalogNotFound  = errors.New("catalog not found")
	ErrInvalidCatalog   = errors.New("invalid catalog")
	ErrCatalogsDisabled = errors.New("catalogs are not served by this engine")
)
