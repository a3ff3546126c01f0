package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/guess-game/game/engine"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	catalogs CatalogManager
	engine   engine.Engine
	defaults engine.Options
	now      func() time.Time
}

// NewGameService creates a new game service instance. catalogs may be nil
// when the engine does not play from local catalogs.
func NewGameService(sessions SessionManager, catalogs CatalogManager, eng engine.Engine, defaults engine.Options) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		catalogs: catalogs,
		engine:   eng,
		defaults: defaults,
		now:      time.Now,
	}
}

// StartGame starts a new game for sessionID, replacing any previous one.
// The registry is only touched once the engine has accepted the start.
func (s *gameServiceImpl) StartGame(ctx context.Context, sessionID string, opts engine.Options) (*GameStarted, error) {
	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	opts = opts.Merge(s.defaults)

	game, err := s.engine.Start(ctx, opts)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("Engine failed to start game")
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	sess := NewSession(sessionID, game, opts, s.now())
	replaced := s.sessions.Put(sessionID, sess)
	if replaced {
		log.Info().Str("session", sessionID).Msg("Replaced existing session")
	}

	info := sess.Info()
	log.Debug().Str("session", sessionID).Str("catalog", opts.Catalog).Bool("child_mode", opts.ChildMode).Msg("Game started")

	return &GameStarted{
		SessionID: sessionID,
		Question:  info.Question,
		Progress:  info.Progress,
		Replaced:  replaced,
	}, nil
}

// SubmitAnswer forwards an answer to the session's game. The session is
// looked up before the code is checked, so an unknown user is
// ErrSessionNotFound whatever the answer.
func (s *gameServiceImpl) SubmitAnswer(ctx context.Context, sessionID string, answer engine.Answer) (*AnswerResult, error) {
	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if !answer.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAnswer, int(answer))
	}

	if sess.Status() == StatusWon {
		sess.Touch(s.now())
		return nil, ErrGameOver
	}

	state, err := sess.Game.Answer(ctx, answer)
	if err != nil {
		return nil, s.engineError(sessionID, "answer", err)
	}
	sess.apply(state, 1)
	sess.Touch(s.now())

	result := &AnswerResult{
		SessionID: sessionID,
		Answer:    answer,
		Win:       state.Win,
	}
	if state.Win {
		result.Suggestion = sess.Info().Suggestion
		log.Info().Str("session", sessionID).Str("suggestion", result.Suggestion.Name).Msg("Game won")
		return result, nil
	}

	result.Question = state.Question
	result.Progress = state.Progress
	return result, nil
}

// CancelLastAnswer undoes the last accepted answer. Cancelling the winning
// answer reopens the game.
func (s *gameServiceImpl) CancelLastAnswer(ctx context.Context, sessionID string) (*CancelResult, error) {
	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	state, err := sess.Game.Cancel(ctx)
	if err != nil {
		return nil, s.engineError(sessionID, "cancel", err)
	}
	sess.apply(state, -1)
	sess.Touch(s.now())

	info := sess.Info()
	return &CancelResult{
		SessionID: sessionID,
		Question:  info.Question,
		Progress:  info.Progress,
	}, nil
}

// engineError maps an engine failure to a service error. Domain outcomes
// pass through; anything else is an unavailable engine.
func (s *gameServiceImpl) engineError(sessionID, op string, err error) error {
	switch {
	case errors.Is(err, engine.ErrGameOver):
		return ErrGameOver
	case errors.Is(err, engine.ErrNoAnswerToCancel):
		return ErrNothingToCancel
	case errors.Is(err, engine.ErrInvalidAnswer):
		return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	log.Error().Err(err).Str("session", sessionID).Str("op", op).Msg("Engine call failed")
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Touch(s.now())
	return sess.Info(), nil
}

// ListSessions returns all sessions, most recently used first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sess.Info())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].LastAccessedAt.Equal(result[j].LastAccessedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].LastAccessedAt.After(result[j].LastAccessedAt)
	})
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	log.Info().Str("session", sessionID).Msg("Session deleted")
	return nil
}

// ListCatalogs returns the catalogs available to the engine
func (s *gameServiceImpl) ListCatalogs(ctx context.Context) ([]*CatalogInfo, error) {
	if s.catalogs == nil {
		return []*CatalogInfo{}, nil
	}
	catalogs, err := s.catalogs.ListCatalogs()
	if err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}
	if catalogs == nil {
		catalogs = []*CatalogInfo{}
	}
	return catalogs, nil
}

// GetCatalog loads one catalog by name
func (s *gameServiceImpl) GetCatalog(ctx context.Context, name string) (*engine.Catalog, error) {
	if s.catalogs == nil {
		return nil, ErrCatalogsDisabled
	}
	c, err := s.catalogs.LoadCatalog(name)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", name, err)
	}
	return c, nil
}

// SaveCatalog validates and stores a catalog. Games already running keep the
// catalog they started with.
func (s *gameServiceImpl) SaveCatalog(ctx context.Context, name string, catalog *engine.Catalog) error {
	if s.catalogs == nil {
		return ErrCatalogsDisabled
	}
	if catalog == nil {
		return fmt.Errorf("save catalog %s: %w", name, ErrInvalidCatalog)
	}
	if err := s.catalogs.SaveCatalog(name, catalog); err != nil {
		return fmt.Errorf("save catalog %s: %w", name, err)
	}
	log.Info().Str("catalog", name).Int("characters", len(catalog.Characters)).Msg("Catalog saved")
	return nil
}

// SetDefaultCatalog selects the catalog used by games started without one
func (s *gameServiceImpl) SetDefaultCatalog(ctx context.Context, name string) error {
	if s.catalogs == nil {
		return ErrCatalogsDisabled
	}
	if err := s.catalogs.SetDefault(name); err != nil {
		return fmt.Errorf("set default catalog %s: %w", name, err)
	}
	log.Info().Str("catalog", name).Msg("Default catalog changed")
	return nil
}

// RefreshCatalogs drops cached catalogs so edits on disk are picked up
func (s *gameServiceImpl) RefreshCatalogs(ctx context.Context) error {
	if s.catalogs == nil {
		return ErrCatalogsDisabled
	}
	if err := s.catalogs.RefreshCache(); err != nil {
		return fmt.Errorf("refresh catalogs: %w", err)
	}
	return nil
}
