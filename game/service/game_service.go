package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/guess-game/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Game flow
	StartGame(ctx context.Context, sessionID string, opts engine.Options) (*GameStarted, error)
	SubmitAnswer(ctx context.Context, sessionID string, answer engine.Answer) (*AnswerResult, error)
	CancelLastAnswer(ctx context.Context, sessionID string) (*CancelResult, error)

	// Session Management
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Catalogs
	ListCatalogs(ctx context.Context) ([]*CatalogInfo, error)
	GetCatalog(ctx context.Context, name string) (*engine.Catalog, error)
	SaveCatalog(ctx context.Context, name string, catalog *engine.Catalog) error
	SetDefaultCatalog(ctx context.Context, name string) error
	RefreshCatalogs(ctx context.Context) error
}

// SessionManager defines session storage operations. Lock serializes every
// operation on one identifier and returns the matching unlock function.
type SessionManager interface {
	Put(id string, session *Session) (replaced bool)
	Get(id string) (*Session, error)
	Delete(id string) error
	List() []*Session
	Lock(id string) (unlock func())
}

// CatalogManager provides the catalogs available to the simulated engine.
type CatalogManager interface {
	LoadCatalog(name string) (*engine.Catalog, error)
	ListCatalogs() ([]*CatalogInfo, error)
	GetDefault() *engine.Catalog
	SetDefault(name string) error
	SaveCatalog(name string, catalog *engine.Catalog) error
	RefreshCache() error
}

// Status of a session's game.
type Status string

const (
	StatusActive Status = "active"
	StatusWon    Status = "won"
)

// Session is one client's game. ID, Game, Options and CreatedAt never change
// after construction; the cached projection of the engine state is guarded by
// mu and only rewritten after a successful engine call.
type Session struct {
	ID        string
	Game      engine.Game
	Options   engine.Options
	CreatedAt time.Time

	mu             sync.RWMutex
	status         Status
	question       string
	progress       int
	suggestion     *engine.Suggestion
	answers        int
	lastAccessedAt time.Time
}

// NewSession wraps a started game.
func NewSession(id string, game engine.Game, opts engine.Options, now time.Time) *Session {
	s := &Session{
		ID:             id,
		Game:           game,
		Options:        opts,
		CreatedAt:      now,
		status:         StatusActive,
		lastAccessedAt: now,
	}
	if game != nil {
		s.apply(game.State(), 0)
	}
	return s
}

// Status returns the current game status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastAccessedAt returns the time of the most recent operation on the session.
func (s *Session) LastAccessedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessedAt
}

// Touch records an access at t.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	s.lastAccessedAt = t
	s.mu.Unlock()
}

// apply caches a successful engine response. delta adjusts the answer count.
func (s *Session) apply(state engine.State, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers += delta
	if s.answers < 0 {
		s.answers = 0
	}
	s.progress = state.Progress

	if state.Win {
		s.status = StatusWon
		s.question = ""
		if state.Suggestion != nil {
			sug := *state.Suggestion
			s.suggestion = &sug
		} else {
			s.suggestion = &engine.Suggestion{}
		}
		return
	}

	s.status = StatusActive
	s.question = state.Question
	s.suggestion = nil
}

// Info returns a point-in-time copy of the session.
func (s *Session) Info() *SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := &SessionInfo{
		ID:             s.ID,
		Status:         s.status,
		Question:       s.question,
		Progress:       s.progress,
		Answers:        s.answers,
		Options:        s.Options,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.lastAccessedAt,
	}
	if s.suggestion != nil {
		sug := *s.suggestion
		info.Suggestion = &sug
	}
	return info
}
