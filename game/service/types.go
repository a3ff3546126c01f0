package service

import (
	"time"

	"github.com/wricardo/guess-game/game/engine"
)

// GameStarted is the result of StartGame.
type GameStarted struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Progress  int    `json:"progress"`
	Replaced  bool   `json:"replaced"`
}

// AnswerResult is the result of SubmitAnswer. Question and Progress are only
// meaningful when Win is false; Suggestion is only set when Win is true.
type AnswerResult struct {
	SessionID  string             `json:"session_id"`
	Answer     engine.Answer      `json:"answer"`
	Win        bool               `json:"win"`
	Question   string             `json:"question,omitempty"`
	Progress   int                `json:"progress,omitempty"`
	Suggestion *engine.Suggestion `json:"suggestion,omitempty"`
}

// CancelResult is the result of CancelLastAnswer.
type CancelResult struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Progress  int    `json:"progress"`
}

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	Status         Status             `json:"status"`
	Question       string             `json:"question,omitempty"`
	Progress       int                `json:"progress"`
	Suggestion     *engine.Suggestion `json:"suggestion,omitempty"`
	Answers        int                `json:"answers"`
	Options        engine.Options     `json:"options"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
}

// CatalogInfo describes a catalog file
type CatalogInfo struct {
	Filename    string `json:"filename"`
	CatalogID   string `json:"catalog_id"` // identifier to pass as the start "catalog" option
	Name        string `json:"name"`
	Description string `json:"description"`
	Characters  int    `json:"characters"`
	Questions   int    `json:"questions"`
}
