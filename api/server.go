package api

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/wricardo/guess-game/game/engine"
	"github.com/wricardo/guess-game/game/service"
	"github.com/wricardo/guess-game/transport/websocket"
)

//go:embed docs.html
var docsHTML []byte

const qrSize = 320

// Server represents the HTTP API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil to disable live updates.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes. The /api routes are registered before
// the /{username} routes so they take precedence. Paths are matched in their
// escaped form so an identifier may contain an encoded slash; handlers read
// the decoded value through pathVar.
func (s *Server) setupRoutes() {
	s.router.UseEncodedPath()
	s.router.Use(requestIDMiddleware, accessLogMiddleware, recoveryMiddleware)

	s.router.HandleFunc("/", s.handleDocs).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/qr", s.handleSessionQR).Methods(http.MethodGet)
	api.HandleFunc("/catalogs", s.handleListCatalogs).Methods(http.MethodGet)
	api.HandleFunc("/catalogs", s.handleSaveCatalog).Methods(http.MethodPost)
	api.HandleFunc("/catalogs/refresh", s.handleRefreshCatalogs).Methods(http.MethodPost)
	api.HandleFunc("/catalogs/{name}", s.handleGetCatalog).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}/default", s.handleSetDefaultCatalog).Methods(http.MethodPost)

	// A trailing slash is accepted on the game routes.
	for _, suffix := range []string{"", "/"} {
		s.router.HandleFunc("/{username}/start"+suffix, s.handleStart).Methods(http.MethodGet)
		s.router.HandleFunc("/{username}/answer/{answer}"+suffix, s.handleAnswer).Methods(http.MethodGet)
		s.router.HandleFunc("/{username}/cancel"+suffix, s.handleCancel).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = unmatched(http.StatusNotFound, "Not found")
	s.router.MethodNotAllowedHandler = unmatched(http.StatusMethodNotAllowed, "Method not allowed")
}

// unmatched answers requests no route accepts. The router does not apply its
// middleware to these, so the request ID and access log are added here.
func unmatched(status int, message string) http.Handler {
	return requestIDMiddleware(accessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, status, message)
	})))
}

// pathVar returns the decoded route variable name.
func pathVar(r *http.Request, name string) string {
	raw := mux.Vars(r)[name]
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, messageResponse{Message: message})
}

// respondServiceError maps a service error to its status and body. id is the
// session or catalog the request named. Engine details stay in the log.
func respondServiceError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, fmt.Sprintf("No game session found for %s", id))
	case errors.Is(err, service.ErrInvalidAnswer):
		respondError(w, http.StatusBadRequest, "Invalid answer: use 0 (yes), 1 (no), 2 (don't know), 3 (probably) or 4 (probably not)")
	case errors.Is(err, service.ErrGameOver):
		respondError(w, http.StatusConflict, fmt.Sprintf("Game is already won for %s; cancel the last answer or start a new game", id))
	case errors.Is(err, service.ErrNothingToCancel):
		respondError(w, http.StatusConflict, fmt.Sprintf("No answer to cancel for %s", id))
	case errors.Is(err, service.ErrEngineUnavailable):
		respondError(w, http.StatusBadGateway, "Guessing engine unavailable")
	case errors.Is(err, service.ErrCatalogNotFound):
		respondError(w, http.StatusNotFound, fmt.Sprintf("Catalog %s not found", id))
	case errors.Is(err, service.ErrInvalidCatalog):
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid catalog: %v", err))
	case errors.Is(err, service.ErrCatalogsDisabled):
		respondError(w, http.StatusServiceUnavailable, "Catalogs are not available with this engine")
	default:
		log.Error().Err(err).Str("request_id", requestID(r.Context())).Str("id", id).Msg("Unhandled service error")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) broadcast(sessionID, event string, data interface{}) {
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, event, data)
	}
}

type questionResponse struct {
	Message  string `json:"message"`
	Question string `json:"question"`
	Progress int    `json:"progress"`
}

type answerResponse struct {
	Message  string `json:"message"`
	Question string `json:"question"`
	Progress int    `json:"progress"`
	Win      bool   `json:"win"`
}

type winResponse struct {
	Message         string `json:"message"`
	Win             bool   `json:"win"`
	SuggestionName  string `json:"suggestion_name"`
	SuggestionDesc  string `json:"suggestion_desc"`
	SuggestionPhoto string `json:"suggestion_photo"`
}

// Game Handlers

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	username := pathVar(r, "username")

	query := r.URL.Query()
	opts := engine.Options{
		Region:  query.Get("region"),
		Catalog: query.Get("catalog"),
	}
	if v := query.Get("child_mode"); v != "" {
		childMode, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid child_mode: use true or false")
			return
		}
		opts.ChildMode = childMode
	}

	started, err := s.service.StartGame(r.Context(), username, opts)
	if err != nil {
		respondServiceError(w, r, username, err)
		return
	}

	resp := questionResponse{
		Message:  fmt.Sprintf("Game started for %s", username),
		Question: started.Question,
		Progress: started.Progress,
	}
	s.broadcast(username, websocket.EventGameStarted, resp)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	username, raw := pathVar(r, "username"), pathVar(r, "answer")

	// Unparsable codes still go through the service so a missing session
	// wins over a bad code.
	answer, err := engine.ParseAnswer(raw)
	if err != nil {
		answer = engine.NoAnswer
	}

	result, err := s.service.SubmitAnswer(r.Context(), username, answer)
	if err != nil {
		respondServiceError(w, r, username, err)
		return
	}

	if result.Win {
		resp := winResponse{Message: "Congratulations!", Win: true}
		if result.Suggestion != nil {
			resp.SuggestionName = result.Suggestion.Name
			resp.SuggestionDesc = result.Suggestion.Description
			resp.SuggestionPhoto = result.Suggestion.PhotoURL
		}
		s.broadcast(username, websocket.EventGameWon, resp)
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp := answerResponse{
		Message:  fmt.Sprintf("Answered with %s", raw),
		Question: result.Question,
		Progress: result.Progress,
	}
	s.broadcast(username, websocket.EventAnswered, resp)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	username := pathVar(r, "username")

	result, err := s.service.CancelLastAnswer(r.Context(), username)
	if err != nil {
		respondServiceError(w, r, username, err)
		return
	}

	resp := questionResponse{
		Message:  "Cancelled the last answer",
		Question: result.Question,
		Progress: result.Progress,
	}
	s.broadcast(username, websocket.EventAnswerCancelled, resp)
	respondJSON(w, http.StatusOK, resp)
}

// Session Handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, r, "", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := pathVar(r, "id")

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, r, sessionID, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := pathVar(r, "id")

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, r, sessionID, err)
		return
	}

	s.broadcast(sessionID, websocket.EventSessionDeleted, nil)
	respondJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// handleSessionQR renders a PNG QR code pointing at the session's play URL.
func (s *Server) handleSessionQR(w http.ResponseWriter, r *http.Request) {
	sessionID := pathVar(r, "id")

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, r, sessionID, err)
		return
	}

	target := requestScheme(r) + "://" + r.Host + "/" + url.PathEscape(sessionID) + "/"

	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("QR generation failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// requestScheme is the scheme the client used. X-Forwarded-Proto from a
// proxy is honored only when it names http or https.
func requestScheme(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	switch proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto {
	case "http", "https":
		scheme = proto
	}
	return scheme
}

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	catalogs, err := s.service.ListCatalogs(r.Context())
	if err != nil {
		respondServiceError(w, r, "", err)
		return
	}

	respondJSON(w, http.StatusOK, catalogs)
}

// Catalog Handlers

const maxCatalogBytes = 4 << 20

type catalogSavedResponse struct {
	Message   string `json:"message"`
	CatalogID string `json:"catalog_id"`
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(pathVar(r, "name"), ".json")

	catalog, err := s.service.GetCatalog(r.Context(), name)
	if err != nil {
		respondServiceError(w, r, name, err)
		return
	}

	respondJSON(w, http.StatusOK, catalog)
}

// handleSaveCatalog stores the catalog in the body under ?id=, or under its
// name when id is absent.
func (s *Server) handleSaveCatalog(w http.ResponseWriter, r *http.Request) {
	var catalog engine.Catalog
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCatalogBytes)).Decode(&catalog); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		id = catalog.Name
	}
	id = strings.TrimSuffix(id, ".json")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Catalog id or name is required")
		return
	}

	if err := s.service.SaveCatalog(r.Context(), id, &catalog); err != nil {
		respondServiceError(w, r, id, err)
		return
	}

	respondJSON(w, http.StatusCreated, catalogSavedResponse{
		Message:   "Catalog saved",
		CatalogID: id,
	})
}

func (s *Server) handleSetDefaultCatalog(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(pathVar(r, "name"), ".json")

	if err := s.service.SetDefaultCatalog(r.Context(), name); err != nil {
		respondServiceError(w, r, name, err)
		return
	}

	respondJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Default catalog is now %s", name),
	})
}

func (s *Server) handleRefreshCatalogs(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RefreshCatalogs(r.Context()); err != nil {
		respondServiceError(w, r, "", err)
		return
	}

	respondJSON(w, http.StatusOK, messageResponse{Message: "Catalogs reloaded"})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session parameter required")
		return
	}
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "Live updates are disabled")
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(docsHTML)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
