package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// RemoteConfig configures a RemoteEngine from the environment.
type RemoteConfig struct {
	URL     string        `env:"ENGINE_URL"`
	Timeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"10s"`
}

// LoadRemoteConfig parses RemoteConfig from environment variables.
func LoadRemoteConfig() (RemoteConfig, error) {
	var cfg RemoteConfig
	if err := env.Parse(&cfg); err != nil {
		return RemoteConfig{}, errors.Wrap(err, "parse engine env")
	}
	return cfg, nil
}

// LoadDefaultOptions parses the default game Options from environment variables.
func LoadDefaultOptions() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Options{}, errors.Wrap(err, "parse engine options env")
	}
	return opts, nil
}

// errConflict marks an upstream 409; callers translate it to a domain error.
var errConflict = errors.New("upstream conflict")

// RemoteEngine talks JSON over HTTP to an upstream guessing service.
type RemoteEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteEngine creates a RemoteEngine for cfg.URL.
func NewRemoteEngine(cfg RemoteConfig) (*RemoteEngine, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote engine: ENGINE_URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, errors.Wrap(err, "remote engine: invalid ENGINE_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &RemoteEngine{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type startRequest struct {
	Region    string `json:"region"`
	ChildMode bool   `json:"child_mode"`
}

type answerRequest struct {
	Answer int `json:"answer"`
}

type wireState struct {
	Question        string  `json:"question"`
	Progress        float64 `json:"progress"`
	Step            int     `json:"step"`
	Win             bool    `json:"win"`
	SuggestionName  string  `json:"suggestion_name,omitempty"`
	SuggestionDesc  string  `json:"suggestion_desc,omitempty"`
	SuggestionPhoto string  `json:"suggestion_photo,omitempty"`
}

func (w wireState) toState() State {
	progress := int(math.Round(w.Progress))
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	s := State{
		Question: w.Question,
		Progress: progress,
		Step:     w.Step,
		Win:      w.Win,
	}
	if w.Win {
		s.Question = ""
		s.Suggestion = &Suggestion{
			Name:        w.SuggestionName,
			Description: w.SuggestionDesc,
			PhotoURL:    w.SuggestionPhoto,
		}
	}
	return s
}

type startResponse struct {
	SessionID string    `json:"session_id"`
	State     wireState `json:"state"`
}

type stateResponse struct {
	State wireState `json:"state"`
}

// Start opens a game on the upstream service.
func (e *RemoteEngine) Start(ctx context.Context, opts Options) (Game, error) {
	var resp startResponse
	body := startRequest{Region: opts.Region, ChildMode: opts.ChildMode}
	if err := e.call(ctx, "/sessions", body, &resp); err != nil {
		if errors.Is(err, errConflict) {
			return nil, errors.Wrap(ErrUnavailable, "start rejected by upstream")
		}
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, errors.Wrap(ErrUnavailable, "upstream returned no session id")
	}

	return &remoteGame{
		engine: e,
		id:     resp.SessionID,
		state:  resp.State.toState(),
	}, nil
}

func (e *RemoteEngine) call(ctx context.Context, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "%s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return errConflict
	}
	if resp.StatusCode >= 400 {
		return errors.Wrapf(ErrUnavailable, "%s: upstream status %d", path, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.Wrapf(ErrUnavailable, "%s: decode response: %v", path, err)
		}
	}
	return nil
}

type remoteGame struct {
	engine *RemoteEngine
	id     string

	mu    sync.Mutex
	state State
}

func (g *remoteGame) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *remoteGame) Answer(ctx context.Context, a Answer) (State, error) {
	if !a.Valid() {
		return State{}, errors.Wrapf(ErrInvalidAnswer, "%d", int(a))
	}

	var resp stateResponse
	path := "/sessions/" + url.PathEscape(g.id) + "/answers"
	if err := g.engine.call(ctx, path, answerRequest{Answer: int(a)}, &resp); err != nil {
		if errors.Is(err, errConflict) {
			return State{}, ErrGameOver
		}
		return State{}, err
	}

	return g.update(resp.State.toState()), nil
}

func (g *remoteGame) Cancel(ctx context.Context) (State, error) {
	var resp stateResponse
	path := "/sessions/" + url.PathEscape(g.id) + "/cancel"
	if err := g.engine.call(ctx, path, nil, &resp); err != nil {
		if errors.Is(err, errConflict) {
			return State{}, ErrNoAnswerToCancel
		}
		return State{}, err
	}

	return g.update(resp.State.toState()), nil
}

func (g *remoteGame) update(s State) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
	return s
}
