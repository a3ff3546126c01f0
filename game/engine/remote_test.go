package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream is a minimal guessing service speaking the remote wire format.
type fakeUpstream struct {
	mu       sync.Mutex
	answers  []int
	started  startRequest
	failNext int
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failNext != 0 {
			w.WriteHeader(f.failNext)
			f.failNext = 0
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.started)
		writeJSON(w, startResponse{SessionID: "up-1", State: wireState{Question: "Q0", Progress: 0}})
	})
	mux.HandleFunc("/sessions/up-1/answers", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failNext != 0 {
			w.WriteHeader(f.failNext)
			f.failNext = 0
			return
		}
		var req answerRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.answers = append(f.answers, req.Answer)
		if len(f.answers) >= 2 {
			writeJSON(w, stateResponse{State: wireState{
				Win:             true,
				Progress:        97.6,
				Step:            2,
				SuggestionName:  "Ada Lovelace",
				SuggestionDesc:  "Mathematician",
				SuggestionPhoto: "https://example.com/ada.jpg",
			}})
			return
		}
		writeJSON(w, stateResponse{State: wireState{Question: "Q1", Progress: 42.4, Step: 1}})
	})
	mux.HandleFunc("/sessions/up-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.answers) == 0 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.answers = f.answers[:len(f.answers)-1]
		writeJSON(w, stateResponse{State: wireState{Question: "Q0", Step: 0}})
	})
	return mux
}

func (f *fakeUpstream) lastStart() startRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeUpstream) recorded() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.answers...)
}

func (f *fakeUpstream) fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = status
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newRemote(t *testing.T, up *fakeUpstream) *RemoteEngine {
	t.Helper()
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	eng, err := NewRemoteEngine(RemoteConfig{URL: srv.URL + "/", Timeout: time.Second})
	require.NoError(t, err)
	return eng
}

func TestNewRemoteEngine_Validation(t *testing.T) {
	_, err := NewRemoteEngine(RemoteConfig{})
	assert.Error(t, err)

	_, err = NewRemoteEngine(RemoteConfig{URL: "not a url"})
	assert.Error(t, err)

	eng, err := NewRemoteEngine(RemoteConfig{URL: "http://localhost:9000/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", eng.baseURL)
	assert.Equal(t, 10*time.Second, eng.httpClient.Timeout)
}

func TestRemoteEngine_Flow(t *testing.T) {
	ctx := context.Background()
	up := &fakeUpstream{}
	eng := newRemote(t, up)

	g, err := eng.Start(ctx, Options{Region: "en", ChildMode: true})
	require.NoError(t, err)
	assert.Equal(t, "Q0", g.State().Question)
	assert.Equal(t, startRequest{Region: "en", ChildMode: true}, up.lastStart())

	_, err = g.Cancel(ctx)
	assert.True(t, errors.Is(err, ErrNoAnswerToCancel))

	s, err := g.Answer(ctx, ProbablyNot)
	require.NoError(t, err)
	assert.Equal(t, "Q1", s.Question)
	assert.Equal(t, 42, s.Progress)
	assert.Equal(t, []int{4}, up.recorded())

	s, err = g.Answer(ctx, Yes)
	require.NoError(t, err)
	assert.True(t, s.Win)
	assert.Equal(t, 98, s.Progress)
	require.NotNil(t, s.Suggestion)
	assert.Equal(t, Suggestion{Name: "Ada Lovelace", Description: "Mathematician", PhotoURL: "https://example.com/ada.jpg"}, *s.Suggestion)
	assert.True(t, g.State().Win)

	s, err = g.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Q0", s.Question)
	assert.False(t, g.State().Win)
}

func TestRemoteEngine_UpstreamErrors(t *testing.T) {
	ctx := context.Background()
	up := &fakeUpstream{}
	eng := newRemote(t, up)

	up.fail(http.StatusInternalServerError)
	_, err := eng.Start(ctx, Options{})
	assert.True(t, errors.Is(err, ErrUnavailable))

	up.fail(http.StatusConflict)
	_, err = eng.Start(ctx, Options{})
	assert.True(t, errors.Is(err, ErrUnavailable))

	g, err := eng.Start(ctx, Options{})
	require.NoError(t, err)

	up.fail(http.StatusBadGateway)
	_, err = g.Answer(ctx, Yes)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, "Q0", g.State().Question, "failed answer must keep the cached state")

	up.fail(http.StatusConflict)
	_, err = g.Answer(ctx, Yes)
	assert.True(t, errors.Is(err, ErrGameOver))

	_, err = g.Answer(ctx, Answer(-1))
	assert.True(t, errors.Is(err, ErrInvalidAnswer))
}

func TestRemoteEngine_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	eng, err := NewRemoteEngine(RemoteConfig{URL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), Options{})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestLoadRemoteConfig(t *testing.T) {
	t.Setenv("ENGINE_URL", "http://engine.internal:8000")
	t.Setenv("ENGINE_TIMEOUT", "3s")

	cfg, err := LoadRemoteConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://engine.internal:8000", cfg.URL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)

	t.Setenv("ENGINE_TIMEOUT", "soon")
	_, err = LoadRemoteConfig()
	assert.Error(t, err)
}

func TestLoadDefaultOptions(t *testing.T) {
	opts, err := LoadDefaultOptions()
	require.NoError(t, err)
	assert.Equal(t, "id", opts.Region)
	assert.False(t, opts.ChildMode)

	t.Setenv("ENGINE_REGION", "en")
	t.Setenv("ENGINE_CHILD_MODE", "true")
	t.Setenv("ENGINE_CATALOG", "classic")
	opts, err = LoadDefaultOptions()
	require.NoError(t, err)
	assert.Equal(t, Options{Region: "en", ChildMode: true, Catalog: "classic"}, opts)
}
