package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/guess-game/api"
	"github.com/wricardo/guess-game/game/engine"
	"github.com/wricardo/guess-game/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Guess Game Server" {
		t.Errorf("Expected app name %q, got %q", "Guess Game Server", AppName)
	}
}

// parseArgs runs the app with args and returns the resolved configuration
// instead of starting a server.
func parseArgs(t *testing.T, args ...string) appConfig {
	t.Helper()

	var cfg appConfig
	capture := func(ctx context.Context, cmd *cli.Command) error {
		cfg = loadConfig(cmd)
		return nil
	}

	app := newApp()
	app.Action = capture
	for _, sub := range app.Commands {
		sub.Action = capture
	}

	if err := app.Run(context.Background(), append([]string{"guess-game"}, args...)); err != nil {
		t.Fatalf("Run(%v) failed: %v", args, err)
	}
	return cfg
}

func TestFlagDefaults(t *testing.T) {
	cfg := parseArgs(t)

	if cfg.Port != 3000 {
		t.Errorf("Expected default port 3000, got %d", cfg.Port)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Expected default host localhost, got %q", cfg.Host)
	}
	if cfg.CatalogDir != "catalogs" {
		t.Errorf("Expected default catalog dir catalogs, got %q", cfg.CatalogDir)
	}
	if cfg.Engine != "simulator" {
		t.Errorf("Expected default engine simulator, got %q", cfg.Engine)
	}
	if cfg.SessionTTL != 0 {
		t.Errorf("Expected session TTL disabled by default, got %v", cfg.SessionTTL)
	}
	if cfg.NgrokEnable {
		t.Error("Expected ngrok disabled by default")
	}
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("NGROK_ENABLED", "true")
	t.Setenv("NGROK_AUTH_TOKEN", "tok")

	cfg := parseArgs(t)

	if cfg.Port != 4100 {
		t.Errorf("Expected port 4100, got %d", cfg.Port)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("Expected session TTL 30m, got %v", cfg.SessionTTL)
	}
	if !cfg.NgrokEnable || cfg.NgrokToken != "tok" {
		t.Errorf("Expected ngrok enabled with token, got %+v", cfg)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "4100")

	cfg := parseArgs(t, "--port", "5000", "--engine", "remote", "server")

	if cfg.Port != 5000 {
		t.Errorf("Expected flag port 5000, got %d", cfg.Port)
	}
	if cfg.Engine != "remote" {
		t.Errorf("Expected engine remote, got %q", cfg.Engine)
	}
}

func TestMCPCommandAPIURL(t *testing.T) {
	cfg := parseArgs(t, "mcp", "--api-url", "http://127.0.0.1:9999")

	if cfg.APIURL != "http://127.0.0.1:9999" {
		t.Errorf("Expected api url from flag, got %q", cfg.APIURL)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}

	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoopbackURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"localhost", "http://localhost:3000"},
		{"0.0.0.0", "http://127.0.0.1:3000"},
		{"", "http://127.0.0.1:3000"},
	}

	for _, tt := range tests {
		cfg := appConfig{Host: tt.host, Port: 3000}
		if got := cfg.loopbackURL(); got != tt.want {
			t.Errorf("loopbackURL() with host %q = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestReapInterval(t *testing.T) {
	if got := reapInterval(100 * time.Millisecond); got != time.Second {
		t.Errorf("Expected lower bound 1s, got %v", got)
	}
	if got := reapInterval(10 * time.Minute); got != 5*time.Minute {
		t.Errorf("Expected half the TTL, got %v", got)
	}
	if got := reapInterval(48 * time.Hour); got != time.Hour {
		t.Errorf("Expected upper bound 1h, got %v", got)
	}
}

func TestBuildEngine(t *testing.T) {
	if _, err := buildEngine("simulator", nil); err != nil {
		t.Errorf("Expected simulator engine, got error: %v", err)
	}
	if _, err := buildEngine("quantum", nil); err == nil {
		t.Error("Expected error for unknown engine")
	}

	t.Setenv("ENGINE_URL", "")
	if _, err := buildEngine("remote", nil); err == nil {
		t.Error("Expected error for remote engine without ENGINE_URL")
	}

	t.Setenv("ENGINE_URL", "http://engine.local:8000")
	if _, err := buildEngine("remote", nil); err != nil {
		t.Errorf("Expected remote engine, got error: %v", err)
	}
}

func writeCatalog(t *testing.T, dir string) {
	t.Helper()
	data, err := json.Marshal(engine.DefaultCatalog())
	if err != nil {
		t.Fatalf("Failed to marshal catalog: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "classic.json"), data, 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
}

func TestInitializeServices(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir)

	svc, err := initializeServices(appConfig{CatalogDir: dir, Engine: "simulator"})
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	started, err := svc.game.StartGame(context.Background(), "alice", engine.Options{})
	if err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if started.Question != "Is your character real?" {
		t.Errorf("Unexpected first question: %q", started.Question)
	}
	if svc.sessions.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", svc.sessions.Count())
	}
}

func TestInitializeServices_InvalidCatalogDir(t *testing.T) {
	_, err := initializeServices(appConfig{CatalogDir: "/non/existent/path", Engine: "simulator"})
	if err == nil {
		t.Error("Expected error for non-existent catalog directory")
	}
}

func TestMCPEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir)
	svc, err := initializeServices(appConfig{CatalogDir: dir, Engine: "simulator"})
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	ts := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + ts.Listener.Addr().String()
	ts.Config.Handler = newRootHandler(api.NewServer(svc.game, nil), mcp.NewClient(baseURL))
	ts.Start()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/mcp")
	if err != nil {
		t.Fatalf("GET /mcp failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET /mcp, got %d", resp.StatusCode)
	}

	call := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"start_game","arguments":{"username":"zoe"}}}`
	resp, err = http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(call))
	if err != nil {
		t.Fatalf("POST /mcp failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Result.Content) == 0 || !strings.Contains(body.Result.Content[0].Text, "Game started for zoe") {
		t.Errorf("Unexpected MCP result: %+v", body)
	}

	if svc.sessions.Count() != 1 {
		t.Errorf("Expected the MCP call to create a session, got %d sessions", svc.sessions.Count())
	}
}

func TestAPIAvailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))

	if !apiAvailable(context.Background(), ts.URL) {
		t.Error("Expected API to be available")
	}

	ts.Close()
	if apiAvailable(context.Background(), ts.URL) {
		t.Error("Expected closed API to be unavailable")
	}
}
