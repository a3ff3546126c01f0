// Command guess-game starts the guessing game server.
//
// It supports two commands:
//  1. "server" (default) runs the HTTP server exposing the play endpoints, the
//     session API, WebSocket updates and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server against a running API, or starts an
//     internal one when none answers
//
// Flags can also be set from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/guess-game/api"
	"github.com/wricardo/guess-game/game/config"
	"github.com/wricardo/guess-game/game/engine"
	"github.com/wricardo/guess-game/game/service"
	"github.com/wricardo/guess-game/game/session"
	"github.com/wricardo/guess-game/transport/mcp"
	"github.com/wricardo/guess-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Guess Game Server"
)

const shutdownTimeout = 10 * time.Second

// appConfig is the resolved command line and environment configuration.
type appConfig struct {
	Host        string
	Port        int
	CatalogDir  string
	Engine      string
	SessionTTL  time.Duration
	LogLevel    string
	Debug       bool
	APIURL      string
	NgrokEnable bool
	NgrokToken  string
	NgrokDomain string
}

func (c appConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// loopbackURL is the address in-process clients use to reach the HTTP server.
func (c appConfig) loopbackURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

func main() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Exited with error")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "guess-game",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   3000,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "catalog-dir",
				Value:   "catalogs",
				Usage:   "Directory containing character catalogs",
				Sources: cli.EnvVars("CATALOG_DIR"),
			},
			&cli.StringFlag{
				Name:    "engine",
				Value:   "simulator",
				Usage:   "Guessing engine: simulator or remote (remote reads ENGINE_URL)",
				Sources: cli.EnvVars("ENGINE"),
			},
			&cli.DurationFlag{
				Name:    "session-ttl",
				Usage:   "Evict sessions idle for longer than this; 0 keeps them until restart",
				Sources: cli.EnvVars("SESSION_TTL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level: trace, debug, info, warn, error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Expose the server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runServerCommand,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run the HTTP server with REST API, WebSocket and MCP endpoint (default)",
				Action:  runServerCommand,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:3000",
						Usage:   "REST API to proxy to; an internal server is started when it does not answer",
						Sources: cli.EnvVars("GUESS_API_URL"),
					},
				},
				Action: runMCPCommand,
			},
		},
	}
}

func loadConfig(cmd *cli.Command) appConfig {
	return appConfig{
		Host:        cmd.String("host"),
		Port:        int(cmd.Int("port")),
		CatalogDir:  cmd.String("catalog-dir"),
		Engine:      cmd.String("engine"),
		SessionTTL:  cmd.Duration("session-ttl"),
		LogLevel:    cmd.String("log-level"),
		Debug:       cmd.Bool("debug"),
		APIURL:      cmd.String("api-url"),
		NgrokEnable: cmd.Bool("ngrok"),
		NgrokToken:  cmd.String("ngrok-auth"),
		NgrokDomain: cmd.String("ngrok-domain"),
	}
}

// parseLogLevel maps a level name to a zerolog level. Unknown names yield info.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func setupLogging(cfg appConfig) {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// services is everything the HTTP server needs, wired together.
type services struct {
	sessions *session.Manager
	catalogs *config.Manager
	game     service.GameService
}

func buildEngine(kind string, catalogs engine.CatalogSource) (engine.Engine, error) {
	switch kind {
	case "", "simulator":
		return engine.NewSimulator(catalogs), nil
	case "remote":
		cfg, err := engine.LoadRemoteConfig()
		if err != nil {
			return nil, err
		}
		return engine.NewRemoteEngine(cfg)
	default:
		return nil, fmt.Errorf("unknown engine %q: use simulator or remote", kind)
	}
}

// initializeServices wires the catalog manager, session registry, engine and
// game service.
func initializeServices(cfg appConfig) (*services, error) {
	catalogs, err := config.NewManager(cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog manager: %w", err)
	}

	eng, err := buildEngine(cfg.Engine, catalogs)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	defaults, err := engine.LoadDefaultOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to load engine defaults: %w", err)
	}

	sessions := session.NewManager()
	return &services{
		sessions: sessions,
		catalogs: catalogs,
		game:     service.NewGameService(sessions, catalogs, eng, defaults),
	}, nil
}

// mcpHandler serves single JSON-RPC MCP messages over HTTP POST.
func mcpHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)
		if response == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// newRootHandler mounts the API at / and the MCP endpoint at /mcp.
func newRootHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.Handle("/mcp", mcpHandler(mcpClient.GetMCPServer()))
	return mux
}

// reapInterval is how often idle sessions are checked for a given TTL.
func reapInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Hour {
		interval = time.Hour
	}
	return interval
}

func runSessionReaper(ctx context.Context, sessions *session.Manager, ttl time.Duration) error {
	ticker := time.NewTicker(reapInterval(ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := sessions.CleanupExpiredSessions(ttl); removed > 0 {
				log.Info().Int("removed", removed).Msg("Cleaned up idle sessions")
			}
		}
	}
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	setupLogging(cfg)
	log.Info().Str("version", Version).Str("engine", cfg.Engine).Msgf("Starting %s", AppName)

	svc, err := initializeServices(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runHTTPServer(ctx, cfg, svc)
}

// runHTTPServer serves the API until ctx is cancelled, then shuts down
// gracefully. With ngrok enabled the same handler is also served through a
// public tunnel.
func runHTTPServer(ctx context.Context, cfg appConfig, svc *services) error {
	hub := websocket.NewHub()
	apiServer := api.NewServer(svc.game, hub)
	mcpClient := mcp.NewClient(cfg.loopbackURL())
	handler := newRootHandler(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         cfg.addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.addr()).
			Str("api", cfg.loopbackURL()+"/api").
			Str("mcp", cfg.loopbackURL()+"/mcp").
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.SessionTTL > 0 {
		g.Go(func() error {
			return runSessionReaper(gctx, svc.sessions, cfg.SessionTTL)
		})
	}

	if cfg.NgrokEnable {
		g.Go(func() error {
			return runNgrokTunnel(gctx, cfg, handler)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	log.Info().Msg("Server stopped")
	return err
}

// runNgrokTunnel serves handler through ngrok until ctx is cancelled. A
// missing token or tunnel failure is logged and leaves the local server up.
func runNgrokTunnel(ctx context.Context, cfg appConfig, handler http.Handler) error {
	if cfg.NgrokToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return nil
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return nil
	}

	log.Info().Str("url", tun.URL()).Msg("Ngrok tunnel established")

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		tunnelServer.Shutdown(shutdownCtx)
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
	return nil
}

// apiAvailable reports whether a guess-game API answers at baseURL.
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalServer serves the API on a random loopback port and returns
// its base URL.
func startInternalServer(ctx context.Context, svc *services) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to get available port: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	httpServer := &http.Server{Handler: api.NewServer(svc.game, hub)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Internal HTTP server error")
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	return "http://" + listener.Addr().String(), nil
}

func runMCPCommand(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.APIURL
	if apiAvailable(ctx, baseURL) {
		log.Info().Str("url", baseURL).Msg("Using external API server for MCP")
	} else {
		log.Info().Str("url", baseURL).Msg("No API server found, starting internal HTTP server")

		svc, err := initializeServices(cfg)
		if err != nil {
			return err
		}
		if baseURL, err = startInternalServer(ctx, svc); err != nil {
			return err
		}
		log.Info().Str("url", baseURL).Msg("Internal HTTP server ready")
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Msg("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
