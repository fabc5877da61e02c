// Command memorygame starts the Memory Match Game server.
//
// It supports these commands:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket, /metrics and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "currencies" and "convert" query the exchange-rate API from the terminal
//
// Flags control host/port, card set and session directories, logging,
// and optional ngrok tunneling for easy external access during development.
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
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/memorygame/api"
	"github.com/wricardo/mcp-training/memorygame/currency"
	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/session"
	"github.com/wricardo/mcp-training/memorygame/metrics"
	"github.com/wricardo/mcp-training/memorygame/transport/mcp"
	"github.com/wricardo/mcp-training/memorygame/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Memory Match Game Server"
)

const (
	defaultExternalURL = "http://localhost:8080"
	sessionTTL         = 24 * time.Hour
)

// main loads .env and runs the command line
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("exiting")
	}
}

// newApp builds the root command. Flags on the root are visible to every
// subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "memorygame",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing card sets", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory for persisted sessions", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "static-dir", Usage: "Serve a web UI from this directory (optional)", Sources: cli.EnvVars("STATIC_DIR")},
			&cli.StringFlag{Name: "currency-url", Value: currency.DefaultBaseURL, Usage: "Exchange-rate API base URL", Sources: cli.EnvVars("CURRENCY_API_URL")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level (trace, debug, info, warn, error)", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.BoolFlag{Name: "log-json", Usage: "Write JSON logs instead of console output", Sources: cli.EnvVars("LOG_JSON")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogging(cmd.Bool("debug"), cmd.String("log-level"), cmd.Bool("log-json"))
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, metrics and MCP endpoint (default)",
				Action:  runServer,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  runStdioMCP,
			},
			{
				Name:   "currencies",
				Usage:  "List currencies supported by the exchange-rate API",
				Action: runCurrencies,
			},
			{
				Name:      "convert",
				Usage:     "Convert an amount between two currencies",
				ArgsUsage: "AMOUNT FROM TO [YYYY-MM-DD]",
				Action:    runConvert,
			},
		},
	}
}

// setupLogging configures the global zerolog logger. Logs always go to
// stderr so stdout stays free for the MCP stdio protocol.
func setupLogging(debug bool, level string, jsonOutput bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	if debug {
		log.Logger = log.With().Caller().Logger()
	}
	return nil
}

// services holds everything the transports need
type services struct {
	configs     *config.Manager
	sessions    *session.Manager
	persistence *session.FilePersistence
	game        service.GameService
	currency    *currency.Client
}

// initializeServices wires card sets, persistence, sessions and the game
// service, and restores sessions saved by a previous run.
func initializeServices(configDir, sessionsDir, currencyURL string) (*services, error) {
	configManager, err := config.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(sessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Warn().Err(err).Msg("failed to load persisted sessions")
	}

	return &services{
		configs:     configManager,
		sessions:    sessionManager,
		persistence: persistence,
		game:        service.NewGameService(sessionManager, configManager),
		currency:    currency.NewClient(currencyURL),
	}, nil
}

// newHub creates a WebSocket hub that receives every session's engine events
func newHub(svc *services) *websocket.Hub {
	hub := websocket.NewHub(websocket.WithStateProvider(func(sessionID string) (*engine.GameState, error) {
		sess, err := svc.sessions.Get(sessionID)
		if err != nil {
			return nil, err
		}
		return sess.Engine.GetState(), nil
	}))

	svc.sessions.SetEventSink(func(sessionID string, ev engine.Event) {
		metrics.ObserveEvent(ev)
		hub.PublishEvent(sessionID, ev)
	})
	return hub
}

// newRouter mounts the API server at root and the MCP proxy at /mcp
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
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

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runServer starts the HTTP server with REST API, WebSocket hub, metrics and
// an /mcp proxy endpoint. If ngrok is enabled it also provisions a public
// tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	log.Info().Str("version", Version).Msgf("starting %s", AppName)

	svc, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"), cmd.String("currency-url"))
	if err != nil {
		return err
	}
	defer svc.sessions.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := newHub(svc)
	go hub.Run(ctx)

	apiServer := api.NewServer(svc.game, hub,
		api.WithCurrency(svc.currency),
		api.WithStaticDir(cmd.String("static-dir")),
	)

	addr := net.JoinHostPort(cmd.String("host"), strconv.Itoa(cmd.Int("port")))
	mainRouter := newRouter(apiServer, mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().
			Str("rest", "http://"+addr+"/api").
			Str("websocket", "ws://"+addr+"/ws?session=<session_id>").
			Str("mcp", "http://"+addr+"/mcp").
			Str("metrics", "http://"+addr+"/metrics").
			Msgf("HTTP server listening on %s", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		maintenanceRoutine(ctx, svc)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()

	if err := svc.sessions.SaveAllSessions(); err != nil {
		log.Error().Err(err).Msg("failed to save sessions")
	}
	log.Info().Msg("server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	logger := log.With().Str("component", "ngrok").Logger()
	if authToken == "" {
		logger.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info().Str("domain", domain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	logger.Info().
		Str("rest", ngrokURL+"/api").
		Str("websocket", ngrokURL+"/ws?session=<session_id>").
		Str("mcp", ngrokURL+"/mcp").
		Msgf("ngrok tunnel established: %s", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error().Err(err).Msg("ngrok server error")
	}
	logger.Info().Msg("ngrok tunnel closed")
}

// maintenanceRoutine prunes expired sessions hourly and, every few seconds,
// drops sessions whose files were deleted from the sessions directory.
func maintenanceRoutine(ctx context.Context, svc *services) {
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()
	fsSync := time.NewTicker(5 * time.Second)
	defer fsSync.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if removed := svc.sessions.CleanupExpiredSessions(sessionTTL); removed > 0 {
				log.Info().Int("removed", removed).Msg("cleaned up expired sessions")
			}
		case <-fsSync.C:
			if pruned := pruneOrphanedSessions(svc.sessions, svc.persistence); pruned > 0 {
				log.Info().Int("pruned", pruned).Msg("filesystem sync pruned orphaned sessions")
			}
		}
	}
}

// pruneOrphanedSessions removes sessions from memory when their file is gone
func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Debug().Str("session", sess.ID).Msg("pruned session from memory (file deleted)")
		}
	}
	return pruned
}

// runStdioMCP runs an MCP stdio server. It reuses an API already listening
// on localhost:8080; otherwise it starts an internal HTTP API on a random
// loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := defaultExternalURL

	if !apiAvailable(ctx, baseURL) {
		log.Info().Msg("no external API server found, starting internal HTTP server")

		svc, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"), cmd.String("currency-url"))
		if err != nil {
			return err
		}
		defer svc.sessions.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := newHub(svc)
		hubCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go hub.Run(hubCtx)

		httpServer := &http.Server{
			Handler: api.NewServer(svc.game, hub, api.WithCurrency(svc.currency)),
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
	}

	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")
	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether a game API answers at baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
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

// runCurrencies prints every supported currency, one per line
func runCurrencies(ctx context.Context, cmd *cli.Command) error {
	client := currency.NewClient(cmd.String("currency-url"))

	currencies, err := client.Currencies(ctx)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	for _, c := range currencies {
		fmt.Fprintln(w, c.String())
	}
	return nil
}

// runConvert converts AMOUNT from one currency to another, at the latest
// rate or at the rate of an optional date
func runConvert(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() < 3 || args.Len() > 4 {
		return fmt.Errorf("usage: convert AMOUNT FROM TO [YYYY-MM-DD]")
	}

	amount, err := strconv.ParseFloat(args.Get(0), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", currency.ErrInvalidAmount, args.Get(0))
	}
	from, to, date := args.Get(1), args.Get(2), args.Get(3)

	client := currency.NewClient(cmd.String("currency-url"))
	var result float64
	if date != "" {
		result, err = client.ConvertOnDate(ctx, amount, from, to, date)
	} else {
		result, err = client.Convert(ctx, amount, from, to)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, currency.FormatConversion(amount, from, to, result, date))
	return nil
}
