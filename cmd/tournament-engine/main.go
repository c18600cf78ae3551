package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aiarena/engine/internal/adapters"
	"github.com/aiarena/engine/internal/pool"
	"github.com/aiarena/engine/internal/referee"
	"github.com/aiarena/engine/internal/reporter"
	"github.com/aiarena/engine/internal/sandbox"
	"github.com/aiarena/engine/internal/schema"
	"github.com/aiarena/engine/internal/scheduler"
	"github.com/aiarena/engine/internal/store"
	"github.com/aiarena/engine/internal/submission"
	"github.com/aiarena/engine/internal/workspace"
	"github.com/aiarena/engine/pkg/config"
	"github.com/aiarena/engine/pkg/database"
	"github.com/aiarena/engine/pkg/logging"
	"github.com/aiarena/engine/pkg/metrics"
)

var (
	version   string = "dev"
	buildTime string = "unknown"
	gitCommit string = "unknown"
)

const serviceName = "tournament-engine"

var logger *slog.Logger

func main() {
	var (
		configFile  = flag.String("config", "configs/tournament-engine.yaml", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("AI Arena Tournament Engine\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger = logging.NewLoggerBasic(serviceName, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	logger.Info("starting tournament engine", "version", version)

	metricsRegistry := metrics.NewRegistry(version, buildTime, gitCommit, logger)
	if cfg.Monitoring.Enabled {
		go func() {
			if err := metricsRegistry.StartMetricsServer(cfg.Monitoring.Port); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server starting", "port", cfg.Monitoring.Port)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ws, err := workspace.New(cfg.Workspace.Root, logging.ComponentLogger(logger, "workspace"))
	if err != nil {
		logger.Error("failed to initialize workspace", "error", err)
		os.Exit(1)
	}

	agentStore := store.New(db)

	referenced, err := agentStore.AllPaths(context.Background())
	if err != nil {
		logger.Warn("failed to list agent paths for workspace sweep, sweeping nothing", "error", err)
	} else if err := ws.Sweep(referenced); err != nil {
		logger.Warn("workspace sweep failed", "error", err)
	}

	slotPool := pool.New(cfg.Scheduler.MaxConcurrency)
	langRegistry := adapters.NewRegistry(cfg.Sandbox.IsolatePath, logging.ComponentLogger(logger, "adapters"))
	spectatorRegistry := reporter.NewRegistry(logging.ComponentLogger(logger, "reporter"))

	sched := scheduler.New(
		scheduler.Config{
			PollInterval: cfg.Scheduler.PollInterval,
			IsolatePath:  cfg.Sandbox.IsolatePath,
			LaunchOptions: sandbox.LaunchOptions{
				MemoryLimitKB:  cfg.Sandbox.MemoryLimitKB,
				TimeLimit:      cfg.Sandbox.TimeLimit,
				ExtraTime:      cfg.Sandbox.ExtraTime,
				StderrMaxBytes: cfg.Sandbox.StderrMaxBytes,
			},
		},
		agentStore,
		slotPool,
		langRegistry,
		spectatorRegistry,
		metricsRegistry.Engine,
		logging.ComponentLogger(logger, "scheduler"),
		func(id uuid.UUID) string { return ws.Root() + "/" + id.String() },
	)

	registerGames(sched, cfg.Games)

	schemas, err := loadSchemas(cfg.Games)
	if err != nil {
		logger.Error("failed to load game schemas", "error", err)
		os.Exit(1)
	}
	intake := submission.New(agentStore, langRegistry, slotPool, schemas, ws.Root(), logging.ComponentLogger(logger, "submission"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	grpcServer := initializeGRPCServer()
	httpServer := initializeHTTPServer(cfg, spectatorRegistry, intake)

	go func() {
		if err := startGRPCServer(ctx, cfg, grpcServer); err != nil {
			logger.Error("gRPC server failed", "error", err)
		}
	}()

	go func() {
		if err := startHTTPServer(ctx, httpServer); err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	waitForShutdown(cancel, grpcServer, httpServer, metricsRegistry, cfg)
}

func loadConfig(configFile string) (config.EngineConfig, error) {
	if _, err := os.Stat(configFile); err == nil {
		return config.Load(configFile)
	}

	configPaths := []string{
		"./configs/tournament-engine.yaml",
		"/etc/aiarena/tournament-engine.yaml",
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}

	fmt.Fprintf(os.Stderr, "Warning: No configuration file found, using defaults\n")
	return config.Default(), nil
}

func registerGames(sched *scheduler.Scheduler, games []config.GameEntry) {
	for _, g := range games {
		ref, ok := buildReferee(g)
		if !ok {
			logger.Warn("no built-in referee for configured game, skipping", "game", g.ID)
			continue
		}
		sched.RegisterGame(g.ID, ref)
	}
}

// buildReferee resolves a configured game entry to its built-in referee.
// tic_tac_toe takes no parameters; snake's board is either taken from the
// entry's Snake config or, if absent, a reasonable default sized to
// NumPlayers.
func buildReferee(g config.GameEntry) (referee.Referee, bool) {
	switch g.ID {
	case "tic_tac_toe":
		return referee.TicTacToe{}, true
	case "snake":
		if g.Snake != nil {
			return snakeFromConfig(*g.Snake), true
		}
		return defaultSnake(g.NumPlayers), true
	default:
		return nil, false
	}
}

func snakeFromConfig(c config.SnakeConfig) referee.Snake {
	starts := make([][]referee.Pos, len(c.Starts))
	for i, body := range c.Starts {
		segs := make([]referee.Pos, len(body))
		for j, p := range body {
			segs[j] = referee.Pos{Row: p.Row, Col: p.Col}
		}
		starts[i] = segs
	}
	return referee.Snake{Rows: c.Rows, Cols: c.Cols, Food: c.Food, Starts: starts}
}

// defaultSnake builds a 20x20 board for numPlayers single-segment snakes,
// spaced evenly by row down the middle of the board (alternating between
// the two centre columns), with three food cells per player.
func defaultSnake(numPlayers int) referee.Snake {
	const rows, cols = 20, 20
	starts := make([][]referee.Pos, numPlayers)
	for i := 0; i < numPlayers; i++ {
		row := (i * rows) / numPlayers
		col := cols / 2
		if i%2 == 1 {
			col = cols/2 - 1
		}
		starts[i] = []referee.Pos{{Row: row, Col: col}}
	}
	return referee.Snake{Rows: rows, Cols: cols, Food: numPlayers * 3, Starts: starts}
}

// loadSchemas parses each configured game's schema file once at startup, so
// a bad submission is rejected against an already-validated interface
// instead of re-parsing the schema file on every request.
func loadSchemas(games []config.GameEntry) (map[string]schema.Interface, error) {
	out := make(map[string]schema.Interface, len(games))
	for _, g := range games {
		if g.SchemaPath == "" {
			continue
		}
		iface, err := schema.LoadFile(g.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", g.ID, err)
		}
		out[g.ID] = iface
	}
	return out, nil
}

func initializeGRPCServer() *grpc.Server {
	server := grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return server
}

func initializeHTTPServer(cfg config.EngineConfig, spectators *reporter.Registry, intake *submission.Intake) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "service": "%s", "version": "%s"}`, serviceName, version)
	})

	mux.Handle("/spectate", spectators)
	mux.HandleFunc("/agents", handleSubmit(intake))

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.SSEPort),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
}

// submitRequest is the JSON body a submitter posts to /agents.
type submitRequest struct {
	Name     string  `json:"name"`
	Game     string  `json:"game"`
	Language string  `json:"language"`
	Color    string  `json:"color"`
	Source   string  `json:"src"`
	OwnerID  *string `json:"owner_id,omitempty"`
}

// handleSubmit accepts a new agent submission and returns its ID
// immediately; preparing (and, for compiled languages, building) the
// submission happens in the background, so a caller polls the agent's
// partial/removed flags to learn whether it was accepted.
func handleSubmit(intake *submission.Intake) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		agent, err := intake.Submit(r.Context(), req.Name, req.Game, req.Language, req.Color, req.Source, req.OwnerID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"agent_id": agent.ID.String()})
	}
}

func startGRPCServer(ctx context.Context, cfg config.EngineConfig, server *grpc.Server) error {
	addr := fmt.Sprintf(":%d", cfg.Server.GRPCPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger.Info("gRPC server starting", "address", addr)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down gRPC server")
		server.GracefulStop()
	}()

	if err := server.Serve(listener); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}
	return nil
}

func startHTTPServer(ctx context.Context, server *http.Server) error {
	logger.Info("HTTP server starting", "address", server.Addr)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

func waitForShutdown(cancel context.CancelFunc, grpcServer *grpc.Server, httpServer *http.Server, metricsRegistry *metrics.Registry, cfg config.EngineConfig) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("shutdown signal received, starting graceful shutdown")

	cancel()

	if cfg.Monitoring.Enabled {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsRegistry.StopMetricsServer(shutdownCtx); err != nil {
			logger.Error("error stopping metrics server", "error", err)
		}
	}

	time.Sleep(2 * time.Second)
	logger.Info("tournament engine shutdown complete")
}
