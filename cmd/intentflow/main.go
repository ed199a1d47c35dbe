package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/intentflow/engine"
	"github.com/intentflow/engine/internal/agent"
	"github.com/intentflow/engine/internal/archive"
	"github.com/intentflow/engine/internal/config"
	"github.com/intentflow/engine/internal/engine"
	"github.com/intentflow/engine/internal/planner"
	"github.com/intentflow/engine/internal/sandbox"
	"github.com/intentflow/engine/internal/server"
	"github.com/intentflow/engine/internal/store"
	"github.com/intentflow/engine/pkg/log"
)

type intentflow struct {
	cfg        *config.Config
	flowStore  *store.Store
	archiver   *archive.BlobArchiver
	agent      agent.Agent
	executor   sandbox.Executor
	engine     *engine.Engine
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrConnectStore = errors.New("failed to connect flow store")
	ErrOpenArchive  = errors.New("failed to open archive bucket")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &intentflow{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *intentflow) run() error {
	if err := s.initializeStores(); err != nil {
		return err
	}
	s.initializeEngine()
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *intentflow) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Intentflow Engine starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("redis_addr", s.cfg.Store.Addr),
		slog.Int("redis_db", s.cfg.Store.DB),
		slog.String("agent_endpoint", s.cfg.AgentEndpoint),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *intentflow) initializeStores() error {
	s.flowStore = store.New(&s.cfg.Store, slog.Default())

	ctx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()
	if err := s.flowStore.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectStore, err)
	}

	if s.cfg.ArchiveBucketURL != "" {
		archiver, err := archive.NewBlobArchiver(
			ctx, s.cfg.ArchiveBucketURL, s.cfg.ArchivePrefix,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOpenArchive, err)
		}
		s.archiver = archiver
	}
	return nil
}

func (s *intentflow) initializeEngine() {
	s.agent = agent.NewHTTPAgent(
		s.cfg.AgentEndpoint,
		time.Duration(s.cfg.StepTimeoutCeiling)*time.Millisecond,
	)
	s.executor = sandbox.NewMemoryExecutor(nil)

	p := planner.New(
		planner.WithMaxPromptLength(s.cfg.MaxPromptLength),
		planner.WithRecoveryConfig(s.cfg.Recovery),
	)

	var archiver engine.Archiver
	if s.archiver != nil {
		archiver = s.archiver
	}
	s.engine = engine.New(
		s.cfg, p, s.agent, s.executor, s.flowStore, archiver,
		slog.Default(),
	)
}

func (s *intentflow) startServer() {
	s.apiServer = server.NewServer(s.engine, s.flowStore, slog.Default())
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *intentflow) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	if err := s.engine.Stop(ctx); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}

	if s.archiver != nil {
		_ = s.archiver.Close()
	}
	_ = s.flowStore.Close()

	slog.Info("Server exited")
}
