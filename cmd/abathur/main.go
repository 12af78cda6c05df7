// Command abathur runs the Task Coordinator and Convergence Engine as a
// single HTTP service: submit tasks, let the coordinator resolve
// dependencies and priority, and drive each task's trajectory through the
// convergence loop via the Strategy Executor / Overseer Measurer ports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/odgrim/abathur/pkg/api"
	"github.com/odgrim/abathur/pkg/auditlog"
	"github.com/odgrim/abathur/pkg/cleanup"
	"github.com/odgrim/abathur/pkg/config"
	"github.com/odgrim/abathur/pkg/convergence"
	"github.com/odgrim/abathur/pkg/coordinator"
	"github.com/odgrim/abathur/pkg/events"
	"github.com/odgrim/abathur/pkg/executor"
	"github.com/odgrim/abathur/pkg/guardrails"
	"github.com/odgrim/abathur/pkg/memory"
	"github.com/odgrim/abathur/pkg/overseer"
	"github.com/odgrim/abathur/pkg/services"
	"github.com/odgrim/abathur/pkg/taskstore"
	"github.com/odgrim/abathur/pkg/trajectorystore"
	"github.com/odgrim/abathur/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configDir := os.Getenv("ABATHUR_CONFIG_DIR")
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		slog.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("starting abathur", "version", version.Full())

	mem, err := newMemoryRepository(cfg.Memory)
	if err != nil {
		slog.Error("memory backend init failed", "error", err)
		os.Exit(1)
	}
	if closer, ok := mem.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				slog.Warn("memory backend close failed", "error", err)
			}
		}()
	}

	taskRepo := taskstore.NewMemStore()
	trajectories := trajectorystore.NewMemStore()

	rails := guardrails.New(cfg.GuardrailsConfig())
	resetDaemon := guardrails.NewResetDaemon(rails.Metrics(), guardrails.DefaultResetDaemonConfig())
	resetDaemon.Start(ctx)
	defer resetDaemon.Stop()

	audit := auditlog.New(cfg.AuditConfig())

	coord := coordinator.New(taskRepo, slog.Default(),
		coordinator.WithGuardrails(rails),
		coordinator.WithAuditLog(audit),
	)

	connManager := events.NewConnectionManager(nil, 10*time.Second)

	var emitter convergence.EventEmitter
	if cfg.Engine.EventEmissionEnabled {
		emitter = &connManagerEmitter{connManager: connManager}
	}

	engine := convergence.NewEngine(
		executor.NewFakeExecutor(),
		overseer.NewFakeOverseer(),
		trajectories,
		mem,
		emitter,
		slog.Default(),
	)
	engine.EnableProactiveDecomposition = cfg.Engine.EnableProactiveDecomposition
	engine.Tasks = taskRepo

	taskService := services.NewTaskService(taskRepo, coord, engine, trajectories, slog.Default())

	sweeper := cleanup.NewService(cleanup.Config{
		Interval:   cfg.Engine.StrategyExecutorTimeout,
		StaleAfter: cfg.Engine.StrategyExecutorTimeout * 3,
	}, taskRepo)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	server := api.NewServer(cfg, taskService, connManager)

	go func() {
		if err := server.Start(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

// newMemoryRepository selects the Convergence Engine's MemoryRepository
// backend per configuration: in-process for single-replica deployments,
// Redis when cross-process recall memory is needed.
func newMemoryRepository(cfg config.MemoryConfig) (convergence.MemoryRepository, error) {
	switch cfg.Backend {
	case "redis":
		store, err := memory.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store.SetDefaultTTL(cfg.DefaultTTL)
		return store, nil
	default:
		return memory.NewMemStore(), nil
	}
}

// connManagerEmitter adapts events.ConnectionManager's channel-oriented
// broadcast to the engine's EventEmitter port, without requiring a
// database-backed EventPublisher: task/trajectory state lives entirely
// in-process (pkg/taskstore, pkg/trajectorystore), so there is no durable
// event log to persist against in this deployment shape.
type connManagerEmitter struct {
	connManager *events.ConnectionManager
}

func (e *connManagerEmitter) Emit(_ context.Context, eventType string, payload map[string]any) {
	envelope := events.NewEnvelope(eventType, payload)
	if envelope.EntityID == "" {
		return
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Warn("event envelope marshal failed", "event", eventType, "error", err)
		return
	}

	channel := events.TaskChannel(envelope.EntityID)
	if _, ok := payload["trajectory_id"]; ok {
		channel = events.TrajectoryChannel(envelope.EntityID)
	}
	e.connManager.Broadcast(channel, data)
}
