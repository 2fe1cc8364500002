package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/cron"
	"github.com/nextlevelbuilder/goclaw/internal/gateway"
	"github.com/nextlevelbuilder/goclaw/internal/push"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
	"github.com/nextlevelbuilder/goclaw/internal/telemetry"
	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.ApplyEnvOverrides()

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		logger.Error("failed to create workspace", "workspace", workspace, "error", err)
		os.Exit(1)
	}

	watchStop := make(chan struct{})
	defer close(watchStop)
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		if err := config.Watch(cfgPath, cfg, logger, watchStop); err != nil {
			logger.Warn("config hot-reload unavailable", "error", err)
		}
	}

	telemetryShutdown, err := telemetry.Init(context.Background(), cfg.Telemetry)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
		telemetryShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	registry := push.NewRegistry()

	sessionsCfg := sessions.Config{
		SocketDir:         config.ExpandHome(cfg.Sessions.SocketDir),
		SessionRecordPath: config.ExpandHome(cfg.Sessions.SessionRecordPath),
		Product:           cfg.Sessions.Product,
		WorkingDir:        workspace,
		Agent: protocol.AgentCLIParams{
			Binary:             cfg.Agent.Binary,
			Args:               []string(cfg.Agent.Args),
			MaxTurns:           cfg.Agent.MaxTurns,
			AllowedTools:       []string(cfg.Agent.AllowedTools),
			SystemPromptAppend: cfg.Agent.SystemPromptAppend,
			WorkingDir:         workspace,
		},
	}
	if d, err := time.ParseDuration(cfg.Sessions.ReuseProbe); err == nil {
		sessionsCfg.ReuseProbe = d
	}
	if d, err := time.ParseDuration(cfg.Sessions.SpawnPollInterval); err == nil {
		sessionsCfg.SpawnPollInterval = d
	}
	if d, err := time.ParseDuration(cfg.Sessions.SpawnDeadline); err == nil {
		sessionsCfg.SpawnDeadline = d
	}

	manager := sessions.New(sessionsCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Cron.Heartbeats) > 0 {
		sched := cron.NewScheduler(cfg.Cron.Heartbeats, registry, logger)
		go sched.Run(ctx)
	}

	var telegramAdapter *telegram.Channel
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		telegramAdapter, err = telegram.New(telegram.Config{
			BotToken:   cfg.Telegram.BotToken,
			ChannelTag: cfg.Telegram.ChannelTag,
		}, manager, registry, logger)
		if err != nil {
			logger.Error("failed to initialize telegram adapter", "error", err)
			os.Exit(1)
		}
		if err := telegramAdapter.Start(ctx); err != nil {
			logger.Error("failed to start telegram adapter", "error", err)
			os.Exit(1)
		}
		logger.Info("telegram adapter started")
	}

	srv, err := gateway.NewServer(cfg.Gateway, cfg.Tailscale, []string(cfg.Agent.AllowedTools), manager, registry, logger)
	if err != nil {
		logger.Error("failed to initialize gateway adapter", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown initiated", "signal", sig.String())
		if telegramAdapter != nil {
			_ = telegramAdapter.Stop(context.Background())
		}

		switch sig {
		case syscall.SIGINT:
			// Interactive interrupt: full shutdown, including host-kill.
			manager.ShutdownHosts()
			cancel()
		case syscall.SIGHUP:
			// Restart: disconnect, re-exec a detached replacement, exit.
			// Force-exit if the graceful path hangs.
			if err := restartSelf(); err != nil {
				logger.Error("failed to re-exec for restart", "error", err)
			}
			manager.Shutdown()
			cancel()
			time.AfterFunc(5*time.Second, func() {
				logger.Warn("graceful restart timed out, forcing exit")
				os.Exit(1)
			})
		default:
			// Hot reload: disconnect from hosts, keep them running, exit.
			manager.Shutdown()
			cancel()
		}
	}()

	logger.Info("goclaw starting", "version", Version, "workspace", workspace, "bind", cfg.Gateway.Bind)
	if err := srv.Listen(ctx); err != nil {
		logger.Error("gateway adapter stopped with error", "error", err)
		os.Exit(1)
	}
}

// restartSelf re-execs the running binary with the same arguments as
// a detached child, mirroring internal/sessions.spawnHost's survival
// model. The caller still owns draining the current process's
// listeners and hosts before exiting.
func restartSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
