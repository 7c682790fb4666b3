package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/bus"
	"github.com/adpilot/adpilot/internal/channel"
	"github.com/adpilot/adpilot/internal/channel/telegram"
	"github.com/adpilot/adpilot/internal/channel/whatsapp"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/gateway"
	"github.com/adpilot/adpilot/internal/provider"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start AdPilot server",
		RunE:  runServer,
	}

	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	msgBus := bus.NewMessageBus(100)

	chatModel, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		slog.Warn("no model configured, report intents run in direct mode", "error", err)
	}

	application, err := buildApp(cfg, msgBus, chatModel)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		if err := application.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("orchestration runner failed: %w", err)
		}
	}()

	chanMgr := channel.NewManager(msgBus)
	chanMgr.SetRuntimeMetrics(application.runtime)

	if cfg.Channels.Telegram.Enabled {
		chanMgr.Register(telegram.New(&cfg.Channels.Telegram, msgBus))
	}
	if cfg.Channels.WhatsApp.Enabled {
		chanMgr.Register(whatsapp.New(&cfg.Channels.WhatsApp, msgBus))
	}

	chanMgr.StartAll(ctx)
	go chanMgr.RouteOutbound(ctx)

	gatewayServer := gateway.New(cfg.Gateway, application.runner, application.approvals)
	go func() {
		if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("AdPilot server running. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	chanMgr.StopAll(shutdownCtx)
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}
