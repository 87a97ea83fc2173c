// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/server"
	"github.com/pdiddy/research-assistant/internal/session"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research API over HTTP",
	Long: `Serve starts sessions on POST /api/research, streams their progress as
server-sent events on GET /api/research/{id}/stream, and returns finished
sessions on GET /api/research/{id}.

Without a configured API key the server still starts, and starting a
session fails with HTTP 500.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().Bool("debug", false, "run gin in debug mode")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		a.cfg.Server.Addr = addr
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := a.openArchive(a.cfg.Archive.Enabled)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, llmErr := llm.New(ctx, a.cfg.LLM)
	if llmErr != nil {
		if !errors.Is(llmErr, llm.ErrNoAPIKey) {
			return llmErr
		}
		llmErr = a.explainLLMError(llmErr)
		a.logger.Warn("model not configured; sessions cannot start", zap.Error(llmErr))
	}

	opts := server.Options{
		LLMError:       llmErr,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Heartbeat:      a.cfg.Server.HeartbeatInterval,
		Logger:         a.logger.Named("http"),
	}
	if store != nil {
		opts.Archive = store
	}

	registry := session.NewRegistry(context.Background(), a.orchestratorFor(client), session.Options{
		MaxSessions: a.cfg.Server.MaxSessions,
		TTL:         a.cfg.Server.SessionTTL,
		OnComplete: func(s *types.Session) {
			a.persist(context.Background(), s, store, a.cfg.Report.OutputDir)
		},
	}, a.logger.Named("sessions"))
	opts.Sessions = registry

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server.New(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		registry.Close()
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	a.logger.Info("server starting", zap.String("addr", ln.Addr().String()))

	stopSessions := func() {
		a.logger.Info("shutting down server...")
		registry.Close()
	}
	err = server.Serve(ctx, srv, ln, stopSessions, shutdownTimeout)
	a.logger.Info("server exited")
	return err
}
