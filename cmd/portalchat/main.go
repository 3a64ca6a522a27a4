package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/careportal-chat/internal/app/bootstrap"
	"github.com/wolfman30/careportal-chat/internal/chat"
	appconfig "github.com/wolfman30/careportal-chat/internal/config"
	"github.com/wolfman30/careportal-chat/internal/console"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	conversationID := flag.String("conversation", cfg.ConversationID, "booking conversation id")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()
	if strings.TrimSpace(*conversationID) == "" {
		fmt.Fprintln(os.Stderr, "a conversation id is required (-conversation or CONVERSATION_ID)")
		os.Exit(2)
	}

	// stdout belongs to the conversation.
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	if *metricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer func() { _ = metricsSrv.Close() }()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	var snapshots chat.SnapshotStore
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		snapshots = chat.NewRedisSnapshotStore(redisClient, cfg.SnapshotTTL)
	}

	family, err := bootstrap.LoadFamilyMembers(cfg.FamilyMembersFile)
	if err != nil {
		logger.Error("failed to load family members", "error", err)
		os.Exit(1)
	}

	// The checkout prompt and the command loop share one reader so neither
	// buffers input meant for the other.
	stdin := bufio.NewReader(os.Stdin)
	ctrl, err := bootstrap.BuildController(cfg, *conversationID, bootstrap.ClientDeps{
		Snapshots:     snapshots,
		Registry:      reg,
		CheckoutIn:    stdin,
		CheckoutOut:   os.Stdout,
		FamilyMembers: family,
	}, logger)
	if err != nil {
		logger.Error("failed to start conversation", "error", err)
		os.Exit(1)
	}

	session := console.NewSession(ctrl, os.Stdout, logger)
	if err := session.Run(ctx, stdin); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session ended", "error", err)
		os.Exit(1)
	}
}
