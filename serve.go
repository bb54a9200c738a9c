package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/config"
	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/metrics"
	"github.com/SWAYAM31220/lootspy/internal/notify"
	"github.com/SWAYAM31220/lootspy/internal/pipeline"
	"github.com/SWAYAM31220/lootspy/internal/registry"
	"github.com/SWAYAM31220/lootspy/internal/relay"
	"github.com/SWAYAM31220/lootspy/internal/server"
	"github.com/SWAYAM31220/lootspy/internal/store"
	"github.com/SWAYAM31220/lootspy/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCommand(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, *debug)
		},
	}
}

func serve(ctx context.Context, debug bool) error {
	logger := newLogger(debug)
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}
	if !debug && debugLogging(debug, cfg) {
		logger = newLogger(true)
		defer logger.Sync()
	}

	reservations, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	bot := transport.NewBotClient(transport.BotOptions{
		APIURL:      cfg.APIURL,
		Token:       cfg.BotToken,
		PollTimeout: cfg.PollTimeout,
		AlbumWait:   cfg.AlbumWait,
	}, logger)
	m := metrics.NewRelayMetrics(prometheus.DefaultRegisterer, logger)

	var logChat *event.Handle
	if cfg.LogChat != "" {
		h, err := registry.ResolveOne(ctx, bot, config.ParseChatRef(cfg.LogChat), cfg.ResolveAttempts)
		if err != nil {
			logger.Warn("Log chat unavailable, not mirroring", zap.String("log_chat", cfg.LogChat), zap.Error(err))
		} else {
			logChat = &h
		}
	}
	sink := notify.NewSink(logger, m, bot, logChat)
	defer sink.Wait()
	sink.Announce(ctx, "🚀 Userbot started")

	sources := make([]string, len(cfg.SourceChannels))
	for i, s := range cfg.SourceChannels {
		sources[i] = config.ParseChatRef(s)
	}
	reg, err := registry.Resolve(ctx, bot, sources, config.ParseChatRef(cfg.Destination), cfg.ResolveAttempts, sink, logger)
	if err != nil {
		return err
	}

	dispatcher := relay.NewDispatcher(bot, cfg.RateLimitMargin, logger)
	dispatcher.OnRateLimited(func(*transport.RateLimitedError) { m.RateLimitedTotal.Inc() })
	p := pipeline.New(store.WithBreaker(reservations, logger), dispatcher, reg.Destination, sink, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.NewRouter(reservations, promhttp.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go m.WatchStore(ctx, reservations, cfg.StoreDriver, 30*time.Second)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Serve(ctx, srv, logger)
		if err != nil {
			logger.Error("HTTP server failed, stopping relay", zap.Error(err))
			stop()
		}
		serverErr <- err
	}()

	deliveries, err := bot.Receive(ctx, reg.Sources)
	if err != nil {
		return err
	}
	p.Run(ctx, deliveries)
	logger.Info("Shutting down")

	return <-serverErr
}
