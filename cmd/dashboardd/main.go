package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wu-shaobing/quant-platform-sub002/internal/auth"
	"github.com/wu-shaobing/quant-platform-sub002/internal/config"
	"github.com/wu-shaobing/quant-platform-sub002/internal/connection"
	"github.com/wu-shaobing/quant-platform-sub002/internal/feed"
	"github.com/wu-shaobing/quant-platform-sub002/internal/hub"
	"github.com/wu-shaobing/quant-platform-sub002/internal/journal"
	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
	"github.com/wu-shaobing/quant-platform-sub002/internal/stream"
	"github.com/wu-shaobing/quant-platform-sub002/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/dashboardd.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting dashboardd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"gateway_url", cfg.Gateway.URL,
		"server_addr", cfg.Server.Addr,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Optional connection-event journal
	var recorder *journal.Recorder
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.DB.Host,
			"port", cfg.Journal.DB.Port,
			"database", cfg.Journal.DB.Name,
		)
		recorder, err = journal.New(ctx, cfg.Journal, cfg.Instance.ID, logger.With("component", "journal"))
		if err != nil {
			logger.Error("failed to connect to journal database", "error", err)
			os.Exit(1)
		}
		defer recorder.Close()
		logger.Info("journal database connected")
	}

	// Streaming client
	client := stream.New(managerConfig(cfg.Gateway), tokenProvider(cfg.Gateway), logger)
	defer client.Disconnect()

	// Optional account-event relay
	if cfg.Feed.Enabled {
		publisher, err := feed.NewPublisher(cfg.Feed, logger.With("component", "feed"))
		if err != nil {
			logger.Error("failed to connect to feed broker", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		client.SubscribeOrders(func(o model.OrderUpdate) {
			if err := publisher.PublishOrderUpdate(o); err != nil {
				logger.Warn("order relay failed", "order_id", o.OrderID, "error", err)
			}
		})
		client.SubscribeTrades(func(t model.TradeFill) {
			if err := publisher.PublishTradeFill(t); err != nil {
				logger.Warn("fill relay failed", "trade_id", t.TradeID, "error", err)
			}
		})
		logger.Info("feed relay enabled", "queue", cfg.Feed.Queue)
	}

	// Dashboard hub
	h := hub.New(hub.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBufferSize: cfg.Server.SendBufferSize,
	}, client, logger.With("component", "hub"))
	defer h.Close()

	// Lifecycle events feed both the journal and the hub.
	hubEvents := make(chan connection.Event, 64)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: createHandler(client, h, recorder),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(hubEvents)
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-client.Events():
				if !ok {
					return nil
				}
				logger.Info("connection event",
					"event", ev.Type.String(),
					"state", ev.State.String(),
					"epoch", ev.Epoch,
				)
				if recorder != nil {
					recorder.Record(ev)
				}
				select {
				case hubEvents <- ev:
				default:
				}
			}
		}
	})

	g.Go(func() error {
		h.WatchConnection(gctx, hubEvents)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Open the gateway connection
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to start streaming client", "error", err)
		cancel()
	} else {
		logger.Info("dashboardd running",
			"instance_id", cfg.Instance.ID,
			"health_url", fmt.Sprintf("http://localhost%s/health", cfg.Server.Addr),
		)
	}

	if err := g.Wait(); err != nil {
		logger.Error("runtime error", "error", err)
	}

	logger.Info("dashboardd stopped")
}

// managerConfig maps gateway settings onto the connection manager.
func managerConfig(gw config.GatewayConfig) connection.ManagerConfig {
	cfg := connection.DefaultManagerConfig()
	cfg.URL = gw.URL
	cfg.HandshakeTimeout = gw.HandshakeTimeout
	cfg.WriteTimeout = gw.WriteTimeout
	cfg.AuthTimeout = gw.AuthTimeout
	cfg.HeartbeatInterval = gw.HeartbeatInterval
	cfg.HeartbeatTimeout = gw.HeartbeatTimeout
	cfg.ReconnectBaseDelay = gw.ReconnectBaseDelay
	cfg.ReconnectMaxDelay = gw.ReconnectMaxDelay
	// The YAML sentinel -1 (retry forever) maps to the manager's 0.
	if gw.ReconnectMaxAttempts < 0 {
		cfg.ReconnectMaxAttempts = 0
	} else {
		cfg.ReconnectMaxAttempts = gw.ReconnectMaxAttempts
	}
	cfg.MessageBufferSize = gw.MessageBufferSize
	cfg.EventBufferSize = gw.EventBufferSize
	return cfg
}

// tokenProvider picks the configured token source.
func tokenProvider(gw config.GatewayConfig) auth.TokenProvider {
	switch {
	case gw.Token != "":
		return auth.Static(gw.Token)
	case gw.TokenEnv != "":
		return auth.EnvToken(gw.TokenEnv)
	default:
		return auth.FileToken(gw.TokenFile)
	}
}

// createHandler builds the HTTP routes: /ws for dashboard sessions,
// /health for monitoring.
func createHandler(client *stream.Client, h *hub.Hub, recorder *journal.Recorder) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", h.ServeWS)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := client.Stats()
		state := client.ConnectionState()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["connection"] = map[string]interface{}{
			"state":              state.String(),
			"epoch":              stats.Connection.Epoch,
			"received":           stats.Connection.MessagesReceived,
			"dropped":            stats.Connection.MessagesDropped,
			"reconnect_attempts": stats.Connection.ReconnectAttempts,
		}
		if state != connection.StateConnected {
			health.Status = "degraded"
		}

		health.Components["subscriptions"] = map[string]interface{}{
			"entries":         stats.Registry.Entries,
			"callbacks":       stats.Registry.Callbacks,
			"upstream_active": stats.Registry.UpstreamActive,
		}

		health.Components["router"] = map[string]interface{}{
			"routed":       stats.Router.MessagesRouted,
			"parse_errors": stats.Router.ParseErrors,
			"unknown":      stats.Router.UnknownMessages,
		}

		health.Components["sessions"] = h.SessionCount()

		if recorder != nil {
			if err := recorder.Ping(ctx); err != nil {
				health.Status = "degraded"
				health.Components["journal"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["journal"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
