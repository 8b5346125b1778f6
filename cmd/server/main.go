package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fleet-dashboard/internal/agent"
	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/ml"
	"fleet-dashboard/internal/mqtt"
	"fleet-dashboard/internal/server"
	"fleet-dashboard/internal/services"
	"fleet-dashboard/pkg/config"
	"fleet-dashboard/pkg/logger"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fleet-dashboard",
		Short: "Medical device fleet operations dashboards",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(schemaCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the fleet agent a question and print the answer as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			warehouse, err := database.Open(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("%s\n%w", database.Remediation, err)
			}
			defer warehouse.Close()

			bridge, err := newBridge(ctx, cfg, warehouse, log)
			if err != nil {
				return err
			}

			resp := bridge.Ask(ctx, strings.Join(args, " "))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the warehouse schema and the agent's semantic model",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the dashboard tables and views",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.WarehouseDriver == config.DriverPostgres {
				return fmt.Errorf("schema init is not supported for the %s driver", cfg.WarehouseDriver)
			}
			cfg.WarehouseInitSchema = true

			warehouse, err := database.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer warehouse.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready on the %s warehouse.\n", cfg.WarehouseDriver)
			return nil
		},
	})

	semanticCmd := &cobra.Command{
		Use:   "semantic-model",
		Short: "Write the default semantic model to a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")
			if err := ml.WriteSemanticModel(path, ml.DefaultSemanticModel()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Semantic model written to %s.\n", path)
			return nil
		},
	}
	semanticCmd.Flags().String("out", "semantic_model.yaml", "Output path")
	cmd.AddCommand(semanticCmd)

	return cmd
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}

// newBridge wires the agent. Without a GenAI key generated SQL is disabled;
// without a search endpoint or embedder runbook search is disabled.
func newBridge(ctx context.Context, cfg *config.Config, warehouse database.Warehouse, log zerolog.Logger) (*agent.Bridge, error) {
	var (
		completer ml.Completer
		embedder  ml.Embedder
		searcher  agent.Searcher
	)
	if cfg.GenAIAPIKey != "" {
		client, err := ml.NewGenAIClient(ctx, cfg.GenAIAPIKey)
		if err != nil {
			return nil, err
		}
		completer = ml.NewGenAICompleter(client)
		embedder = ml.NewGenAIEmbedder(client, cfg.EmbeddingModel)
	} else {
		log.Warn().Msg("GENAI_API_KEY not set, analyst questions are disabled")
	}

	switch {
	case cfg.SearchURL != "":
		searcher = agent.NewHTTPSearcher(cfg.SearchURL, nil)
	case embedder != nil:
		searcher = agent.NewWarehouseSearcher(warehouse, embedder)
	}

	semantic := ml.DefaultSemanticModel()
	if cfg.SemanticModelPath != "" {
		m, err := ml.LoadSemanticModel(cfg.SemanticModelPath)
		if err != nil {
			return nil, err
		}
		semantic = m
	}

	agentCfg := agent.DefaultConfig()
	agentCfg.Model = cfg.CompletionModel
	agentCfg.Corpus = cfg.SearchCorpus
	agentCfg.SearchLimit = cfg.SearchLimit
	agentCfg.RowLimit = cfg.AgentRowLimit

	return agent.NewBridge(agentCfg, completer, searcher, warehouse, semantic, log), nil
}

func runServer(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("env", cfg.Env).Str("warehouse", cfg.WarehouseDriver).Msg("starting fleet dashboard")

	// === Warehouse ===
	// pages show the remediation text until the warehouse can be reached
	warehouse := database.NewLazyWarehouse(database.DialectFor(cfg.WarehouseDriver),
		func(ctx context.Context) (database.Warehouse, error) {
			return database.Open(ctx, cfg, log)
		})
	defer warehouse.Close()
	if err := warehouse.Ping(ctx); err != nil {
		log.Error().Err(err).Msg(database.Remediation)
	}

	cache := database.NewCachedWarehouse(warehouse, cfg.CacheTTL)

	// === Agent ===
	// generated SQL is never memoized
	bridge, err := newBridge(ctx, cfg, cache.Uncached(), log)
	if err != nil {
		return err
	}

	// === Cache refresh ===
	refresh := services.NewRefreshService(cache, services.DefaultRefreshServiceConfig(), log)
	go refresh.Start(ctx)

	// === MQTT (optional) ===
	var (
		notifier services.AlertNotifier
		broker   server.Broker
	)
	if cfg.MQTTEnabled() {
		client, err := mqtt.NewClient(mqtt.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, log)
		if err != nil {
			return err
		}
		defer client.Close()

		// scoring completions feed the refresh service
		subscriber := mqtt.NewSubscriber(client.GetNativeClient(),
			mqtt.SubscriberConfig{ScoringTopic: cfg.MQTTTopicScoring},
			refresh.ScoringChan, log)
		if err := subscriber.SubscribeAll(); err != nil {
			return err
		}

		// critical alerts go out through the publisher
		alerts := services.NewChannelNotifier(services.DefaultChannelNotifierConfig())
		publisher := mqtt.NewPublisher(client.GetNativeClient(),
			mqtt.PublisherConfig{AlertTopic: cfg.MQTTTopicAlerts},
			alerts.AlertChan, log)
		go publisher.Start(ctx)
		notifier = alerts
		broker = client

		log.Info().
			Str("scoring_topic", cfg.MQTTTopicScoring).
			Str("alert_topic", cfg.MQTTTopicAlerts).
			Msg("MQTT enabled")
	} else {
		log.Info().Msg("MQTT_BROKER not set, scoring events and alert publishing are disabled")
	}

	// === Dashboards ===
	ccConfig := services.DefaultCommandCenterConfig()
	ccConfig.AlertThreshold = cfg.CriticalAlertThreshold

	srvConfig := server.DefaultConfig()
	srvConfig.Addr = cfg.HTTPAddr

	srv := server.New(srvConfig, server.Deps{
		Warehouse:     warehouse,
		CommandCenter: services.NewCommandCenterService(cache, ccConfig, notifier, log),
		Fleet:         services.NewFleetService(cache, log),
		Hypothesis:    services.NewHypothesisService(cache, log),
		Refresh:       refresh,
		Agent:         bridge,
		Broker:        broker,
	}, log)

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("cache_ttl", cfg.CacheTTL.String()).
		Str("alert_threshold", humanize.Comma(int64(cfg.CriticalAlertThreshold))+" critical devices").
		Msg("fleet dashboard is running")

	err = srv.Start(ctx)

	stats := cache.Stats()
	log.Info().
		Uint64("cache_hits", stats.Hits).
		Uint64("cache_misses", stats.Misses).
		Uint64("refreshes", refresh.Status().Refreshes).
		Msg("shutdown complete")
	return err
}
