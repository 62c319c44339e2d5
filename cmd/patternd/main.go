// IntuiTherm Pattern Core - Device Pattern Learning & Matching Engine
//
// This is the main entry point for the pattern-core daemon. It learns which
// entity-registry entries on a smart-home installation correspond to
// solar-inverter battery-control capabilities, and improves its guesses
// from user feedback.
//
// The daemon exposes an HTTP API for the host platform integration and,
// when MQTT is enabled, scans registry snapshots published by the platform
// and announces match results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/intuitherm/pattern-core/internal/api"
	"github.com/intuitherm/pattern-core/internal/community"
	"github.com/intuitherm/pattern-core/internal/engine"
	"github.com/intuitherm/pattern-core/internal/infrastructure/config"
	"github.com/intuitherm/pattern-core/internal/infrastructure/database"
	"github.com/intuitherm/pattern-core/internal/infrastructure/influxdb"
	"github.com/intuitherm/pattern-core/internal/infrastructure/logging"
	"github.com/intuitherm/pattern-core/internal/infrastructure/mqtt"
	"github.com/intuitherm/pattern-core/internal/pattern"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// learnedPatternsKey is the blob key the pattern store persists under.
const learnedPatternsKey = "learned_patterns"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting IntuiTherm Pattern Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Initialise the pattern store: built-ins plus the persisted learned set
	store := pattern.NewStore(database.NewBlobStore(db, learnedPatternsKey))
	store.SetLogger(log)
	if loadErr := store.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading pattern store: %w", loadErr)
	}
	log.Info("pattern store initialised",
		"patterns", len(store.Patterns()),
		"learned", len(store.Learned()),
	)

	// Matcher and learner share the store
	matcher := pattern.NewMatcher(store, pattern.MatcherConfig{
		AcceptThreshold: cfg.Engine.AcceptThreshold,
	})
	matcher.SetLogger(log)

	learner := pattern.NewLearner(store, pattern.LearnerConfig{
		ConfidenceStep:    cfg.Engine.ConfidenceStep,
		ConfidenceCap:     cfg.Engine.ConfidenceCap,
		InitialConfidence: cfg.Engine.InitialConfidence,
		PruneMargin:       cfg.Engine.PruneMargin,
	})
	learner.SetLogger(log)

	// Prune learned patterns that have accumulated failures
	if removed, pruneErr := learner.Compact(ctx); pruneErr != nil {
		log.Warn("startup prune failed", "error", pruneErr)
	} else if removed > 0 {
		log.Info("pruned unreliable learned patterns", "removed", removed)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Community sharing (optional, needs MQTT): outbound signed submissions
	// plus inbound aggregated batches merged back into the store
	var submitter *community.Submitter
	if cfg.Community.Enabled {
		if mqttClient == nil {
			return fmt.Errorf("community sharing requires MQTT to be enabled")
		}
		submitter = community.NewSubmitter(mqttClient, cfg.Community.Topic, []byte(cfg.Community.SigningKey))
		submitter.SetLogger(log)

		importer := community.NewImporter(learner, []byte(cfg.Community.SigningKey))
		importer.SetLogger(log)
		updatesTopic := mqtt.Topics{}.CommunityUpdates()
		if subErr := mqttClient.Subscribe(updatesTopic, importer.HandleEnvelope); subErr != nil {
			return fmt.Errorf("subscribing to community updates: %w", subErr)
		}
		log.Info("community sharing enabled",
			"submit_topic", cfg.Community.Topic,
			"updates_topic", updatesTopic,
		)
	} else {
		log.Info("community sharing disabled")
	}

	// Subscribe to registry snapshots for asynchronous detection
	if mqttClient != nil {
		topics := mqtt.Topics{}
		eng := engine.New(matcher, mqttClient, topics.MatchEvents(), log)
		if influxClient != nil {
			eng.SetMetrics(influxClient)
		}
		if subErr := mqttClient.Subscribe(topics.RegistrySnapshot(), eng.HandleSnapshot); subErr != nil {
			return fmt.Errorf("subscribing to registry snapshots: %w", subErr)
		}
		log.Info("subscribed to registry snapshots", "topic", topics.RegistrySnapshot())
	}

	// Start HTTP API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Logger:    log,
		Store:     store,
		Matcher:   matcher,
		Learner:   learner,
		Submitter: submitter,
		Metrics:   influxClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, store, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("IntuiTherm Pattern Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses INTUITHERM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INTUITHERM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Optional components (MQTT, InfluxDB) are only checked when wired.
func healthCheck(ctx context.Context, db *database.DB, store *pattern.Store, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("pattern store: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
