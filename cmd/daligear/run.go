package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/gray-logic-dali/migrations"

	"github.com/nerrad567/gray-logic-dali/internal/audit"
	"github.com/nerrad567/gray-logic-dali/internal/bridges/dali"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dali/internal/paramstore"
)

// shutdownFlushTimeout bounds the final parameter flush.
const shutdownFlushTimeout = 5 * time.Second

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the gear daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), config.ResolvePath(*configPath))
		},
	}
}

// run is the daemon, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML config file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting daligear",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	gearID := cfg.Gear.ID
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"gear_id", gearID,
	)

	identity, err := buildIdentity(cfg.Gear.Identity)
	if err != nil {
		return fmt.Errorf("gear identity: %w", err)
	}

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Persistent parameters
	store, err := paramstore.NewSQLiteStore(db.DB, gearID, identity)
	if err != nil {
		return fmt.Errorf("creating parameter store: %w", err)
	}
	store.SetLogger(log.ForGear("paramstore", gearID))
	if loadErr := store.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading parameters: %w", loadErr)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		if flushErr := store.Flush(flushCtx); flushErr != nil {
			log.Error("error flushing parameters", "error", flushErr)
		}
		store.Close()
	}()
	log.Info("parameters loaded", "gear_id", gearID)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var (
		influxClient *influxdb.Client
		metrics      dali.MetricsWriter
	)
	influxClient, err = influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Bus transport
	xcvr, err := openTransport(cfg, mqttClient, log)
	if err != nil {
		return fmt.Errorf("opening %s transport: %w", cfg.Transport.Type, err)
	}
	defer func() {
		if closeErr := xcvr.Close(); closeErr != nil {
			log.Error("error closing transport", "error", closeErr)
		}
	}()
	log.Info("transport opened", "type", cfg.Transport.Type)

	// Observers
	output := dali.NewStateOutput(dali.StateOutputConfig{
		GearID:    gearID,
		Publisher: mqttClient,
		Metrics:   metrics,
		Interval:  cfg.Gear.StatePublishInterval,
	})
	output.SetLogger(log.ForGear("output", gearID))
	if subErr := mqttClient.Subscribe(mqtt.Topics{}.LampStatus(gearID), 1, output.HandleLampStatus); subErr != nil {
		return fmt.Errorf("subscribing to lamp status: %w", subErr)
	}

	auditor := dali.NewAuditor(gearID, audit.NewSQLiteRepository(db.DB), mqttClient)
	auditor.SetLogger(log.ForGear("audit", gearID))

	runner, err := dali.NewRunner(dali.RunnerConfig{
		GearID:       gearID,
		Store:        store,
		Random:       dali.CryptoRandom{},
		Output:       output,
		Transceiver:  xcvr,
		TickInterval: cfg.Gear.TickInterval,
		Observers:    []dali.Observer{output, auditor},
	})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}
	runner.SetLogger(log.ForGear("runner", gearID))

	health := dali.NewHealthReporter(dali.HealthReporterConfig{
		GearID:    gearID,
		Version:   version,
		Interval:  cfg.Gear.HealthInterval,
		Publisher: mqttClient,
		Source:    runner.Gear(),
		Transport: xcvr,
	})
	health.SetLogger(log.ForGear("health", gearID))
	if pubErr := health.PublishStarting(); pubErr != nil {
		log.Warn("failed to publish starting status", "error", pubErr)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	health.Start(ctx)
	defer health.Stop()

	log.Info("initialisation complete, serving bus")
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("running gear: %w", err)
	}

	// Deferred calls run in reverse order:
	// health stopping, transport, InfluxDB, MQTT, parameter flush, database.
	log.Info("daligear stopped")
	return nil
}

// openTransport creates the transceiver selected by transport.type.
func openTransport(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (dali.Transceiver, error) {
	xlog := log.ForGear("transport", cfg.Gear.ID)

	switch cfg.Transport.Type {
	case config.TransportSerial:
		t, err := dali.OpenSerial(cfg.Transport.Serial)
		if err != nil {
			return nil, err
		}
		t.SetLogger(xlog)
		return t, nil

	case config.TransportNATS:
		t, err := dali.ConnectNATS(cfg.Transport.NATS, cfg.Gear.ID)
		if err != nil {
			return nil, err
		}
		t.SetLogger(xlog)
		return t, nil

	case config.TransportMQTT:
		t := dali.NewMQTTTransceiver(mqttClient, cfg.Gear.ID)
		t.SetLogger(xlog)
		return t, nil
	}
	return nil, fmt.Errorf("unknown transport type %q", cfg.Transport.Type)
}

// buildIdentity converts the identity config section.
func buildIdentity(c config.IdentityConfig) (paramstore.Identity, error) {
	fwMajor, fwMinor, err := config.ParseVersion(c.FirmwareVersion)
	if err != nil {
		return paramstore.Identity{}, fmt.Errorf("firmware version: %w", err)
	}
	hwMajor, hwMinor, err := config.ParseVersion(c.HardwareVersion)
	if err != nil {
		return paramstore.Identity{}, fmt.Errorf("hardware version: %w", err)
	}

	id := paramstore.Identity{
		GTIN:             c.GTIN,
		FirmwareMajor:    fwMajor,
		FirmwareMinor:    fwMinor,
		Serial:           c.Serial,
		HardwareMajor:    hwMajor,
		HardwareMinor:    hwMinor,
		DeviceType:       byte(c.DeviceType),       //nolint:gosec // range checked by config.Validate
		PhysicalMinLevel: byte(c.PhysicalMinLevel), //nolint:gosec // range checked by config.Validate
		LightSourceType:  byte(c.LightSourceType),  //nolint:gosec // range checked by config.Validate
	}
	if err := id.Validate(); err != nil {
		return paramstore.Identity{}, err
	}
	return id, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
