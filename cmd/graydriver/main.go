// Gray Logic Driver - protocol driver agent
//
// This is the entry point of a driver agent. The agent registers its driver
// with the configuration authority, keeps a local copy of the configuration
// the authority assigns to it, and polls the devices it owns through the
// protocol driver compiled into this binary.
//
// The reference build carries the virtual driver; a protocol build swaps
// newCapability for its own implementation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-driver/internal/agent"
	"github.com/nerrad567/gray-logic-driver/internal/authority/remote"
	"github.com/nerrad567/gray-logic-driver/internal/cache"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
	"github.com/nerrad567/gray-logic-driver/internal/driver/virtual"
	"github.com/nerrad567/gray-logic-driver/internal/event"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-driver/internal/registrar"
	"github.com/nerrad567/gray-logic-driver/internal/schema"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/driver.yaml"

// newCapability returns the protocol driver this binary runs.
var newCapability = func() driver.Capability { return virtual.New() }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the agent's lifecycle, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default("graylogic-driver")
	log.Info("starting Gray Logic driver agent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateAgent(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, cfg.Driver.ServiceName, version)

	codec, err := event.NewCodec(cfg.Events.Codec)
	if err != nil {
		return fmt.Errorf("selecting event codec: %w", err)
	}

	authorityClient, err := remote.New(cfg.Authority, cfg.Driver.ServiceName)
	if err != nil {
		return fmt.Errorf("creating authority client: %w", err)
	}
	authorityClient.SetLogger(log)
	client := authorityClient.Authority()

	reg := registrar.New(client, cfg.Driver)
	reg.SetLogger(log)

	store := schema.NewStore()
	configCache := cache.New(client, store)
	configCache.SetLogger(log)

	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{Service: cfg.Driver.ServiceName}.Status())
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	opts := agent.Options{
		Driver:     cfg.Driver,
		Registrar:  reg,
		Cache:      configCache,
		Capability: newCapability(),
		Bus:        mqttClient,
		Codec:      codec,
		QoS:        byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
	}

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
		opts.Telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	a := agent.New(opts)
	a.SetLogger(log)
	if influxClient != nil {
		a.OnShutdown(func() error {
			influxClient.Flush()
			return nil
		})
	}

	if err := a.Initial(ctx); err != nil {
		return fmt.Errorf("initialising agent: %w", err)
	}

	log.Info("initialisation complete, polling until shutdown",
		"driver_id", a.DriverID(),
		"authority_breaker", authorityClient.BreakerState(),
	)
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("running agent: %w", err)
	}

	log.Info("Gray Logic driver agent stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
