/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"github.com/carverauto/beaconradar/pkg/config"
	"github.com/carverauto/beaconradar/pkg/delivery"
	"github.com/carverauto/beaconradar/pkg/lifecycle"
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/natsutil"
	"github.com/carverauto/beaconradar/pkg/scanner"
	"github.com/carverauto/beaconradar/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("beacon-scanner failed: %v", err)
	}
}

type overrides struct {
	location     string
	producerID   string
	mode         string
	apiURL       string
	mappingsFile string
	readingsFile string
	threshold    float64
	dryRun       bool
	mockBeacons  bool
}

func run() error {
	configPath := flag.String("config", "/etc/beaconradar/scanner.json", "Path to scanner config file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print the version and exit")

	var o overrides

	flag.StringVar(&o.location, "location", "", "Scanner location identifier")
	flag.StringVar(&o.producerID, "producer-id", "", "Unique producer id of this scanner")
	flag.StringVar(&o.mode, "mode", "", "Operating mode: immediate, batched or filtered")
	flag.StringVar(&o.apiURL, "api-url", "", "Collection service URL")
	flag.StringVar(&o.mappingsFile, "mappings", "", "JSON file of beacon MAC to memorable id")
	flag.StringVar(&o.readingsFile, "readings", "", "JSON-lines readings feed")
	flag.Float64Var(&o.threshold, "rssi-threshold", 0, "Minimum RSSI to consider")
	flag.BoolVar(&o.dryRun, "dry-run", false, "Log intended submissions without sending them")
	flag.BoolVar(&o.mockBeacons, "mock-beacons", false, "Use mock beacons instead of a readings feed")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())

		return nil
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	ctx := context.Background()

	cfg := scanner.DefaultConfig()
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyOverrides(cfg, &o)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	if *verbose {
		logConfig.Level = "debug"
	}

	scannerLogger, err := lifecycle.CreateComponentLogger(ctx, "beacon-scanner", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	if err := lifecycle.InitializeMetrics(ctx, logConfig, scannerLogger); err != nil {
		scannerLogger.Warn().Err(err).Msg("Metrics export disabled")
	}

	if err := lifecycle.InitializeTracing(ctx, logConfig, scannerLogger); err != nil {
		scannerLogger.Warn().Err(err).Msg("Trace export disabled")
	}

	if redacted, err := models.FilterSensitiveFields(cfg); err == nil {
		scannerLogger.Debug().Interface("config", redacted).Msg("Effective configuration")
	}

	mappings := cfg.Mappings
	if cfg.MappingsFile != "" {
		fileMappings, err := scanner.LoadMappings(cfg.MappingsFile)
		if err != nil {
			return err
		}

		mappings = scanner.MergeMappings(cfg.Mappings, fileMappings)

		scannerLogger.Info().Int("count", len(fileMappings)).Str("file", cfg.MappingsFile).Msg("Loaded beacon mappings")
	}

	var client delivery.Client

	if cfg.DryRun {
		client = delivery.NewDryRunClient(scannerLogger.WithComponent("delivery"))
	} else {
		client = delivery.NewHTTPClient(delivery.HTTPConfig{
			BaseURL: cfg.APIURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.RequestTimeout.Std(),
		}, scannerLogger.WithComponent("delivery"))
	}

	var source scanner.Source = scanner.NewFileSource(cfg.ReadingsFile, scannerLogger.WithComponent("source"))
	if cfg.MockBeacons {
		source = scanner.NewMockSource(nil)
	}

	var opts []scanner.Option

	if cfg.Events != nil && cfg.Events.Enabled {
		publisher, closeEvents, err := natsutil.Connect(ctx, cfg.Events, version.SourceSystem(), scannerLogger.WithComponent("events"))
		if err != nil {
			scannerLogger.Warn().Err(err).Msg("Detection events disabled")
		} else {
			defer closeEvents()

			opts = append(opts, scanner.WithRecordSink(publisher))
		}
	}

	ctx, cancel := lifecycle.WithShutdownSignals(ctx, scannerLogger)
	defer cancel()

	return scanner.NewOrchestrator(cfg, source, client, mappings, scannerLogger, opts...).Run(ctx)
}

// applyOverrides copies explicitly set flags over the loaded configuration.
func applyOverrides(cfg *scanner.Config, o *overrides) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "location":
			cfg.Location = o.location
		case "producer-id":
			cfg.ProducerID = o.producerID
		case "mode":
			cfg.Mode = o.mode
		case "api-url":
			cfg.APIURL = o.apiURL
		case "mappings":
			cfg.MappingsFile = o.mappingsFile
		case "readings":
			cfg.ReadingsFile = o.readingsFile
		case "rssi-threshold":
			cfg.RSSIThreshold = o.threshold
		case "dry-run":
			cfg.DryRun = o.dryRun
		case "mock-beacons":
			cfg.MockBeacons = o.mockBeacons
		}
	})
}
