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
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/carverauto/beaconradar/pkg/config"
	"github.com/carverauto/beaconradar/pkg/delivery"
	"github.com/carverauto/beaconradar/pkg/lifecycle"
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/natsutil"
	"github.com/carverauto/beaconradar/pkg/simulator"
	"github.com/carverauto/beaconradar/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("beacon-simulator failed: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/beaconradar/simulator.json", "Path to simulator config file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	duration := flag.Duration("duration", 0, "Simulation length, overrides the config (e.g. 30m)")
	dryRun := flag.Bool("dry-run", false, "Log intended submissions without sending them")
	seed := flag.Uint64("seed", 0, "Random seed, 0 for a random run")
	check := flag.Bool("check", false, "Check the collection service (health, lookup, submit, read-back) and exit")
	checkIDs := flag.String("check-ids", "", "Comma-separated memorable ids for -check, defaults to memorable_id")
	checkReadOnly := flag.Bool("check-read-only", false, "Skip the test submission during -check")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	ctx := context.Background()

	cfg := simulator.DefaultConfig()
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *duration > 0 {
		cfg.Duration = models.Duration(*duration)
	}

	if *dryRun {
		cfg.DryRun = true
	}

	if *seed != 0 {
		cfg.Seed = *seed
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	simLogger, err := lifecycle.CreateComponentLogger(ctx, "beacon-simulator", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	if err := lifecycle.InitializeMetrics(ctx, logConfig, simLogger); err != nil {
		simLogger.Warn().Err(err).Msg("Metrics export disabled")
	}

	if err := lifecycle.InitializeTracing(ctx, logConfig, simLogger); err != nil {
		simLogger.Warn().Err(err).Msg("Trace export disabled")
	}

	if *check {
		return runCheck(ctx, cfg, *checkIDs, !*checkReadOnly, simLogger)
	}

	var client delivery.Client

	if cfg.DryRun {
		client = delivery.NewDryRunClient(simLogger.WithComponent("delivery"))
	} else {
		client = delivery.NewHTTPClient(delivery.HTTPConfig{
			BaseURL: cfg.APIURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.RequestTimeout.Std(),
		}, simLogger.WithComponent("delivery"))
	}

	defer func() { _ = client.Close() }()

	var opts []simulator.Option

	if cfg.Events != nil && cfg.Events.Enabled {
		publisher, closeEvents, err := natsutil.Connect(ctx, cfg.Events, version.SourceSystem(), simLogger.WithComponent("events"))
		if err != nil {
			simLogger.Warn().Err(err).Msg("Detection events disabled")
		} else {
			defer closeEvents()

			opts = append(opts, simulator.WithRecordSink(publisher))
		}
	}

	ctx, cancel := lifecycle.WithShutdownSignals(ctx, simLogger)
	defer cancel()

	start := time.Now()

	if err := simulator.New(cfg, client, simLogger, opts...).Run(ctx); err != nil {
		return err
	}

	simLogger.Info().Dur("elapsed", time.Since(start)).Msg("Simulator exiting")

	return nil
}

// runCheck verifies the collection service end to end and logs what it found.
func runCheck(ctx context.Context, cfg *simulator.Config, ids string, submit bool, checkLogger logger.Logger) error {
	if cfg.DryRun {
		return errors.New("-check needs a live collection service, drop dry_run")
	}

	memorableIDs := []string{cfg.MemorableID}

	if ids != "" {
		memorableIDs = memorableIDs[:0]

		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				memorableIDs = append(memorableIDs, id)
			}
		}
	}

	client := delivery.NewHTTPClient(delivery.HTTPConfig{
		BaseURL: cfg.APIURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeout.Std(),
	}, checkLogger.WithComponent("delivery"))

	defer func() { _ = client.Close() }()

	report, err := delivery.Check(ctx, client, delivery.CheckOptions{
		MemorableIDs: memorableIDs,
		ProducerID:   "beacon-simulator-check",
		Submit:       submit,
	}, checkLogger.WithComponent("check"))

	checkLogger.Info().
		Bool("healthy", report.Healthy).
		Int("projects", len(report.Groups)).
		Int("participants_found", len(report.Participants)).
		Strs("participants_missing", report.Missing).
		Str("external_id", report.ExternalID).
		Bool("read_back", report.ReadBack).
		Msg("Connection check finished")

	return err
}
