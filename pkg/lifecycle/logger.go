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

// Package lifecycle holds the process-level plumbing shared by the binaries:
// logger construction, metrics bootstrap and signal-driven shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/beaconradar/pkg/logger"
)

// CreateLogger builds the root logger. A nil config falls back to logger.DefaultConfig.
func CreateLogger(ctx context.Context, config *logger.Config) (logger.Logger, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	log, err := logger.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return log, nil
}

// CreateComponentLogger creates a logger for a specific component.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	log, err := CreateLogger(ctx, config)
	if err != nil {
		return nil, err
	}

	return log.WithComponent(component), nil
}

// InitializeMetrics starts OTLP metric export when the logger's OTel block enables it.
// A disabled exporter is not an error; instruments then record into the no-op provider.
func InitializeMetrics(ctx context.Context, config *logger.Config, log logger.Logger) error {
	if config == nil {
		return nil
	}

	_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName: config.OTel.ServiceName,
		OTel:        &config.OTel,
	})
	if errors.Is(err, logger.ErrOTelMetricsDisabled) {
		log.Debug().Msg("OTLP metrics export disabled")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return nil
}

// InitializeTracing starts OTLP span export under the same OTel block as metrics.
func InitializeTracing(ctx context.Context, config *logger.Config, log logger.Logger) error {
	if config == nil {
		return nil
	}

	_, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName: config.OTel.ServiceName,
		OTel:        &config.OTel,
	})
	if errors.Is(err, logger.ErrOTelTracingDisabled) {
		log.Debug().Msg("OTLP trace export disabled")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return nil
}

// ShutdownLogger shuts down the logger, flushing any pending logs.
func ShutdownLogger() error {
	return logger.Shutdown()
}
