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

package simulator

import (
	"errors"
	"time"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/natsutil"
)

const (
	defaultAPIURL         = "http://localhost:8001"
	defaultDuration       = 10 * time.Minute
	defaultScanInterval   = 30 * time.Second
	defaultMemorableID    = "soft-plum-snake"
	defaultOrganization   = "Beacon Simulator Lab"
	defaultRequestTimeout = 5 * time.Second
)

var (
	errInvalidDuration = errors.New("duration must be positive")
	errInvalidInterval = errors.New("scan_interval must be positive")
	errMissingAPIURL   = errors.New("api_url is required unless dry_run is set")
	errMissingMemID    = errors.New("memorable_id is required")
)

// Config is the simulator configuration.
type Config struct {
	APIURL         string          `json:"api_url"`
	APIKey         string          `json:"api_key" sensitive:"true"`
	Organization   string          `json:"organization"`
	Duration       models.Duration `json:"duration"`
	ScanInterval   models.Duration `json:"scan_interval"`
	RequestTimeout models.Duration `json:"request_timeout"`

	// MemorableID is the participant every simulated beacon belongs to.
	MemorableID string `json:"memorable_id"`

	// Seed makes a run reproducible. Zero picks a random seed.
	Seed   uint64 `json:"seed,omitempty"`
	DryRun bool   `json:"dry_run"`

	Logging *logger.Config         `json:"logging,omitempty"`
	Events  *natsutil.EventsConfig `json:"events,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		APIURL:         defaultAPIURL,
		Organization:   defaultOrganization,
		Duration:       models.Duration(defaultDuration),
		ScanInterval:   models.Duration(defaultScanInterval),
		RequestTimeout: models.Duration(defaultRequestTimeout),
		MemorableID:    defaultMemorableID,
	}
}

func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return errInvalidDuration
	}

	if c.ScanInterval <= 0 {
		return errInvalidInterval
	}

	if c.APIURL == "" && !c.DryRun {
		return errMissingAPIURL
	}

	if c.MemorableID == "" {
		return errMissingMemID
	}

	return nil
}
