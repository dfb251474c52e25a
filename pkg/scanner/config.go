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

package scanner

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/natsutil"
	"github.com/carverauto/beaconradar/pkg/scoring"
)

const (
	defaultAPIURL         = "http://localhost:8001"
	defaultLocation       = "default-location"
	defaultOrganization   = "Research Lab"
	defaultScanInterval   = 30 * time.Second
	defaultScanDuration   = 10 * time.Second
	defaultBatchMaxSize   = 50
	defaultBatchMaxAge    = 300 * time.Second
	defaultRSSIThreshold  = -90.0
	defaultRequestTimeout = 5 * time.Second
)

var (
	errInvalidInterval   = errors.New("scan_interval must be positive")
	errInvalidDuration   = errors.New("scan_duration must be positive")
	errInvalidBatchSize  = errors.New("batch.max_size must be at least 1")
	errInvalidBatchAge   = errors.New("batch.max_age must not be negative")
	errInvalidQuality    = errors.New("quality_threshold must be between 0 and 1")
	errMissingAPIURL     = errors.New("api_url is required unless dry_run is set")
	errMissingLocation   = errors.New("location is required")
	errMissingEventsURL  = errors.New("events.url is required when events are enabled")
	errInvalidTimeout    = errors.New("request_timeout must not be negative")
	errInvalidRSSIFilter = errors.New("rssi_threshold must not be positive")
	errNoSource          = errors.New("either mock_beacons or readings_file must be set")
)

// BatchConfig bounds the pending batch in batched mode.
type BatchConfig struct {
	MaxSize int             `json:"max_size"`
	MaxAge  models.Duration `json:"max_age"`
}

// Config is the scanner service configuration.
type Config struct {
	APIURL       string `json:"api_url"`
	APIKey       string `json:"api_key" sensitive:"true"`
	Location     string `json:"location"`
	ProducerID   string `json:"producer_id"`
	Organization string `json:"organization"`

	Mode                 string          `json:"mode"`
	ScanInterval         models.Duration `json:"scan_interval"`
	ScanDuration         models.Duration `json:"scan_duration"`
	RSSIThreshold        float64         `json:"rssi_threshold"`
	QualityThreshold     float64         `json:"quality_threshold"`
	EnableReconciliation bool            `json:"enable_reconciliation"`
	Batch                BatchConfig     `json:"batch"`
	ScoringMode          string          `json:"scoring_mode"`
	RequestTimeout       models.Duration `json:"request_timeout"`

	// MappingsFile is a JSON object of beacon MAC to memorable id. Entries from the
	// file override the inline Mappings.
	MappingsFile string            `json:"mappings_file,omitempty"`
	Mappings     map[string]string `json:"mappings,omitempty"`

	DryRun      bool `json:"dry_run"`
	MockBeacons bool `json:"mock_beacons"`

	// ReadingsFile is a JSON-lines feed of RawReading written by the radio helper.
	ReadingsFile string `json:"readings_file,omitempty"`

	Logging *logger.Config         `json:"logging,omitempty"`
	Events  *natsutil.EventsConfig `json:"events,omitempty"`
}

// DefaultConfig returns a Config holding every default. Loaders overwrite what they find.
func DefaultConfig() *Config {
	return &Config{
		APIURL:               defaultAPIURL,
		Location:             defaultLocation,
		Organization:         defaultOrganization,
		Mode:                 ModeImmediate,
		ScanInterval:         models.Duration(defaultScanInterval),
		ScanDuration:         models.Duration(defaultScanDuration),
		RSSIThreshold:        defaultRSSIThreshold,
		Batch: BatchConfig{
			MaxSize: defaultBatchMaxSize,
			MaxAge:  models.Duration(defaultBatchMaxAge),
		},
		ScoringMode:    string(scoring.ModeRSSI),
		RequestTimeout: models.Duration(defaultRequestTimeout),
	}
}

// Validate fills derived defaults and rejects unusable settings.
func (c *Config) Validate() error {
	mode, err := normalizeModeName(c.Mode)
	if err != nil {
		return err
	}

	c.Mode = mode

	if _, err := scoring.ParseMode(c.ScoringMode); err != nil {
		return err
	}

	if c.Location == "" {
		return errMissingLocation
	}

	if c.ProducerID == "" {
		c.ProducerID = "beacon-scanner-" + c.Location
	}

	if c.APIURL == "" && !c.DryRun {
		return errMissingAPIURL
	}

	if c.ScanInterval <= 0 {
		return errInvalidInterval
	}

	if c.ScanDuration <= 0 {
		return errInvalidDuration
	}

	if c.RequestTimeout < 0 {
		return errInvalidTimeout
	}

	if c.RSSIThreshold > 0 {
		return errInvalidRSSIFilter
	}

	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("%w: %v", errInvalidQuality, c.QualityThreshold)
	}

	if c.Mode == ModeBatched {
		if c.Batch.MaxSize < 1 {
			return errInvalidBatchSize
		}

		if c.Batch.MaxAge < 0 {
			return errInvalidBatchAge
		}
	}

	if !c.MockBeacons && c.ReadingsFile == "" {
		return errNoSource
	}

	if c.Events != nil && c.Events.Enabled && c.Events.URL == "" {
		return errMissingEventsURL
	}

	return nil
}

// OperatingMode builds the Mode variant selected by the configuration.
// Call it after Validate.
func (c *Config) OperatingMode() Mode {
	switch c.Mode {
	case ModeBatched:
		return BatchedMode{MaxSize: c.Batch.MaxSize, MaxAge: c.Batch.MaxAge.Std()}
	case ModeFiltered:
		return FilteredMode{QualityThreshold: c.QualityThreshold}
	default:
		return ImmediateMode{}
	}
}

// Scoring returns the configured scoring mode, falling back to plain RSSI.
func (c *Config) Scoring() scoring.Mode {
	m, err := scoring.ParseMode(c.ScoringMode)
	if err != nil {
		return scoring.ModeRSSI
	}

	return m
}

// registrationConfig is the producer metadata sent at registration.
func (c *Config) registrationConfig() map[string]interface{} {
	return map[string]interface{}{
		"mode":          c.Mode,
		"location":      c.Location,
		"scan_interval": c.ScanInterval.Std().Seconds(),
		"features": map[string]interface{}{
			"caching":    true,
			"filtering":  c.EnableReconciliation || c.Mode == ModeFiltered,
			"batch_mode": c.Mode == ModeBatched,
		},
	}
}
