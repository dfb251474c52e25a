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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/natsutil"
	"github.com/carverauto/beaconradar/pkg/scoring"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Location = "entrance"
	cfg.MockBeacons = true

	return cfg
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := validConfig()

	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeImmediate, cfg.Mode)
	assert.Equal(t, "beacon-scanner-entrance", cfg.ProducerID)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval.Std())
	assert.Equal(t, 10*time.Second, cfg.ScanDuration.Std())
	assert.Equal(t, 50, cfg.Batch.MaxSize)
	assert.Equal(t, 300*time.Second, cfg.Batch.MaxAge.Std())
	assert.InDelta(t, -90.0, cfg.RSSIThreshold, 0)
	assert.Equal(t, scoring.ModeRSSI, cfg.Scoring())
	assert.Equal(t, ImmediateMode{}, cfg.OperatingMode())
	assert.False(t, cfg.EnableReconciliation, "only filtered mode reconciles by default")
}

func TestValidateKeepsExplicitProducerID(t *testing.T) {
	cfg := validConfig()
	cfg.ProducerID = "beacon-scanner-01"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "beacon-scanner-01", cfg.ProducerID)
}

func TestValidateModeNames(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ModeImmediate},
		{"Immediate", ModeImmediate},
		{"batched", ModeBatched},
		{"filtered", ModeFiltered},
		{"simple", ModeImmediate},
		{"standard", ModeImmediate},
		{"batch", ModeBatched},
		{"enhanced", ModeFiltered},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := validConfig()
			cfg.Mode = tt.in

			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.want, cfg.Mode)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown mode", func(c *Config) { c.Mode = "turbo" }, ErrUnknownMode},
		{"unknown scoring", func(c *Config) { c.ScoringMode = "vibes" }, scoring.ErrUnknownMode},
		{"empty location", func(c *Config) { c.Location = "" }, errMissingLocation},
		{"zero interval", func(c *Config) { c.ScanInterval = 0 }, errInvalidInterval},
		{"zero duration", func(c *Config) { c.ScanDuration = 0 }, errInvalidDuration},
		{"negative timeout", func(c *Config) { c.RequestTimeout = models.Duration(-time.Second) }, errInvalidTimeout},
		{"positive threshold", func(c *Config) { c.RSSIThreshold = 10 }, errInvalidRSSIFilter},
		{"quality above one", func(c *Config) { c.QualityThreshold = 1.5 }, errInvalidQuality},
		{"no api url", func(c *Config) { c.APIURL = "" }, errMissingAPIURL},
		{"no source", func(c *Config) { c.MockBeacons = false }, errNoSource},
		{"batched without size", func(c *Config) {
			c.Mode = ModeBatched
			c.Batch.MaxSize = 0
		}, errInvalidBatchSize},
		{"events without url", func(c *Config) {
			c.Events = &natsutil.EventsConfig{Enabled: true}
		}, errMissingEventsURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateDryRunNeedsNoAPIURL(t *testing.T) {
	cfg := validConfig()
	cfg.APIURL = ""
	cfg.DryRun = true

	require.NoError(t, cfg.Validate())
}

func TestOperatingModeVariants(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = ModeBatched
	cfg.Batch = BatchConfig{MaxSize: 5, MaxAge: models.Duration(time.Minute)}
	require.NoError(t, cfg.Validate())

	mode := cfg.OperatingMode()
	assert.Equal(t, BatchedMode{MaxSize: 5, MaxAge: time.Minute}, mode)
	assert.Equal(t, ModeBatched, ModeName(mode))

	bc := batchConfig(mode)
	assert.False(t, bc.Immediate)
	assert.Equal(t, 5, bc.MaxSize)
	assert.Equal(t, time.Minute, bc.MaxAge)

	cfg.Mode = ModeFiltered
	cfg.QualityThreshold = 0.4
	mode = cfg.OperatingMode()
	assert.Equal(t, FilteredMode{QualityThreshold: 0.4}, mode)
	assert.True(t, batchConfig(mode).Immediate)
}

func TestReconcileOptionsByMode(t *testing.T) {
	opts := reconcileOptions(ImmediateMode{}, -80, false, scoring.ModeRSSI)
	assert.False(t, opts.Reconcile)
	assert.Zero(t, opts.MinQuality)
	assert.InDelta(t, -80.0, opts.Threshold, 0)

	opts = reconcileOptions(BatchedMode{MaxSize: 1}, -90, true, scoring.ModeRSSI)
	assert.True(t, opts.Reconcile)

	// filtered mode reconciles even when disabled
	opts = reconcileOptions(FilteredMode{QualityThreshold: 0.3}, -90, false, scoring.ModeRSSIBattery)
	assert.True(t, opts.Reconcile)
	assert.InDelta(t, 0.3, opts.MinQuality, 0)
	assert.Equal(t, scoring.ModeRSSIBattery, opts.ScoringMode)
}

func TestRegistrationConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = ModeBatched
	require.NoError(t, cfg.Validate())

	meta := cfg.registrationConfig()
	assert.Equal(t, ModeBatched, meta["mode"])
	assert.Equal(t, "entrance", meta["location"])
	assert.InDelta(t, 30.0, meta["scan_interval"], 0)

	features, ok := meta["features"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, features["batch_mode"])
	assert.Equal(t, true, features["caching"])
	assert.Equal(t, false, features["filtering"])
}
