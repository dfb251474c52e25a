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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/beaconradar/pkg/models"
)

var errTooSmall = errors.New("size too small")

type batchSection struct {
	MaxSize int             `json:"max_size"`
	MaxAge  models.Duration `json:"max_age"`
}

type sampleConfig struct {
	Location string          `json:"location"`
	Interval models.Duration `json:"scan_interval"`
	Timeout  time.Duration   `json:"timeout"`
	DryRun   bool            `json:"dry_run"`
	Min      float64         `json:"rssi_threshold"`
	Tags     []string        `json:"tags"`
	Batch    batchSection    `json:"batch"`
	Optional *batchSection   `json:"optional,omitempty"`
	Ignored  string          `json:"-"`
}

func (c *sampleConfig) Validate() error {
	if c.Batch.MaxSize < 1 {
		return errTooSmall
	}

	return nil
}

func TestLoadAndValidateFromFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := filepath.Join(t.TempDir(), "scanner.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"location": "lab-room-a",
		"scan_interval": "30s",
		"batch": {"max_size": 50, "max_age": 300000000000}
	}`), 0o600))

	cfg := sampleConfig{}
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "lab-room-a", cfg.Location)
	assert.Equal(t, 30*time.Second, cfg.Interval.Std())
	assert.Equal(t, 50, cfg.Batch.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Batch.MaxAge.Std())
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := filepath.Join(t.TempDir(), "scanner.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batch": {"max_size": 0}}`), 0o600))

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &sampleConfig{})
	require.ErrorIs(t, err, errTooSmall)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	err := NewConfig(nil).LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "nope.json"), &sampleConfig{})
	require.Error(t, err)
}

func TestLoadAndValidateRejectsUnknownSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	err := NewConfig(nil).LoadAndValidate(context.Background(), "", &sampleConfig{})
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestEnvConfigLoaderFields(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "")
	t.Setenv("BEACONRADAR_CONFIG_JSON", "")
	t.Setenv("BEACONRADAR_LOCATION", "hallway")
	t.Setenv("BEACONRADAR_SCAN_INTERVAL", "45s")
	t.Setenv("BEACONRADAR_TIMEOUT", "2s")
	t.Setenv("BEACONRADAR_DRY_RUN", "true")
	t.Setenv("BEACONRADAR_RSSI_THRESHOLD", "-85.5")
	t.Setenv("BEACONRADAR_TAGS", "a, b")
	t.Setenv("BEACONRADAR_BATCH_MAX_SIZE", "10")
	t.Setenv("BEACONRADAR_BATCH_MAX_AGE", "1m")
	t.Setenv("BEACONRADAR_OPTIONAL_MAX_SIZE", "3")

	cfg := sampleConfig{Location: "default"}
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "hallway", cfg.Location)
	assert.Equal(t, 45*time.Second, cfg.Interval.Std())
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.True(t, cfg.DryRun)
	assert.InDelta(t, -85.5, cfg.Min, 0.0001)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	assert.Equal(t, 10, cfg.Batch.MaxSize)
	assert.Equal(t, time.Minute, cfg.Batch.MaxAge.Std())
	require.NotNil(t, cfg.Optional)
	assert.Equal(t, 3, cfg.Optional.MaxSize)
}

func TestEnvConfigLoaderKeepsDefaultOnBadValue(t *testing.T) {
	t.Setenv("TEST_CONFIG_JSON", "")
	t.Setenv("TEST_BATCH_MAX_SIZE", "many")

	cfg := sampleConfig{Batch: batchSection{MaxSize: 7}}
	require.NoError(t, NewEnvConfigLoader(nil, "TEST_").Load(context.Background(), "", &cfg))

	assert.Equal(t, 7, cfg.Batch.MaxSize)
}

func TestEnvConfigLoaderConfigJSON(t *testing.T) {
	t.Setenv("TEST_CONFIG_JSON", `{"location": "exit", "batch": {"max_size": 2}}`)

	cfg := sampleConfig{}
	require.NoError(t, NewEnvConfigLoader(nil, "TEST_").Load(context.Background(), "", &cfg))

	assert.Equal(t, "exit", cfg.Location)
	assert.Equal(t, 2, cfg.Batch.MaxSize)
}

func TestEnvConfigLoaderRejectsNonPointer(t *testing.T) {
	t.Setenv("TEST_CONFIG_JSON", "")

	err := NewEnvConfigLoader(nil, "TEST_").Load(context.Background(), "", sampleConfig{})
	require.ErrorIs(t, err, ErrDstMustBeNonNilPointer)

	s := "x"
	err = NewEnvConfigLoader(nil, "TEST_").Load(context.Background(), "", &s)
	require.ErrorIs(t, err, ErrDstMustBePointerToStruct)
}
