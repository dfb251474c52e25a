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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfo(t *testing.T) {
	l, err := New(context.Background(), &Config{Output: "stderr"})
	require.NoError(t, err)

	zl, ok := l.(*zeroLogger)
	require.True(t, ok)
	assert.Equal(t, zerolog.InfoLevel, zl.logger.GetLevel())
}

func TestNewDebugOverridesLevel(t *testing.T) {
	l, err := New(context.Background(), &Config{Level: "error", Debug: true})
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, l.(*zeroLogger).logger.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(context.Background(), &Config{Level: "loud"})
	require.Error(t, err)
}

func TestSetDebug(t *testing.T) {
	l := NewWriterLogger(&bytes.Buffer{})

	l.SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, l.(*zeroLogger).logger.GetLevel())

	l.SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, l.(*zeroLogger).logger.GetLevel())
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer

	l := NewWriterLogger(&buf).
		WithComponent("scanner").
		WithFields(map[string]interface{}{"location": "lab-room-a"})

	l.Info().Str("beacon", "AA:BB:CC:DD:EE:01").Msg("detected")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "scanner", entry["component"])
	assert.Equal(t, "lab-room-a", entry["location"])
	assert.Equal(t, "AA:BB:CC:DD:EE:01", entry["beacon"])
	assert.Equal(t, "detected", entry["message"])
}

func TestTestLoggerDiscards(t *testing.T) {
	l := NewTestLogger()
	l.Error().Msg("nothing to see")

	assert.Equal(t, zerolog.Disabled, l.(*zeroLogger).logger.GetLevel())
}

func TestNewOTELWriterValidation(t *testing.T) {
	_, err := NewOTELWriter(context.Background(), OTelConfig{})
	require.ErrorIs(t, err, ErrOTelLoggingDisabled)

	_, err = NewOTELWriter(context.Background(), OTelConfig{Enabled: true})
	require.ErrorIs(t, err, ErrOTelEndpointRequired)
}

func TestInitializeMetricsDisabled(t *testing.T) {
	_, err := InitializeMetrics(context.Background(), MetricsConfig{})
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)
}

func TestInitializeTracingDisabled(t *testing.T) {
	_, err := InitializeTracing(context.Background(), TracingConfig{OTel: &OTelConfig{Enabled: true}})
	require.ErrorIs(t, err, ErrOTelTracingDisabled)

	// global provider stays the no-op one
	assert.NotNil(t, GetTracer("test"))
}

func TestMapZerologLevelToOTEL(t *testing.T) {
	assert.Equal(t, mapZerologLevelToOTEL("warn"), mapZerologLevelToOTEL("WARNING"))
	assert.Equal(t, mapZerologLevelToOTEL("info"), mapZerologLevelToOTEL("bogus"))
	assert.NotEqual(t, mapZerologLevelToOTEL("debug"), mapZerologLevelToOTEL("error"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer

	n, err := NewMultiWriter(&a, &b).Write([]byte("line"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "line", a.String())
	assert.Equal(t, "line", b.String())

	_, err = NewMultiWriter(&a, failingWriter{}).Write([]byte("x"))
	require.Error(t, err)
}
