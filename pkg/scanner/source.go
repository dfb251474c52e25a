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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
)

// RawReading is one advertisement as reported by the radio layer.
type RawReading struct {
	Identifier string                 `json:"identifier"`
	RSSI       float64                `json:"rssi"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	// MemorableID is set by sources that already know the beacon's alias.
	// The mapping table takes precedence over it.
	MemorableID string   `json:"memorable_id,omitempty"`
	Battery     *float64 `json:"battery,omitempty"`
}

// Source produces the readings of one scan window.
type Source interface {
	Scan(ctx context.Context, window time.Duration) ([]RawReading, error)
}

// MockBeacons are the fixed beacons reported by MockSource.
var MockBeacons = []struct {
	MAC         string
	MemorableID string
}{
	{MAC: "AA:BB:CC:DD:EE:01", MemorableID: "soft-plum-snake"},
	{MAC: "AA:BB:CC:DD:EE:02", MemorableID: "brave-amber-lynx"},
	{MAC: "AA:BB:CC:DD:EE:03", MemorableID: "quick-jade-fox"},
}

const (
	mockDetectChance = 0.7
	mockRSSIMin      = -80.0
	mockRSSIMax      = -40.0
)

// MockSource reports each of MockBeacons with a 70% chance per scan, at an RSSI
// uniformly drawn from [-80, -40).
type MockSource struct {
	rng *rand.Rand
	now func() time.Time
}

// NewMockSource returns a MockSource. A nil rng uses a randomly seeded generator.
func NewMockSource(rng *rand.Rand) *MockSource {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &MockSource{rng: rng, now: time.Now}
}

// Scan returns at once; mock beacons need no acquisition window.
func (m *MockSource) Scan(ctx context.Context, _ time.Duration) ([]RawReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	readings := make([]RawReading, 0, len(MockBeacons))

	for _, b := range MockBeacons {
		if m.rng.Float64() >= mockDetectChance {
			continue
		}

		readings = append(readings, RawReading{
			Identifier:  b.MAC,
			RSSI:        mockRSSIMin + m.rng.Float64()*(mockRSSIMax-mockRSSIMin),
			Timestamp:   m.now(),
			MemorableID: b.MemorableID,
			Metadata:    map[string]interface{}{"source": "mock"},
		})
	}

	return readings, nil
}

const defaultFilePollInterval = 250 * time.Millisecond

// FileSource reads JSON-lines readings appended to a file by an external radio helper.
// Each Scan tails the file for the scan window and returns the complete lines written
// since the previous Scan.
type FileSource struct {
	path         string
	offset       int64
	pollInterval time.Duration
	logger       logger.Logger
}

func NewFileSource(path string, log logger.Logger) *FileSource {
	return &FileSource{
		path:         path,
		pollInterval: defaultFilePollInterval,
		logger:       log,
	}
}

// Scan collects readings until window elapses or ctx is done. A non-positive window
// reads what is already in the file and returns. Readings gathered before an error
// are returned with it.
func (f *FileSource) Scan(ctx context.Context, window time.Duration) ([]RawReading, error) {
	deadline := time.Now().Add(window)

	var readings []RawReading

	for {
		batch, err := f.readAvailable(ctx)
		readings = append(readings, batch...)

		if err != nil {
			return readings, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return readings, nil
		}

		timer := time.NewTimer(min(f.pollInterval, remaining))

		select {
		case <-ctx.Done():
			timer.Stop()

			return readings, ctx.Err()
		case <-timer.C:
		}
	}
}

// readAvailable reads the complete lines past the current offset.
func (f *FileSource) readAvailable(ctx context.Context) ([]RawReading, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("open readings file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat readings file: %w", err)
	}

	// truncated or rotated
	if info.Size() < f.offset {
		f.logger.Info().
			Int64("offset", f.offset).
			Int64("size", info.Size()).
			Msg("Readings file truncated, starting over")
		f.offset = 0
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek readings file: %w", err)
	}

	var readings []RawReading

	reader := bufio.NewReader(file)

	for {
		if err := ctx.Err(); err != nil {
			return readings, err
		}

		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// a partial trailing line is picked up on a later read
			break
		}

		if err != nil {
			return readings, fmt.Errorf("read readings file: %w", err)
		}

		lineOffset := f.offset
		f.offset += int64(len(line))

		reading, ok := f.parseLine(line, lineOffset)
		if ok {
			readings = append(readings, reading)
		}
	}

	return readings, nil
}

func (f *FileSource) parseLine(line []byte, offset int64) (RawReading, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return RawReading{}, false
	}

	var r RawReading

	if err := json.Unmarshal(line, &r); err != nil {
		f.logger.Warn().Err(err).Int64("offset", offset).Str("file", f.path).Msg("Skipping malformed reading")

		return RawReading{}, false
	}

	if r.Identifier == "" {
		f.logger.Warn().Int64("offset", offset).Str("file", f.path).Msg("Skipping reading without identifier")

		return RawReading{}, false
	}

	return r, true
}

// LoadMappings reads a JSON object of beacon MAC to memorable id. MACs are normalized.
func LoadMappings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse mappings %s: %w", path, err)
	}

	return normalizeMappings(raw), nil
}

// MergeMappings combines mapping tables; later tables win.
func MergeMappings(tables ...map[string]string) map[string]string {
	out := make(map[string]string)

	for _, t := range tables {
		for k, v := range normalizeMappings(t) {
			out[k] = v
		}
	}

	return out
}

func normalizeMappings(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))

	for mac, id := range raw {
		key := models.NormalizeBeaconID(mac)
		if key == "" || id == "" {
			continue
		}

		out[key] = id
	}

	return out
}
