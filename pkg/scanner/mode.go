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
	"strings"
	"time"

	"github.com/carverauto/beaconradar/pkg/batch"
	"github.com/carverauto/beaconradar/pkg/reconcile"
	"github.com/carverauto/beaconradar/pkg/scoring"
)

// Mode names accepted in configuration.
const (
	ModeImmediate = "immediate"
	ModeBatched   = "batched"
	ModeFiltered  = "filtered"
)

var ErrUnknownMode = errors.New("unknown scanner mode")

// legacyModes maps the older mode names still found in deployed configs.
var legacyModes = map[string]string{
	"simple":   ModeImmediate,
	"standard": ModeImmediate,
	"batch":    ModeBatched,
	"enhanced": ModeFiltered,
}

// Mode is the closed set of operating modes: ImmediateMode, BatchedMode and FilteredMode.
type Mode interface {
	name() string
}

// ImmediateMode submits every surviving detection during the cycle that produced it.
type ImmediateMode struct{}

// BatchedMode queues detections and flushes on size or age.
type BatchedMode struct {
	MaxSize int
	MaxAge  time.Duration
}

// FilteredMode always reconciles and drops detections scoring below QualityThreshold,
// then submits immediately.
type FilteredMode struct {
	QualityThreshold float64
}

func (ImmediateMode) name() string { return ModeImmediate }
func (BatchedMode) name() string   { return ModeBatched }
func (FilteredMode) name() string  { return ModeFiltered }

// ModeName returns the configuration name of m.
func ModeName(m Mode) string {
	if m == nil {
		return ""
	}

	return m.name()
}

// normalizeModeName lower-cases name and maps legacy names. Empty means immediate.
func normalizeModeName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	if name == "" {
		return ModeImmediate, nil
	}

	if mapped, ok := legacyModes[name]; ok {
		return mapped, nil
	}

	switch name {
	case ModeImmediate, ModeBatched, ModeFiltered:
		return name, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// batchConfig derives the batch manager settings for a mode.
func batchConfig(m Mode) batch.Config {
	switch mode := m.(type) {
	case BatchedMode:
		return batch.Config{MaxSize: mode.MaxSize, MaxAge: mode.MaxAge}
	default:
		return batch.Config{Immediate: true}
	}
}

// reconcileOptions derives the per-cycle processing steps for a mode.
func reconcileOptions(m Mode, threshold float64, enableReconciliation bool, scoringMode scoring.Mode) reconcile.Options {
	opts := reconcile.Options{
		Threshold:   threshold,
		Reconcile:   enableReconciliation,
		ScoringMode: scoringMode,
	}

	if mode, ok := m.(FilteredMode); ok {
		opts.Reconcile = true
		opts.MinQuality = mode.QualityThreshold
	}

	return opts
}
