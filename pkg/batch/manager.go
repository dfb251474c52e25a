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

// Package batch buffers detections and drives their submission.
package batch

import (
	"context"
	"time"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/metrics"
	"github.com/carverauto/beaconradar/pkg/models"
)

// Flush triggers, as reported in metrics.
const (
	triggerSize     = "size"
	triggerAge      = "age"
	triggerShutdown = "shutdown"
)

// Config selects immediate or batched delivery.
type Config struct {
	// Immediate bypasses the pending batch: Offer submits every detection right away.
	Immediate bool
	// MaxSize flushes once this many detections are pending. Values below 1 mean 1.
	MaxSize int
	// MaxAge flushes once this much time has passed since the previous flush. Zero disables it.
	MaxAge time.Duration
}

// Stats are running submission totals.
type Stats struct {
	Submitted int
	Failed    int
	Flushes   int
}

// Manager owns the pending batch. Submissions run sequentially in offer order;
// a failed submission is logged and dropped, never retried.
//
// A Manager is owned by a single goroutine and is not safe for concurrent use.
type Manager struct {
	cfg       Config
	submitter Submitter
	clock     Clock
	logger    logger.Logger

	pending   []*models.Detection
	lastFlush time.Time
	stats     Stats
}

// NewManager returns a Manager whose age timer starts now. A nil clock uses wall time.
func NewManager(cfg Config, submitter Submitter, clock Clock, log logger.Logger) *Manager {
	if clock == nil {
		clock = realClock{}
	}

	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}

	return &Manager{
		cfg:       cfg,
		submitter: submitter,
		clock:     clock,
		logger:    log,
		lastFlush: clock.Now(),
	}
}

// Offer hands a cycle's detections to the manager and returns how many were submitted
// successfully during the call. In immediate mode each detection is submitted in order;
// otherwise they are queued and the flush thresholds are checked.
func (m *Manager) Offer(ctx context.Context, detections []*models.Detection) int {
	m.pending = append(m.pending, detections...)

	if m.cfg.Immediate {
		return m.flush(ctx, "")
	}

	return m.MaybeFlush(ctx)
}

// MaybeFlush submits the pending batch when it holds at least MaxSize detections or
// MaxAge has elapsed since the last flush. The age timer resets on every flush.
func (m *Manager) MaybeFlush(ctx context.Context) int {
	switch {
	case len(m.pending) >= m.cfg.MaxSize:
		return m.flush(ctx, triggerSize)
	case m.cfg.MaxAge > 0 && m.clock.Now().Sub(m.lastFlush) >= m.cfg.MaxAge:
		return m.flush(ctx, triggerAge)
	default:
		return 0
	}
}

// ForceFlush submits whatever is pending. An empty batch is a no-op returning 0.
func (m *Manager) ForceFlush(ctx context.Context) int {
	if len(m.pending) == 0 {
		return 0
	}

	m.logger.Info().Int("pending", len(m.pending)).Msg("Flushing pending detections")

	return m.flush(ctx, triggerShutdown)
}

// flush submits the batch in order. Cancellation is checked before each submission;
// detections not yet attempted stay pending for a later ForceFlush.
func (m *Manager) flush(ctx context.Context, trigger string) int {
	items := m.pending
	m.pending = nil
	m.lastFlush = m.clock.Now()

	if len(items) == 0 {
		return 0
	}

	if trigger != "" {
		m.stats.Flushes++
		metrics.RecordBatchFlush(ctx, trigger)
	}

	submitted, failed := 0, 0

	for i, d := range items {
		if ctx.Err() != nil {
			m.pending = append(m.pending, items[i:]...)

			m.logger.Warn().
				Int("remaining", len(items)-i).
				Msg("Submission interrupted, keeping remaining detections pending")

			break
		}

		if err := m.submitter.Submit(ctx, d); err != nil {
			failed++

			m.logger.Error().
				Err(err).
				Str("beacon", d.BeaconID).
				Str("location", d.Location).
				Msg("Failed to submit detection, dropping it")

			continue
		}

		submitted++
	}

	m.stats.Submitted += submitted
	m.stats.Failed += failed

	if trigger != "" {
		m.logger.Info().
			Str("trigger", trigger).
			Int("submitted", submitted).
			Int("failed", failed).
			Msg("Batch flushed")
	}

	return submitted
}

// Pending reports the number of queued detections.
func (m *Manager) Pending() int {
	return len(m.pending)
}

func (m *Manager) Stats() Stats {
	return m.stats
}
