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

package batch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/beaconradar/pkg/delivery"
	"github.com/carverauto/beaconradar/pkg/identity"
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/metrics"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/scoring"
)

// SubmitterConfig holds the producer-level inputs of every record.
type SubmitterConfig struct {
	ProducerID  string
	ScoringMode scoring.Mode
	// DryRun logs the intended submission and reports success without touching the client.
	DryRun bool
	// Extra is merged into each record's extra_json.
	Extra map[string]interface{}
}

// DetectionSubmitter resolves, builds and submits one record per detection.
type DetectionSubmitter struct {
	client   delivery.Client
	resolver *identity.Resolver
	cfg      SubmitterConfig
	sink     RecordSink
	logger   logger.Logger
	now      func() time.Time
}

var _ Submitter = (*DetectionSubmitter)(nil)

func NewDetectionSubmitter(
	client delivery.Client, resolver *identity.Resolver, cfg SubmitterConfig, log logger.Logger) *DetectionSubmitter {
	return &DetectionSubmitter{
		client:   client,
		resolver: resolver,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// SetSink mirrors accepted records to sink. Sink failures are logged, never returned.
func (s *DetectionSubmitter) SetSink(sink RecordSink) {
	s.sink = sink
}

const tracerName = "beaconradar.batch"

// Submit resolves the detection's identity, then submits the resulting record.
// Unresolvable detections fail with delivery.ErrValidation or delivery.ErrNotFound.
func (s *DetectionSubmitter) Submit(ctx context.Context, d *models.Detection) error {
	ctx, span := logger.GetTracer(tracerName).Start(ctx, "batch.submit",
		trace.WithAttributes(
			attribute.String("beacon", d.BeaconID),
			attribute.String("location", d.Location),
			attribute.Bool("dry_run", s.cfg.DryRun),
		))
	defer span.End()

	if err := s.submit(ctx, d); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")

		return err
	}

	return nil
}

func (s *DetectionSubmitter) submit(ctx context.Context, d *models.Detection) error {
	if s.cfg.DryRun {
		metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeDryRun)

		s.logger.Info().
			Str("beacon", d.BeaconID).
			Str("location", d.Location).
			Float64("rssi", d.RSSI).
			Msg("[dry-run] would submit detection")

		return nil
	}

	if err := s.resolver.ResolveDetection(ctx, d); err != nil {
		metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeUnresolved)

		return err
	}

	record, err := delivery.BuildRecord(d, delivery.RecordOptions{
		ProducerID:  s.cfg.ProducerID,
		ScoringMode: s.cfg.ScoringMode,
		SubmittedAt: s.now(),
		Extra:       s.cfg.Extra,
	})
	if err != nil {
		metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeUnresolved)

		return err
	}

	result, err := s.client.SubmitRecord(ctx, record)
	if err != nil {
		metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeFailed)

		return fmt.Errorf("submit %s: %w", record.ExternalID, err)
	}

	metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeSubmitted)

	s.logger.Debug().
		Str("external_id", record.ExternalID).
		Str("beacon", d.BeaconID).
		Float64("quality_score", record.QualityScore).
		Msg("Submitted detection")

	if s.sink != nil {
		if err := s.sink.PublishDetection(ctx, s.cfg.ProducerID, record, result); err != nil {
			s.logger.Warn().Err(err).Str("external_id", record.ExternalID).Msg("Failed to mirror detection event")
		}
	}

	return nil
}
