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

// Package metrics records pipeline counters and latencies through the global OTel meter.
// Without an installed MeterProvider every call is a no-op.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "beaconradar.scanner"

	metricSubmissions    = "beaconradar_submissions_total"
	metricIdentityLookup = "beaconradar_identity_lookups_total"
	metricLookupLatency  = "beaconradar_identity_lookup_latency_seconds"
	metricCycleDuration  = "beaconradar_scan_cycle_duration_seconds"
	metricDetections     = "beaconradar_detections_total"
	metricBatchFlush     = "beaconradar_batch_flush_total"
)

// Submission outcomes.
const (
	OutcomeSubmitted  = "submitted"
	OutcomeFailed     = "failed"
	OutcomeUnresolved = "unresolved"
	OutcomeDryRun     = "dry_run"
)

// Identity lookup sources.
const (
	ResolvedViaCache   = "cache"
	ResolvedViaBackend = "backend"
)

//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
var (
	meterOnce         sync.Once
	submissionCounter metric.Int64Counter
	lookupCounter     metric.Int64Counter
	lookupHistogram   metric.Float64Histogram
	cycleHistogram    metric.Float64Histogram
	detectionCounter  metric.Int64Counter
	flushCounter      metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	submissionCounter, err = meter.Int64Counter(metricSubmissions,
		metric.WithDescription("Detection submissions by outcome"))
	if err != nil {
		otel.Handle(err)
	}

	lookupCounter, err = meter.Int64Counter(metricIdentityLookup,
		metric.WithDescription("Identity resolutions by source and result"))
	if err != nil {
		otel.Handle(err)
	}

	lookupHistogram, err = meter.Float64Histogram(metricLookupLatency,
		metric.WithDescription("Latency of identity lookups against the collection service"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}

	cycleHistogram, err = meter.Float64Histogram(metricCycleDuration,
		metric.WithDescription("Wall-clock time of one scan cycle, scan included"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}

	detectionCounter, err = meter.Int64Counter(metricDetections,
		metric.WithDescription("Detections handed to delivery after filtering and reconciliation"))
	if err != nil {
		otel.Handle(err)
	}

	flushCounter, err = meter.Int64Counter(metricBatchFlush,
		metric.WithDescription("Batch flushes by trigger"))
	if err != nil {
		otel.Handle(err)
	}
}

// RecordSubmission counts one submission attempt for a scanner location.
func RecordSubmission(ctx context.Context, location, outcome string) {
	meterOnce.Do(initMeter)
	if submissionCounter == nil {
		return
	}

	submissionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("location", location),
		attribute.String("outcome", outcome),
	))
}

// RecordIdentityLookup counts a resolution and, for backend lookups, records its latency.
func RecordIdentityLookup(ctx context.Context, resolvedVia string, found bool, duration time.Duration) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(
		attribute.String("resolved_via", resolvedVia),
		attribute.Bool("found", found),
	)

	if lookupCounter != nil {
		lookupCounter.Add(ctx, 1, attrs)
	}

	if resolvedVia == ResolvedViaBackend && lookupHistogram != nil {
		lookupHistogram.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordCycle captures the duration and detection count of one scan cycle.
func RecordCycle(ctx context.Context, location string, duration time.Duration, detections int) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(attribute.String("location", location))

	if cycleHistogram != nil {
		cycleHistogram.Record(ctx, duration.Seconds(), attrs)
	}

	if detectionCounter != nil && detections > 0 {
		detectionCounter.Add(ctx, int64(detections), attrs)
	}
}

// RecordBatchFlush counts a flush; trigger is "size", "age" or "shutdown".
func RecordBatchFlush(ctx context.Context, trigger string) {
	meterOnce.Do(initMeter)
	if flushCounter == nil {
		return
	}

	flushCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}
