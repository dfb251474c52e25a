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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/beaconradar/pkg/batch"
	"github.com/carverauto/beaconradar/pkg/delivery"
	"github.com/carverauto/beaconradar/pkg/identity"
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/metrics"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/reconcile"
	"github.com/carverauto/beaconradar/pkg/version"
)

const (
	producerType         = "beacon_scanner"
	minShutdownFlushTime = 10 * time.Second
	tracerName           = "beaconradar.scanner"
)

// Clock abstracts the time operations of the scan loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces wall time, for tests.
func WithClock(clock Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithRecordSink mirrors every accepted record to sink.
func WithRecordSink(sink batch.RecordSink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// CycleResult summarizes one scan cycle.
type CycleResult struct {
	Readings   int
	Detections int
	Submitted  int
	Pending    int
	Duration   time.Duration
}

// Orchestrator runs scan cycles strictly one after another: scan, process, deliver,
// then wait out the rest of the interval.
type Orchestrator struct {
	cfg      *Config
	mode     Mode
	opts     reconcile.Options
	mappings map[string]string

	source   Source
	client   delivery.Client
	resolver *identity.Resolver
	batches  *batch.Manager
	sink     batch.RecordSink

	clock   Clock
	logger  logger.Logger
	session *Session
	state   State
}

// NewOrchestrator wires the pipeline. cfg must already be validated.
func NewOrchestrator(
	cfg *Config, source Source, client delivery.Client, mappings map[string]string, log logger.Logger, opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		mode:     cfg.OperatingMode(),
		mappings: MergeMappings(mappings),
		source:   source,
		client:   client,
		clock:    realClock{},
		logger:   log,
		state:    StateUninitialized,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.opts = reconcileOptions(o.mode, cfg.RSSIThreshold, cfg.EnableReconciliation, cfg.Scoring())
	o.resolver = identity.NewResolver(client, log.WithComponent("identity"))

	submitter := batch.NewDetectionSubmitter(client, o.resolver, batch.SubmitterConfig{
		ProducerID:  cfg.ProducerID,
		ScoringMode: cfg.Scoring(),
		DryRun:      cfg.DryRun,
		Extra:       map[string]interface{}{"scanner_mode": cfg.Mode},
	}, log.WithComponent("submitter"))

	if o.sink != nil {
		submitter.SetSink(o.sink)
	}

	o.batches = batch.NewManager(batchConfig(o.mode), submitter, o.clock, log.WithComponent("batch"))
	o.session = newSession(o.clock.Now())

	return o
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// Session exposes the running counters.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Pending reports detections waiting for a batch flush.
func (o *Orchestrator) Pending() int {
	return o.batches.Pending()
}

// Run registers the producer and loops until ctx is cancelled, then flushes pending
// detections and closes the client. Only cancellation ends the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := o.cfg.ScanInterval.Std()

	o.logger.Info().
		Str("mode", ModeName(o.mode)).
		Str("location", o.cfg.Location).
		Str("producer_id", o.cfg.ProducerID).
		Dur("interval", interval).
		Dur("scan_duration", o.cfg.ScanDuration.Std()).
		Bool("dry_run", o.cfg.DryRun).
		Str("version", version.GetVersion()).
		Str("build", version.GetBuildID()).
		Msg("Starting beacon scanner")

	if mode, ok := o.mode.(BatchedMode); ok {
		o.logger.Info().
			Int("max_size", mode.MaxSize).
			Dur("max_age", mode.MaxAge).
			Msg("Batch mode enabled")
	}

	o.register(ctx)

	for {
		if ctx.Err() != nil {
			return o.shutdown(ctx)
		}

		start := o.clock.Now()

		o.RunCycle(ctx)

		wait := interval - o.clock.Now().Sub(start)
		if wait < 0 {
			wait = 0
		}

		if ctx.Err() != nil {
			return o.shutdown(ctx)
		}

		select {
		case <-ctx.Done():
			return o.shutdown(ctx)
		case <-o.clock.After(wait):
		}
	}
}

// register announces the producer. Failures leave the scanner running in degraded mode.
func (o *Orchestrator) register(ctx context.Context) {
	o.state = StateRegistering
	defer func() { o.state = StateIdle }()

	if err := o.tryRegister(ctx); err != nil {
		o.session.Degraded = true

		o.logger.Warn().Err(err).Msg("Producer registration failed, continuing without it")

		return
	}

	o.logger.Info().
		Str("producer_id", o.cfg.ProducerID).
		Str("group_id", o.session.GroupID).
		Msg("Registered producer")
}

func (o *Orchestrator) tryRegister(ctx context.Context) error {
	groups, err := o.client.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("%w: list groups: %w", delivery.ErrDegraded, err)
	}

	group, err := delivery.SelectGroup(groups)
	if err != nil {
		return fmt.Errorf("%w: select group: %w", delivery.ErrDegraded, err)
	}

	reg := &models.Registration{
		ProducerID:   o.cfg.ProducerID,
		Name:         "Beacon Scanner - " + o.cfg.Location,
		ProducerType: producerType,
		ProjectID:    group.ID,
		Organization: o.cfg.Organization,
		Version:      version.GetVersion(),
		Config:       o.cfg.registrationConfig(),
	}

	if err := o.client.Register(ctx, reg); err != nil {
		return fmt.Errorf("%w: register: %w", delivery.ErrDegraded, err)
	}

	o.session.Registered = true
	o.session.GroupID = group.ID

	return nil
}

// RunCycle performs one scan, processes the readings and hands the survivors to the
// batch manager. Errors are logged; a cycle never fails.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleResult {
	start := o.clock.Now()

	o.session.Cycles++
	cycle := o.session.Cycles
	log := o.logger.WithFields(map[string]interface{}{"cycle": cycle})

	ctx, span := logger.GetTracer(tracerName).Start(ctx, "scanner.cycle",
		trace.WithAttributes(
			attribute.Int("cycle", cycle),
			attribute.String("location", o.cfg.Location),
			attribute.String("mode", ModeName(o.mode)),
		))
	defer span.End()

	o.state = StateScanning
	defer func() { o.state = StateIdle }()

	o.checkHealth(ctx)

	readings := o.scan(ctx, log)

	o.state = StateProcessing

	detections := o.toDetections(readings, start)
	kept := reconcile.Apply(detections, o.opts)

	log.Debug().
		Int("readings", len(readings)).
		Int("kept", len(kept)).
		Msg("Processed scan")

	submitted := o.batches.Offer(ctx, kept)

	stats := o.batches.Stats()
	o.session.Submitted = stats.Submitted
	o.session.Failed = stats.Failed

	result := CycleResult{
		Readings:   len(readings),
		Detections: len(kept),
		Submitted:  submitted,
		Pending:    o.batches.Pending(),
		Duration:   o.clock.Now().Sub(start),
	}

	metrics.RecordCycle(ctx, o.cfg.Location, result.Duration, result.Detections)

	span.SetAttributes(
		attribute.Int("readings", result.Readings),
		attribute.Int("detections", result.Detections),
		attribute.Int("submitted", result.Submitted),
		attribute.Int("pending", result.Pending),
	)

	event := log.Info().
		Int("unique_beacons", o.session.UniqueBeacons()).
		Int("submitted", submitted).
		Int("total_submitted", o.session.Submitted).
		Int("total_failed", o.session.Failed)

	if _, ok := o.mode.(BatchedMode); ok {
		event = event.Int("pending", result.Pending)
	}

	event.Msg("Scan cycle complete")

	return result
}

// checkHealth switches identity resolution to cache-only while the backend is unhealthy.
func (o *Orchestrator) checkHealth(ctx context.Context) {
	healthy := o.client.HealthCheck(ctx)

	if healthy == !o.resolver.Offline() {
		return
	}

	o.resolver.SetOffline(!healthy)
	o.session.Degraded = !healthy

	if healthy {
		o.logger.Info().Msg("Collection service reachable again")

		return
	}

	o.logger.Warn().Err(delivery.ErrDegraded).Msg("Collection service health check failed, resolving from cache only")
}

func (o *Orchestrator) scan(ctx context.Context, log logger.Logger) []RawReading {
	window := o.cfg.ScanDuration.Std()

	scanCtx, cancel := context.WithTimeout(ctx, window+o.cfg.RequestTimeout.Std())
	defer cancel()

	readings, err := o.source.Scan(scanCtx, window)
	if err != nil {
		log.Warn().Err(err).Int("partial", len(readings)).Msg("Scan failed")
	}

	return readings
}

// toDetections normalizes readings, attaches mapped identities and records every
// beacon seen, including those later filtered out.
func (o *Orchestrator) toDetections(readings []RawReading, cycleStart time.Time) []*models.Detection {
	detections := make([]*models.Detection, 0, len(readings))

	for i := range readings {
		r := &readings[i]

		observedAt := r.Timestamp
		if observedAt.IsZero() {
			observedAt = cycleStart
		}

		d := models.NewDetection(r.Identifier, r.RSSI, observedAt, o.cfg.Location)
		if d.BeaconID == "" {
			continue
		}

		d.RawMetadata = r.Metadata
		d.Battery = r.Battery

		memorableID := r.MemorableID
		if mapped, ok := o.mappings[d.BeaconID]; ok {
			memorableID = mapped
		}

		if memorableID != "" {
			d.Identity = models.Mapped(memorableID)
		}

		o.session.Seen(d.BeaconID)

		detections = append(detections, d)
	}

	return detections
}

// shutdown flushes what is pending with a fresh deadline, then closes the client.
func (o *Orchestrator) shutdown(ctx context.Context) error {
	o.state = StateFlushing

	o.logger.Info().Int("pending", o.batches.Pending()).Msg("Scanner stopping")

	timeout := time.Duration(o.batches.Pending()+1) * o.cfg.RequestTimeout.Std()
	if timeout < minShutdownFlushTime {
		timeout = minShutdownFlushTime
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if n := o.batches.ForceFlush(flushCtx); n > 0 {
		o.logger.Info().Int("submitted", n).Msg("Submitted remaining detections")
	}

	stats := o.batches.Stats()
	o.session.Submitted = stats.Submitted
	o.session.Failed = stats.Failed

	if err := o.client.Close(); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to close collection client")
	}

	o.state = StateTerminated

	o.logger.Info().
		Int("cycles", o.session.Cycles).
		Int("unique_beacons", o.session.UniqueBeacons()).
		Int("total_submitted", o.session.Submitted).
		Int("total_failed", o.session.Failed).
		Msg("Scanner stopped")

	return nil
}
