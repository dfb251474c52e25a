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

// Package simulator drives a set of virtual beacons through a small building and
// submits what each room's scanner would have detected.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/beaconradar/pkg/batch"
	"github.com/carverauto/beaconradar/pkg/delivery"
	"github.com/carverauto/beaconradar/pkg/identity"
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/metrics"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/scoring"
	"github.com/carverauto/beaconradar/pkg/version"
)

// Version is reported in every record's extra_json.
const Version = "3.0"

const (
	producerType = "beacon_scanner"
	tracerName   = "beaconradar.simulator"
)

// Clock abstracts time for the simulation loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Station is the virtual scanner of one room.
type Station struct {
	ScannerID  string
	ProducerID string
	Location   Location
	Registered bool
}

// Stats are the simulator's running totals.
type Stats struct {
	Scans      int
	Detections int
	Submitted  int
	Failed     int
}

// StepResult summarizes one simulated scan.
type StepResult struct {
	Detections int
	Submitted  int
}

// Option customizes a Simulator.
type Option func(*Simulator)

func WithClock(clock Clock) Option {
	return func(s *Simulator) {
		s.clock = clock
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) {
		s.rng = rng
	}
}

// WithRecordSink mirrors every accepted record to sink.
func WithRecordSink(sink batch.RecordSink) Option {
	return func(s *Simulator) {
		s.sink = sink
	}
}

// Simulator owns the virtual world. It is driven by a single goroutine.
type Simulator struct {
	cfg      *Config
	client   delivery.Client
	resolver *identity.Resolver
	sink     batch.RecordSink
	clock    Clock
	rng      *rand.Rand
	logger   logger.Logger

	participantID string
	projectID     string
	beacons       []*Beacon
	stations      []*Station
	stats         Stats
}

func New(cfg *Config, client delivery.Client, log logger.Logger, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:    cfg,
		client: client,
		clock:  realClock{},
		logger: log,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}

		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}

	s.resolver = identity.NewResolver(client, log.WithComponent("identity"))

	return s
}

func (s *Simulator) Beacons() []*Beacon   { return s.beacons }
func (s *Simulator) Stations() []*Station { return s.stations }
func (s *Simulator) Stats() Stats         { return s.stats }

// Setup checks the backend, resolves the test participant, picks a project, places the
// beacons and registers one producer per room. Any failure before registration is fatal;
// a room whose registration fails is simply skipped.
func (s *Simulator) Setup(ctx context.Context) error {
	if !s.client.HealthCheck(ctx) {
		return fmt.Errorf("%w: collection service at %s is not healthy", delivery.ErrDegraded, s.cfg.APIURL)
	}

	participantID, err := s.resolver.Resolve(ctx, s.cfg.MemorableID)
	if err != nil {
		return fmt.Errorf("test participant: %w", err)
	}

	s.participantID = participantID

	s.logger.Info().
		Str("memorable_id", s.cfg.MemorableID).
		Str("participant_id", participantID).
		Msg("Found test participant")

	groups, err := s.client.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	group, err := delivery.SelectGroup(groups)
	if err != nil {
		return err
	}

	s.projectID = group.ID

	s.logger.Info().Str("project_id", group.ID).Str("name", group.Name).Msg("Selected project")

	s.beacons = defaultBeacons(s.rng, s.clock.Now())

	for _, b := range s.beacons {
		s.logger.Info().
			Str("beacon", b.MAC).
			Str("name", b.Name).
			Str("location", string(b.Location)).
			Str("pattern", string(b.Pattern)).
			Msg("Initialized beacon")
	}

	s.registerStations(ctx)

	return nil
}

func (s *Simulator) registerStations(ctx context.Context) {
	s.stations = make([]*Station, 0, len(Locations))

	registered := 0

	for _, loc := range Locations {
		st := &Station{
			ScannerID:  "scanner-" + string(loc),
			ProducerID: "beacon-scanner-sim-" + string(loc),
			Location:   loc,
		}

		s.stations = append(s.stations, st)

		err := s.client.Register(ctx, &models.Registration{
			ProducerID:   st.ProducerID,
			Name:         "Beacon Scanner - " + string(loc),
			ProducerType: producerType,
			ProjectID:    s.projectID,
			Organization: s.cfg.Organization,
			Version:      version.GetVersion(),
			Config: map[string]interface{}{
				"location":        string(loc),
				"detection_range": DetectionRange,
				"simulator":       true,
				"scan_interval":   s.cfg.ScanInterval.Std().Seconds(),
			},
		})
		if err != nil {
			s.logger.Error().Err(err).Str("location", string(loc)).Msg("Failed to register scanner")

			continue
		}

		st.Registered = true
		registered++
	}

	s.logger.Info().Int("registered", registered).Int("total", len(s.stations)).Msg("Initialized scanners")
}

// Step moves every beacon, drains batteries and submits each detection a registered
// station makes. Cancellation is checked before each submission.
func (s *Simulator) Step(ctx context.Context) StepResult {
	now := s.clock.Now()
	s.stats.Scans++

	ctx, span := logger.GetTracer(tracerName).Start(ctx, "simulator.step",
		trace.WithAttributes(attribute.Int("scan", s.stats.Scans)))
	defer span.End()

	for _, b := range s.beacons {
		from := b.Location
		if b.Move(s.rng, now) {
			s.logger.Info().
				Str("beacon", b.MAC).
				Str("from", string(from)).
				Str("to", string(b.Location)).
				Msg("Beacon moved")
		}

		b.Drain()
	}

	var result StepResult

	for _, st := range s.stations {
		if !st.Registered {
			continue
		}

		for _, b := range s.beacons {
			rssi, ok := RSSI(s.rng, b, st.Location)
			if !ok {
				continue
			}

			result.Detections++

			if ctx.Err() != nil {
				continue
			}

			if err := s.submit(ctx, st, b, rssi, now); err != nil {
				s.stats.Failed++

				s.logger.Error().
					Err(err).
					Str("beacon", b.MAC).
					Str("location", string(st.Location)).
					Msg("Failed to submit detection")

				continue
			}

			result.Submitted++
		}
	}

	s.stats.Detections += result.Detections
	s.stats.Submitted += result.Submitted

	span.SetAttributes(
		attribute.Int("detections", result.Detections),
		attribute.Int("submitted", result.Submitted),
	)

	return result
}

func (s *Simulator) submit(ctx context.Context, st *Station, b *Beacon, rssi float64, now time.Time) error {
	d := models.NewDetection(b.MAC, round(rssi, 1), now, string(st.Location))
	d.Identity = models.Mapped(s.cfg.MemorableID)

	battery := round(b.Battery, 2)
	d.Battery = &battery

	if err := s.resolver.ResolveDetection(ctx, d); err != nil {
		metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeUnresolved)

		return err
	}

	record, err := delivery.BuildRecord(d, delivery.RecordOptions{
		ProducerID:      st.ProducerID,
		ScoringMode:     scoring.ModeRSSIBattery,
		SubmittedAt:     now,
		BeaconName:      b.Name,
		MovementPattern: string(b.Pattern),
		Extra: map[string]interface{}{
			"simulator_version":        Version,
			"scanner_id":               st.ScannerID,
			"participant_memorable_id": s.cfg.MemorableID,
		},
	})
	if err != nil {
		return err
	}

	result, err := s.client.SubmitRecord(ctx, record)
	if err != nil {
		metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeFailed)

		return err
	}

	metrics.RecordSubmission(ctx, d.Location, metrics.OutcomeSubmitted)

	s.logger.Debug().
		Str("beacon", b.Name).
		Str("location", d.Location).
		Float64("rssi", d.RSSI).
		Str("external_id", record.ExternalID).
		Msg("Detection submitted")

	if s.sink != nil {
		if err := s.sink.PublishDetection(ctx, st.ProducerID, record, result); err != nil {
			s.logger.Warn().Err(err).Str("external_id", record.ExternalID).Msg("Failed to publish detection event")
		}
	}

	return nil
}

// Run sets the world up and steps it every scan interval until the configured duration
// has elapsed or ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.Setup(ctx); err != nil {
		return err
	}

	start := s.clock.Now()
	end := start.Add(s.cfg.Duration.Std())
	interval := s.cfg.ScanInterval.Std()

	s.logger.Info().
		Dur("duration", s.cfg.Duration.Std()).
		Dur("interval", interval).
		Int("beacons", len(s.beacons)).
		Msg("Starting simulation")

	for s.clock.Now().Before(end) && ctx.Err() == nil {
		cycleStart := s.clock.Now()
		result := s.Step(ctx)

		metrics.RecordCycle(ctx, "simulator", s.clock.Now().Sub(cycleStart), result.Detections)

		s.logger.Info().
			Int("scan", s.stats.Scans).
			Int("detections", result.Detections).
			Int("submitted", result.Submitted).
			Dur("remaining", end.Sub(s.clock.Now())).
			Msg("Simulated scan complete")

		for _, b := range s.beacons {
			s.logger.Debug().
				Str("beacon", b.Name).
				Str("location", string(b.Location)).
				Float64("battery", b.Battery).
				Str("pattern", string(b.Pattern)).
				Msg("Beacon status")
		}

		if ctx.Err() != nil || !s.clock.Now().Before(end) {
			break
		}

		select {
		case <-ctx.Done():
		case <-s.clock.After(interval):
		}
	}

	s.logger.Info().
		Int("scans", s.stats.Scans).
		Int("detections", s.stats.Detections).
		Int("submitted", s.stats.Submitted).
		Int("failed", s.stats.Failed).
		Str("project_id", s.projectID).
		Msg("Simulation finished")

	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))

	return math.Round(v*p) / p
}
