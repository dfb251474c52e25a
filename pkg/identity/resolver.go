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

// Package identity resolves memorable beacon ids to backend participant ids and caches the answers.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/beaconradar/pkg/delivery"
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/metrics"
	"github.com/carverauto/beaconradar/pkg/models"
)

// Lookup is the backend call the resolver falls back to on a cache miss.
// delivery.Client satisfies it.
type Lookup interface {
	LookupIdentity(ctx context.Context, memorableID string) (*models.Participant, error)
}

// Stats are the resolver's running counters.
type Stats struct {
	Hits   int
	Misses int
}

// Resolver caches successful lookups for the life of the process. Failures are never
// cached so a beacon registered later resolves on a following attempt.
//
// A Resolver is owned by a single goroutine and is not safe for concurrent use.
type Resolver struct {
	lookup  Lookup
	cache   map[string]string
	offline bool
	stats   Stats
	logger  logger.Logger
	now     func() time.Time
}

func NewResolver(lookup Lookup, log logger.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  make(map[string]string),
		logger: log,
		now:    time.Now,
	}
}

// SetOffline suppresses backend lookups; cache hits are still served.
func (r *Resolver) SetOffline(offline bool) {
	r.offline = offline
}

func (r *Resolver) Offline() bool {
	return r.offline
}

// Resolve returns the participant id for memorableID. Any failure, including transport
// errors, is reported as delivery.ErrNotFound wrapping the cause.
func (r *Resolver) Resolve(ctx context.Context, memorableID string) (string, error) {
	if participantID, ok := r.cache[memorableID]; ok {
		r.stats.Hits++
		metrics.RecordIdentityLookup(ctx, metrics.ResolvedViaCache, true, 0)

		return participantID, nil
	}

	r.stats.Misses++

	if r.offline {
		return "", fmt.Errorf("%w: %q: %w", delivery.ErrNotFound, memorableID, delivery.ErrDegraded)
	}

	start := r.now()
	participant, err := r.lookup.LookupIdentity(ctx, memorableID)
	elapsed := r.now().Sub(start)

	if err != nil {
		metrics.RecordIdentityLookup(ctx, metrics.ResolvedViaBackend, false, elapsed)

		return "", fmt.Errorf("%w: %q: %w", delivery.ErrNotFound, memorableID, err)
	}

	metrics.RecordIdentityLookup(ctx, metrics.ResolvedViaBackend, true, elapsed)

	r.cache[memorableID] = participant.ParticipantID

	r.logger.Debug().
		Str("memorable_id", memorableID).
		Str("participant_id", participant.ParticipantID).
		Msg("Resolved participant")

	return participant.ParticipantID, nil
}

// ResolveDetection fills in the detection's backend identity. Already resolved detections
// are left alone; unmapped ones fail with delivery.ErrValidation.
func (r *Resolver) ResolveDetection(ctx context.Context, d *models.Detection) error {
	switch d.Identity.State() {
	case models.IdentityResolved:
		return nil
	case models.IdentityUnmapped:
		return fmt.Errorf("%w: beacon %s has no memorable id", delivery.ErrValidation, d.BeaconID)
	case models.IdentityMapped:
	}

	memorableID, _ := d.Identity.MemorableID()

	participantID, err := r.Resolve(ctx, memorableID)
	if err != nil {
		return err
	}

	d.Identity = d.Identity.Resolve(participantID)

	return nil
}

// Len reports the number of cached identities.
func (r *Resolver) Len() int {
	return len(r.cache)
}

func (r *Resolver) Stats() Stats {
	return r.stats
}
