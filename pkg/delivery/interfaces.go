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

//go:generate mockgen -destination=mock_delivery.go -package=delivery github.com/carverauto/beaconradar/pkg/delivery Client,HTTPDoer

package delivery

import (
	"context"
	"net/http"

	"github.com/carverauto/beaconradar/pkg/models"
)

// Client is the collection service as seen by the scanner and the simulator.
// Every call may fail with ErrTransport or ErrUnexpectedStatus.
type Client interface {
	HealthCheck(ctx context.Context) bool
	ListGroups(ctx context.Context) ([]models.Group, error)
	// Register is idempotent: an already registered producer is a success.
	Register(ctx context.Context, reg *models.Registration) error
	// LookupIdentity returns ErrNotFound when the memorable id is unknown.
	LookupIdentity(ctx context.Context, memorableID string) (*models.Participant, error)
	SubmitRecord(ctx context.Context, record *models.Record) (*models.SubmitResult, error)
	Close() error
}

// RecordReader reads back what the collection service stored. The scan loop never
// reads; connection checks and tooling do.
type RecordReader interface {
	// FindParticipant returns ErrNotFound when no participant matches and
	// ErrMissingIdentifier when the query is empty.
	FindParticipant(ctx context.Context, q models.ParticipantQuery) (*models.Participant, error)
	QueryRecords(ctx context.Context, q models.RecordQuery) ([]models.StoredRecord, error)
	ParticipantRecords(ctx context.Context, participantID, experimentType string) ([]models.StoredRecord, error)
}

// HTTPDoer is the subset of *http.Client used by HTTPClient.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
