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

package delivery

import (
	"context"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
)

const dryRunParticipantPrefix = "dry-run-"

// DryRunClient performs no network I/O. It logs what would have been sent and reports
// success for every call, so the pipeline can run without a backend.
type DryRunClient struct {
	logger logger.Logger
}

var _ Client = (*DryRunClient)(nil)

func NewDryRunClient(log logger.Logger) *DryRunClient {
	return &DryRunClient{logger: log}
}

func (*DryRunClient) HealthCheck(context.Context) bool {
	return true
}

func (c *DryRunClient) ListGroups(context.Context) ([]models.Group, error) {
	return []models.Group{{ID: "dry-run", Name: "Dry run beacons"}}, nil
}

func (c *DryRunClient) Register(_ context.Context, reg *models.Registration) error {
	c.logger.Info().
		Str("producer_id", reg.ProducerID).
		Str("project_id", reg.ProjectID).
		Msg("[dry-run] would register producer")

	return nil
}

// LookupIdentity resolves every memorable id to a synthetic participant id.
func (c *DryRunClient) LookupIdentity(_ context.Context, memorableID string) (*models.Participant, error) {
	c.logger.Debug().Str("memorable_id", memorableID).Msg("[dry-run] would look up participant")

	return &models.Participant{ParticipantID: dryRunParticipantPrefix + memorableID, MemorableID: memorableID}, nil
}

func (c *DryRunClient) SubmitRecord(_ context.Context, record *models.Record) (*models.SubmitResult, error) {
	c.logger.Info().
		Str("external_id", record.ExternalID).
		Str("participant_id", record.ParticipantID).
		Str("beacon", record.SummaryData.BeaconMAC).
		Float64("rssi", record.SummaryData.RSSI).
		Float64("quality_score", record.QualityScore).
		Msg("[dry-run] would submit record")

	return &models.SubmitResult{ExternalID: record.ExternalID}, nil
}

func (*DryRunClient) Close() error {
	return nil
}
