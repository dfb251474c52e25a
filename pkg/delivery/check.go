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
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
)

const (
	checkLocation   = "connection-check"
	checkBeaconMAC  = "AA:BB:CC:DD:EE:FF"
	checkProducerID = "beaconradar-connection-check"
	checkRSSI       = -55.5
	checkQueryLimit = 5
)

// CheckClient is what a connection check needs: the delivery contract plus read-back.
type CheckClient interface {
	Client
	RecordReader
}

// CheckOptions configures Check.
type CheckOptions struct {
	// MemorableIDs are looked up in order; the first one found receives the test record.
	MemorableIDs []string
	Location     string
	BeaconMAC    string
	ProducerID   string
	// Submit sends one test record and reads it back. Without it the check is read-only.
	Submit bool
}

// CheckReport is what Check learned about the collection service.
type CheckReport struct {
	Healthy bool
	Groups  []models.Group
	// Participants maps each memorable id found to its participant id.
	Participants map[string]string
	Missing      []string
	ExternalID   string
	ReadBack     bool
}

// Check walks the collection service end to end: health, project listing, participant
// lookups and, with opts.Submit, one submitted record that must be readable afterwards.
// Any failed step is reported as ErrCheckFailed; the report holds what succeeded.
func Check(ctx context.Context, client CheckClient, opts CheckOptions, log logger.Logger) (*CheckReport, error) {
	report := &CheckReport{Participants: make(map[string]string)}

	report.Healthy = client.HealthCheck(ctx)
	if !report.Healthy {
		return report, fmt.Errorf("%w: health: %w", ErrCheckFailed, ErrDegraded)
	}

	log.Info().Msg("Collection service is healthy")

	groups, err := client.ListGroups(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not list projects")
	} else {
		report.Groups = groups

		for _, g := range groups {
			log.Info().Str("project_id", g.ID).Str("display_name", g.DisplayName).Msg("Project available")
		}
	}

	var (
		memorableID   string
		participantID string
	)

	for _, id := range opts.MemorableIDs {
		p, err := client.FindParticipant(ctx, models.ParticipantQuery{MemorableID: id})
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Warn().Err(err).Str("memorable_id", id).Msg("Participant lookup failed")
			}

			report.Missing = append(report.Missing, id)

			continue
		}

		report.Participants[id] = p.ParticipantID

		if participantID == "" {
			memorableID, participantID = id, p.ParticipantID
		}

		log.Info().Str("memorable_id", id).Str("participant_id", p.ParticipantID).Msg("Participant found")
	}

	if !opts.Submit {
		return report, nil
	}

	if participantID == "" {
		return report, fmt.Errorf("%w: no participant to submit for: %w", ErrCheckFailed, ErrNotFound)
	}

	record, err := checkRecord(opts, memorableID, participantID)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}

	if _, err := client.SubmitRecord(ctx, record); err != nil {
		return report, fmt.Errorf("%w: submit: %w", ErrCheckFailed, err)
	}

	report.ExternalID = record.ExternalID

	log.Info().Str("external_id", record.ExternalID).Msg("Test record submitted")

	found, err := readBack(ctx, client, participantID, record.ExternalID)
	if err != nil {
		return report, fmt.Errorf("%w: read-back: %w", ErrCheckFailed, err)
	}

	if !found {
		return report, fmt.Errorf("%w: record %s not returned by queries", ErrCheckFailed, record.ExternalID)
	}

	report.ReadBack = true

	log.Info().Str("external_id", record.ExternalID).Msg("Test record read back")

	return report, nil
}

func checkRecord(opts CheckOptions, memorableID, participantID string) (*models.Record, error) {
	location := opts.Location
	if location == "" {
		location = checkLocation
	}

	mac := opts.BeaconMAC
	if mac == "" {
		mac = checkBeaconMAC
	}

	producerID := opts.ProducerID
	if producerID == "" {
		producerID = checkProducerID
	}

	d := models.NewDetection(mac, checkRSSI, time.Now(), location)
	d.Identity = models.Mapped(memorableID).Resolve(participantID)

	return BuildRecord(d, RecordOptions{
		ProducerID: producerID,
		Extra:      map[string]interface{}{"connection_check": true},
	})
}

// readBack looks for externalID among the participant's recent records, then in the
// full per-participant listing.
func readBack(ctx context.Context, client RecordReader, participantID, externalID string) (bool, error) {
	recent, err := client.QueryRecords(ctx, models.RecordQuery{
		ParticipantID:  participantID,
		ExperimentType: ExperimentType,
		Limit:          checkQueryLimit,
	})
	if err != nil {
		return false, err
	}

	if containsRecord(recent, externalID) {
		return true, nil
	}

	all, err := client.ParticipantRecords(ctx, participantID, ExperimentType)
	if err != nil {
		return false, err
	}

	return containsRecord(all, externalID), nil
}

func containsRecord(records []models.StoredRecord, externalID string) bool {
	for i := range records {
		if records[i].ExternalID == externalID {
			return true
		}
	}

	return false
}
