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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/scoring"
)

const (
	// ExperimentType tags every record produced from a beacon detection.
	ExperimentType = "beacon_tracking"

	externalIDTimeLayout = "20060102-150405"
	externalIDSuffixLen  = 8
)

// RecordOptions carries the per-producer and per-submission inputs of BuildRecord.
type RecordOptions struct {
	ProducerID  string
	ScoringMode scoring.Mode
	// SubmittedAt stamps experiment_date and the external id. Zero means time.Now().
	SubmittedAt time.Time

	BeaconName      string
	MovementPattern string
	// Extra is merged into extra_json after the built-in keys.
	Extra map[string]interface{}
}

// ExternalID derives the record id from location, submission time and beacon, plus a random
// suffix so two submissions of the same beacon within one second stay distinct.
func ExternalID(d *models.Detection, at time.Time) string {
	return fmt.Sprintf("BEACON-%s-%s-%s-%s",
		d.Location,
		at.UTC().Format(externalIDTimeLayout),
		d.CompactBeaconID(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:externalIDSuffixLen])
}

// BuildRecord turns a resolved detection into a submission payload.
// It returns ErrValidation when the detection's identity is not resolved.
func BuildRecord(d *models.Detection, opts RecordOptions) (*models.Record, error) {
	participantID, ok := d.Identity.ParticipantID()
	if !ok {
		return nil, fmt.Errorf("%w: beacon %s has %s identity", ErrValidation, d.BeaconID, d.Identity.State())
	}

	at := opts.SubmittedAt
	if at.IsZero() {
		at = time.Now()
	}

	mode := opts.ScoringMode
	if mode == "" {
		mode = scoring.ModeRSSI
	}

	result := mode.Evaluate(d)

	extra := map[string]interface{}{
		"scoring_mode": mode.String(),
	}

	if memorableID, ok := d.Identity.MemorableID(); ok {
		extra["memorable_id"] = memorableID
	}

	if d.Battery != nil {
		extra["battery_level"] = *d.Battery
	}

	if len(d.RawMetadata) > 0 {
		extra["raw_metadata"] = d.RawMetadata
	}

	for k, v := range opts.Extra {
		extra[k] = v
	}

	return &models.Record{
		ExternalID:     ExternalID(d, at),
		ParticipantID:  participantID,
		ExperimentType: ExperimentType,
		ExperimentDate: at.UTC().Format(time.RFC3339),
		SourceSystem:   opts.ProducerID,
		QualityScore:   result.Score,
		SummaryData: models.BeaconSummary{
			ScannerLocation:    d.Location,
			BeaconMAC:          d.BeaconID,
			RSSI:               d.RSSI,
			SignalQuality:      string(result.Tier),
			DetectionTimestamp: d.ObservedAt.UTC().Format(time.RFC3339Nano),
			BeaconName:         opts.BeaconName,
			BatteryLevel:       d.Battery,
			MovementPattern:    opts.MovementPattern,
		},
		ExtraJSON: extra,
	}, nil
}

// SelectGroup picks the registration group: the first whose name or display name mentions
// "beacon", else the first listed. An empty list yields ErrNotFound.
func SelectGroup(groups []models.Group) (*models.Group, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no projects available", ErrNotFound)
	}

	for i := range groups {
		name := strings.ToLower(groups[i].Name + " " + groups[i].DisplayName)
		if strings.Contains(name, "beacon") {
			return &groups[i], nil
		}
	}

	return &groups[0], nil
}
