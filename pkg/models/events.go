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

package models

import "time"

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// DetectionEventData is the CloudEvent payload mirrored for every accepted record.
type DetectionEventData struct {
	ExternalID    string        `json:"external_id"`
	ParticipantID string        `json:"participant_id"`
	ProducerID    string        `json:"producer_id"`
	QualityScore  float64       `json:"quality_score"`
	Summary       BeaconSummary `json:"summary"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	BackendID     string        `json:"backend_id,omitempty"`
}
