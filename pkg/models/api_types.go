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

// Package models pkg/models/api_types.go
package models

// Group is a project on the collection service that producers register against.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// GroupList is the body returned by the project listing endpoint.
type GroupList struct {
	Projects []Group `json:"projects"`
}

// Participant is the backend identity a memorable id resolves to.
type Participant struct {
	ParticipantID string `json:"participant_id"`
	MemorableID   string `json:"memorable_id,omitempty"`
}

// ParticipantQuery selects a participant by any of its identifiers. At least one is required.
type ParticipantQuery struct {
	MemorableID string
	Email       string
	ExternalID  string
}

// Registration describes this scanner as a data producer.
type Registration struct {
	ProducerID   string                 `json:"producer_id"`
	Name         string                 `json:"name"`
	ProducerType string                 `json:"producer_type"`
	ProjectID    string                 `json:"project_id"`
	Organization string                 `json:"organization,omitempty"`
	Version      string                 `json:"version,omitempty"`
	Config       map[string]interface{} `json:"config_json,omitempty"`
}

// Record is the payload submitted for one detection.
type Record struct {
	ExternalID     string                 `json:"external_id"`
	ParticipantID  string                 `json:"participant_id"`
	ExperimentType string                 `json:"experiment_type"`
	ExperimentDate string                 `json:"experiment_date"`
	SourceSystem   string                 `json:"source_system,omitempty"`
	QualityScore   float64                `json:"quality_score"`
	SummaryData    BeaconSummary          `json:"summary_data"`
	ExtraJSON      map[string]interface{} `json:"extra_json,omitempty"`
}

// BeaconSummary is the nested summary object of a Record.
type BeaconSummary struct {
	ScannerLocation    string   `json:"scanner_location"`
	BeaconMAC          string   `json:"beacon_mac"`
	RSSI               float64  `json:"rssi"`
	SignalQuality      string   `json:"signal_quality"`
	DetectionTimestamp string   `json:"detection_timestamp"`
	BeaconName         string   `json:"beacon_name,omitempty"`
	BatteryLevel       *float64 `json:"battery_level,omitempty"`
	MovementPattern    string   `json:"movement_pattern,omitempty"`
}

// SubmitResult is the acknowledgement returned for an accepted Record.
type SubmitResult struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id,omitempty"`
}

// RecordQuery filters previously submitted records. Empty fields do not filter.
type RecordQuery struct {
	ParticipantID  string
	ProjectID      string
	ExperimentType string
	// Limit caps the result size; zero uses the service default of 100.
	Limit int
}

// StoredRecord is a Record as returned by the query endpoints.
type StoredRecord struct {
	ID string `json:"id"`
	Record
}

// RecordQueryResult is the body of the record query endpoint.
type RecordQueryResult struct {
	Data []StoredRecord `json:"data"`
}

// ParticipantRecordList is the body of the per-participant record listing.
type ParticipantRecordList struct {
	Experiments []StoredRecord `json:"experiments"`
}
