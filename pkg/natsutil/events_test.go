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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
)

var errTestFixture = errors.New("test fixture error")

type published struct {
	subject string
	payload []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.msgs = append(f.msgs, published{subject: subject, payload: payload})

	return &jetstream.PubAck{Stream: DefaultStream, Sequence: uint64(len(f.msgs))}, nil
}

func TestPublishDetection(t *testing.T) {
	js := &fakePublisher{}
	p := NewDetectionPublisher(js, "", "beaconradar/scanner-lab", logger.NewTestLogger())

	record := &models.Record{
		ExternalID:    "BEACON-lab-room-a-20250601-120000-AABBCCDDEE01-deadbeef",
		ParticipantID: "P-001",
		QualityScore:  0.5,
		SummaryData:   models.BeaconSummary{ScannerLocation: "lab-room-a", BeaconMAC: "AA:BB:CC:DD:EE:01"},
	}

	require.NoError(t, p.PublishDetection(context.Background(), "scanner-lab", record, &models.SubmitResult{ID: "exp-1"}))
	require.Len(t, js.msgs, 1)
	assert.Equal(t, "beacons.detections.lab-room-a", js.msgs[0].subject)

	var event struct {
		SpecVersion string                    `json:"specversion"`
		Type        string                    `json:"type"`
		Source      string                    `json:"source"`
		Data        models.DetectionEventData `json:"data"`
	}

	require.NoError(t, json.Unmarshal(js.msgs[0].payload, &event))
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, detectionEventType, event.Type)
	assert.Equal(t, "beaconradar/scanner-lab", event.Source)
	assert.Equal(t, record.ExternalID, event.Data.ExternalID)
	assert.Equal(t, "scanner-lab", event.Data.ProducerID)
	assert.Equal(t, "exp-1", event.Data.BackendID)
}

func TestPublishDetectionError(t *testing.T) {
	p := NewDetectionPublisher(&fakePublisher{err: errTestFixture}, "custom.", "src", logger.NewTestLogger())

	err := p.PublishDetection(context.Background(), "x", &models.Record{}, nil)
	require.ErrorIs(t, err, errTestFixture)
}

func TestDetectionSubject(t *testing.T) {
	assert.Equal(t, "beacons.detections.lab-room-a", DetectionSubject(DefaultSubjectPrefix, "lab-room-a"))
	assert.Equal(t, "p.lab_room_b", DetectionSubject("p", "lab.room b"))
	assert.Equal(t, "p.__", DetectionSubject("p", "*>"))
	assert.Equal(t, "p.unknown", DetectionSubject("p", ""))
}

func TestConnectRequiresURL(t *testing.T) {
	_, _, err := Connect(context.Background(), &EventsConfig{}, "src", logger.NewTestLogger())
	require.ErrorIs(t, err, errMissingURL)
}

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:    "adds subject when list empty",
			subject: "beacons.detections.>",
			want:    []string{"beacons.detections.>"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"beacons.>"},
			subject:  "beacons.detections.>",
			want:     []string{"beacons.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"events.poller.*"},
			subject:  "beacons.detections.>",
			want:     []string{"events.poller.*", "beacons.detections.>"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject))
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "beacons.detections.hallway", "beacons.detections.hallway", true},
		{"single wildcard", "beacons.*.hallway", "beacons.detections.hallway", true},
		{"greater wildcard", "beacons.>", "beacons.detections.hallway", true},
		{"greater wildcard needs a token", "beacons.detections.>", "beacons.detections", false},
		{"no match length", "beacons.*", "beacons.detections.hallway", false},
		{"no match tokens", "events.poller.*", "beacons.detections.hallway", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}
