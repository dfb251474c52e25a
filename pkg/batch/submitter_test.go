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

package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/beaconradar/pkg/delivery"
	"github.com/carverauto/beaconradar/pkg/identity"
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/scoring"
)

type sinkCall struct {
	producerID string
	externalID string
}

type fakeSink struct {
	calls []sinkCall
	err   error
}

func (f *fakeSink) PublishDetection(_ context.Context, producerID string, record *models.Record, _ *models.SubmitResult) error {
	f.calls = append(f.calls, sinkCall{producerID: producerID, externalID: record.ExternalID})

	return f.err
}

func mappedDetection(mac, memorableID string) *models.Detection {
	d := models.NewDetection(mac, -55, time.Now(), "entrance")
	d.Identity = models.Mapped(memorableID)

	return d
}

func newSubmitter(client delivery.Client, cfg SubmitterConfig) *DetectionSubmitter {
	log := logger.NewTestLogger()

	return NewDetectionSubmitter(client, identity.NewResolver(client, log), cfg, log)
}

func TestSubmitResolvesAndSubmits(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().
		LookupIdentity(gomock.Any(), "soft-plum-snake").
		Return(&models.Participant{ParticipantID: "P-001"}, nil)
	client.EXPECT().
		SubmitRecord(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *models.Record) (*models.SubmitResult, error) {
			assert.Equal(t, "P-001", rec.ParticipantID)
			assert.Equal(t, "scanner-entrance", rec.SourceSystem)
			assert.Equal(t, string(scoring.TierGood), rec.SummaryData.SignalQuality)

			return &models.SubmitResult{ID: "exp-1", ExternalID: rec.ExternalID}, nil
		})

	sink := &fakeSink{err: errors.New("nats down")}
	s := newSubmitter(client, SubmitterConfig{ProducerID: "scanner-entrance"})
	s.SetSink(sink)

	require.NoError(t, s.Submit(context.Background(), mappedDetection("AA:BB:CC:DD:EE:01", "soft-plum-snake")))
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "scanner-entrance", sink.calls[0].producerID)
}

func TestSubmitUnmappedFailsWithoutNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	s := newSubmitter(client, SubmitterConfig{})

	d := models.NewDetection("AA:BB:CC:DD:EE:99", -55, time.Now(), "entrance")
	err := s.Submit(context.Background(), d)
	require.ErrorIs(t, err, delivery.ErrValidation)
}

func TestSubmitTransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().
		LookupIdentity(gomock.Any(), "quick-jade-fox").
		Return(&models.Participant{ParticipantID: "P-003"}, nil)
	client.EXPECT().
		SubmitRecord(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: deadline exceeded", delivery.ErrTransport))

	s := newSubmitter(client, SubmitterConfig{})

	err := s.Submit(context.Background(), mappedDetection("AA:BB:CC:DD:EE:03", "quick-jade-fox"))
	require.ErrorIs(t, err, delivery.ErrTransport)
}

func TestDryRunNeverCallsClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().SubmitRecord(gomock.Any(), gomock.Any()).Times(0)
	client.EXPECT().LookupIdentity(gomock.Any(), gomock.Any()).Times(0)

	s := newSubmitter(client, SubmitterConfig{DryRun: true})
	m := NewManager(Config{Immediate: true}, s, nil, logger.NewTestLogger())

	in := []*models.Detection{
		mappedDetection("AA:BB:CC:DD:EE:01", "soft-plum-snake"),
		models.NewDetection("AA:BB:CC:DD:EE:99", -80, time.Now(), "entrance"),
	}

	assert.Equal(t, 2, m.Offer(context.Background(), in))
	assert.Equal(t, Stats{Submitted: 2}, m.Stats())
}

func TestUnresolvedDetectionCountsAsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().
		LookupIdentity(gomock.Any(), "soft-plum-snake").
		Return(&models.Participant{ParticipantID: "P-001"}, nil)
	client.EXPECT().
		SubmitRecord(gomock.Any(), gomock.Any()).
		Return(&models.SubmitResult{ID: "exp-1"}, nil)

	m := NewManager(Config{MaxSize: 2}, newSubmitter(client, SubmitterConfig{}), nil, logger.NewTestLogger())

	in := []*models.Detection{
		mappedDetection("AA:BB:CC:DD:EE:01", "soft-plum-snake"),
		models.NewDetection("AA:BB:CC:DD:EE:99", -60, time.Now(), "entrance"),
	}

	assert.Equal(t, 1, m.Offer(context.Background(), in))
	assert.Equal(t, Stats{Submitted: 1, Failed: 1, Flushes: 1}, m.Stats())
	assert.Equal(t, 0, m.Pending())
}
