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

package identity

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
	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
)

func TestResolveCachesHits(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().
		LookupIdentity(gomock.Any(), "soft-plum-snake").
		Return(&models.Participant{ParticipantID: "P-001"}, nil).
		Times(1)

	r := NewResolver(client, logger.NewTestLogger())

	for i := 0; i < 3; i++ {
		id, err := r.Resolve(context.Background(), "soft-plum-snake")
		require.NoError(t, err)
		assert.Equal(t, "P-001", id)
	}

	assert.Equal(t, Stats{Hits: 2, Misses: 1}, r.Stats())
	assert.Equal(t, 1, r.Len())
}

func TestResolveDoesNotCacheNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	gomock.InOrder(
		client.EXPECT().
			LookupIdentity(gomock.Any(), "brave-amber-lynx").
			Return(nil, fmt.Errorf("%w: participant", delivery.ErrNotFound)),
		client.EXPECT().
			LookupIdentity(gomock.Any(), "brave-amber-lynx").
			Return(&models.Participant{ParticipantID: "P-002"}, nil),
	)

	r := NewResolver(client, logger.NewTestLogger())

	_, err := r.Resolve(context.Background(), "brave-amber-lynx")
	require.ErrorIs(t, err, delivery.ErrNotFound)
	assert.Equal(t, 0, r.Len())

	id, err := r.Resolve(context.Background(), "brave-amber-lynx")
	require.NoError(t, err)
	assert.Equal(t, "P-002", id)
}

func TestResolveTransportFailureIsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().
		LookupIdentity(gomock.Any(), "quick-jade-fox").
		Return(nil, fmt.Errorf("%w: timeout", delivery.ErrTransport)).
		Times(2)

	r := NewResolver(client, logger.NewTestLogger())

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "quick-jade-fox")
		require.ErrorIs(t, err, delivery.ErrNotFound)
		require.ErrorIs(t, err, delivery.ErrTransport)
	}
}

func TestResolveOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().
		LookupIdentity(gomock.Any(), "soft-plum-snake").
		Return(&models.Participant{ParticipantID: "P-001"}, nil)

	r := NewResolver(client, logger.NewTestLogger())

	_, err := r.Resolve(context.Background(), "soft-plum-snake")
	require.NoError(t, err)

	r.SetOffline(true)
	assert.True(t, r.Offline())

	id, err := r.Resolve(context.Background(), "soft-plum-snake")
	require.NoError(t, err)
	assert.Equal(t, "P-001", id)

	_, err = r.Resolve(context.Background(), "quick-jade-fox")
	require.ErrorIs(t, err, delivery.ErrNotFound)
	require.ErrorIs(t, err, delivery.ErrDegraded)
}

func TestResolveDetection(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := delivery.NewMockClient(ctrl)

	client.EXPECT().
		LookupIdentity(gomock.Any(), "soft-plum-snake").
		Return(&models.Participant{ParticipantID: "P-001"}, nil)

	r := NewResolver(client, logger.NewTestLogger())

	d := models.NewDetection("AA:BB:CC:DD:EE:01", -60, time.Now(), "hallway")
	d.Identity = models.Mapped("soft-plum-snake")

	require.NoError(t, r.ResolveDetection(context.Background(), d))
	assert.True(t, d.Identity.Submittable())

	// already resolved: no further lookup
	require.NoError(t, r.ResolveDetection(context.Background(), d))

	unmapped := models.NewDetection("AA:BB:CC:DD:EE:09", -60, time.Now(), "hallway")
	err := r.ResolveDetection(context.Background(), unmapped)
	require.ErrorIs(t, err, delivery.ErrValidation)
	assert.False(t, errors.Is(err, delivery.ErrNotFound))
}
