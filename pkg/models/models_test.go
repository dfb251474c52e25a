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

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityStates(t *testing.T) {
	tests := []struct {
		name        string
		identity    Identity
		state       IdentityState
		submittable bool
	}{
		{name: "zero value", identity: Identity{}, state: IdentityUnmapped},
		{name: "blank memorable id", identity: Mapped("  "), state: IdentityUnmapped},
		{name: "mapped", identity: Mapped("soft-plum-snake"), state: IdentityMapped},
		{name: "resolved", identity: Mapped("soft-plum-snake").Resolve("p-1"), state: IdentityResolved, submittable: true},
		{name: "unmapped cannot resolve", identity: Unmapped().Resolve("p-1"), state: IdentityUnmapped},
		{name: "blank participant", identity: Mapped("soft-plum-snake").Resolve(""), state: IdentityMapped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, tt.identity.State())
			assert.Equal(t, tt.submittable, tt.identity.Submittable())
		})
	}
}

func TestIdentityAccessors(t *testing.T) {
	id := Mapped("brave-amber-lynx")

	memorable, ok := id.MemorableID()
	assert.True(t, ok)
	assert.Equal(t, "brave-amber-lynx", memorable)

	_, ok = id.ParticipantID()
	assert.False(t, ok)

	participant, ok := id.Resolve("42").ParticipantID()
	assert.True(t, ok)
	assert.Equal(t, "42", participant)
	assert.Equal(t, "resolved", IdentityResolved.String())
}

func TestNewDetectionNormalizesID(t *testing.T) {
	d := NewDetection(" aa:bb:cc:dd:ee:01 ", -60, time.Unix(0, 0), "hallway")

	assert.Equal(t, "AA:BB:CC:DD:EE:01", d.BeaconID)
	assert.Equal(t, "AABBCCDDEE01", d.CompactBeaconID())
	assert.Equal(t, IdentityUnmapped, d.Identity.State())
}

func TestDurationJSON(t *testing.T) {
	var cfg struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a": "1m30s", "b": 2000000000}`), &cfg))
	assert.Equal(t, 90*time.Second, cfg.A.Std())
	assert.Equal(t, 2*time.Second, cfg.B.Std())

	out, err := json.Marshal(cfg.A)
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"a": true}`), &cfg))
	require.Error(t, json.Unmarshal([]byte(`{"a": "soon"}`), &cfg))
}

func TestFilterSensitiveFields(t *testing.T) {
	type nested struct {
		Token string `json:"token" sensitive:"true"`
		Host  string `json:"host"`
	}

	input := struct {
		APIKey   string            `json:"api_key" sensitive:"true"`
		Location string            `json:"location,omitempty"`
		Interval Duration          `json:"interval"`
		Nested   *nested           `json:"nested"`
		Tags     []string          `json:"tags"`
		Labels   map[string]string `json:"labels"`
		Skipped  string            `json:"-"`
		internal string
	}{
		APIKey:   "secret",
		Location: "exit",
		Interval: Duration(time.Second),
		Nested:   &nested{Token: "t", Host: "nats"},
		Tags:     []string{"x"},
		Labels:   map[string]string{"k": "v"},
		Skipped:  "s",
		internal: "i",
	}

	got, err := FilterSensitiveFields(&input)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"location": "exit",
		"interval": Duration(time.Second),
		"nested":   map[string]interface{}{"host": "nats"},
		"tags":     []interface{}{"x"},
		"labels":   map[string]interface{}{"k": "v"},
	}, got)

	_, err = FilterSensitiveFields("not a struct")
	require.Error(t, err)

	empty, err := FilterSensitiveFields(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
