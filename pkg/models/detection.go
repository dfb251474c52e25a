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
	"strings"
	"time"
)

// Detection is a single beacon sighting produced by one scanner during one scan cycle.
type Detection struct {
	BeaconID    string                 `json:"beacon_id"`
	RSSI        float64                `json:"rssi"`
	ObservedAt  time.Time              `json:"observed_at"`
	Location    string                 `json:"location"`
	Identity    Identity               `json:"-"`
	RawMetadata map[string]interface{} `json:"raw_metadata,omitempty"`

	// Battery is only reported by simulated beacons (0.0 to 1.0).
	Battery *float64 `json:"battery,omitempty"`
}

// NewDetection builds a Detection with a normalized beacon identifier and no mapped identity.
func NewDetection(beaconID string, rssi float64, observedAt time.Time, location string) *Detection {
	return &Detection{
		BeaconID:   NormalizeBeaconID(beaconID),
		RSSI:       rssi,
		ObservedAt: observedAt,
		Location:   location,
		Identity:   Unmapped(),
	}
}

// NormalizeBeaconID upper-cases and trims a hardware address so that the same
// physical beacon always produces the same key.
func NormalizeBeaconID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// CompactBeaconID returns the beacon identifier without separators, as used in external ids.
func (d *Detection) CompactBeaconID() string {
	return strings.NewReplacer(":", "", "-", "").Replace(d.BeaconID)
}
