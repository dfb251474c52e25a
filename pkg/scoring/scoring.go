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

// Package scoring maps raw signal strength readings to quality scores and tiers.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/carverauto/beaconradar/pkg/models"
)

var ErrUnknownMode = errors.New("unknown scoring mode")

const (
	// RSSIFloor is the reading that maps to a score of 0.
	RSSIFloor = -90.0
	// RSSICeiling is the reading that maps to a score of 1.
	RSSICeiling = -30.0

	rssiWeight    = 0.8
	batteryWeight = 0.2
)

// Tier is a discrete signal quality bucket.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// Tier lower bounds, inclusive.
const (
	excellentFloor = -50.0
	goodFloor      = -60.0
	fairFloor      = -70.0
)

// Result is the outcome of scoring one reading.
type Result struct {
	Score float64
	Tier  Tier
}

// Score normalizes rssi linearly between RSSIFloor and RSSICeiling, saturating outside
// that range, and rounds to two decimals.
func Score(rssi float64) float64 {
	return round2(normalized(rssi))
}

// TierFor buckets rssi directly; it is never derived from the score.
func TierFor(rssi float64) Tier {
	switch {
	case rssi >= excellentFloor:
		return TierExcellent
	case rssi >= goodFloor:
		return TierGood
	case rssi >= fairFloor:
		return TierFair
	default:
		return TierPoor
	}
}

// ScoreWithBattery blends the normalized signal with a battery level in [0, 1].
// Battery values outside that range are clamped.
func ScoreWithBattery(rssi, battery float64) float64 {
	return round2(rssiWeight*normalized(rssi) + batteryWeight*clamp(battery, 0, 1))
}

func normalized(rssi float64) float64 {
	return clamp((rssi-RSSIFloor)/(RSSICeiling-RSSIFloor), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}

	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Mode names a scoring variant selectable from configuration.
type Mode string

const (
	// ModeRSSI scores on signal strength alone.
	ModeRSSI Mode = "rssi"
	// ModeRSSIBattery blends in the beacon's battery level when one is reported.
	ModeRSSIBattery Mode = "rssi_battery"
)

// ParseMode accepts a mode name, case-insensitively. Empty selects ModeRSSI.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", ModeRSSI:
		return ModeRSSI, nil
	case ModeRSSIBattery:
		return ModeRSSIBattery, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Evaluate scores a detection under the mode. The tier always comes from RSSI.
// In ModeRSSIBattery a detection without a battery reading gets the plain RSSI score.
func (m Mode) Evaluate(d *models.Detection) Result {
	result := Result{Score: Score(d.RSSI), Tier: TierFor(d.RSSI)}

	if m == ModeRSSIBattery && d.Battery != nil {
		result.Score = ScoreWithBattery(d.RSSI, *d.Battery)
	}

	return result
}

func (m Mode) String() string {
	return string(m)
}
