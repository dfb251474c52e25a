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

package simulator

import (
	"math"
	"math/rand/v2"
	"time"
)

// Location is a room covered by one simulated scanner.
type Location string

const (
	Entrance    Location = "entrance"
	LabRoomA    Location = "lab-room-a"
	LabRoomB    Location = "lab-room-b"
	Hallway     Location = "hallway"
	Cafeteria   Location = "cafeteria"
	Exit        Location = "exit"
	OutdoorArea Location = "outdoor-area"
)

// Locations lists every room, one scanner each.
var Locations = []Location{Entrance, LabRoomA, LabRoomB, Hallway, Cafeteria, Exit, OutdoorArea}

var adjacency = map[Location][]Location{
	Entrance:    {Hallway},
	Hallway:     {Entrance, LabRoomA, LabRoomB, Cafeteria},
	LabRoomA:    {Hallway},
	LabRoomB:    {Hallway},
	Cafeteria:   {Hallway, OutdoorArea},
	OutdoorArea: {Cafeteria, Exit},
	Exit:        {OutdoorArea},
}

var schedule = []Location{Entrance, Hallway, LabRoomA, Hallway, Cafeteria, Hallway, LabRoomB, Hallway, Exit}

// Adjacent reports whether b is one step away from a.
func Adjacent(a, b Location) bool {
	for _, n := range adjacency[a] {
		if n == b {
			return true
		}
	}

	return false
}

// Pattern is how a beacon moves between rooms.
type Pattern string

const (
	Stationary Pattern = "stationary"
	// Wanderer moves to a random adjacent room every two to five minutes.
	Wanderer Pattern = "wanderer"
	// Scheduled walks the fixed schedule, one step every three minutes.
	Scheduled Pattern = "scheduled"
)

const (
	wanderMinSeconds  = 120
	wanderMaxSeconds  = 300
	scheduledInterval = 180 * time.Second
	batteryDrain      = 0.0003

	// DetectionRange is the weakest RSSI a simulated scanner reports.
	DetectionRange = -70.0
)

// Beacon is one simulated transmitter.
type Beacon struct {
	MAC      string
	Name     string
	Pattern  Pattern
	Location Location
	Battery  float64
	LastMove time.Time
}

// defaultBeacons builds the five test beacons with random initial battery levels.
func defaultBeacons(rng *rand.Rand, now time.Time) []*Beacon {
	seeds := []struct {
		mac     string
		name    string
		pattern Pattern
		at      Location
	}{
		{"AA:BB:CC:DD:EE:01", "Test Beacon 1", Wanderer, Entrance},
		{"AA:BB:CC:DD:EE:02", "Test Beacon 2", Stationary, LabRoomA},
		{"AA:BB:CC:DD:EE:03", "Test Beacon 3", Scheduled, Hallway},
		{"AA:BB:CC:DD:EE:04", "Test Beacon 4", Wanderer, Cafeteria},
		{"AA:BB:CC:DD:EE:05", "Test Beacon 5", Stationary, LabRoomB},
	}

	beacons := make([]*Beacon, 0, len(seeds))

	for _, s := range seeds {
		beacons = append(beacons, &Beacon{
			MAC:      s.mac,
			Name:     s.name,
			Pattern:  s.pattern,
			Location: s.at,
			Battery:  uniform(rng, 0.7, 1.0),
			LastMove: now,
		})
	}

	return beacons
}

// Move advances the beacon along its pattern and reports whether it changed rooms.
func (b *Beacon) Move(rng *rand.Rand, now time.Time) bool {
	since := now.Sub(b.LastMove)

	switch b.Pattern {
	case Wanderer:
		limit := time.Duration(wanderMinSeconds+rng.IntN(wanderMaxSeconds-wanderMinSeconds+1)) * time.Second
		if since <= limit {
			return false
		}

		moves := adjacency[b.Location]
		if len(moves) == 0 {
			return false
		}

		b.Location = moves[rng.IntN(len(moves))]
		b.LastMove = now

		return true
	case Scheduled:
		if since <= scheduledInterval {
			return false
		}

		b.Location = nextScheduled(b.Location)
		b.LastMove = now

		return true
	case Stationary:
	}

	return false
}

// nextScheduled returns the stop after the first occurrence of at. Rooms off the
// schedule restart it at the entrance.
func nextScheduled(at Location) Location {
	for i, loc := range schedule {
		if loc == at {
			return schedule[(i+1)%len(schedule)]
		}
	}

	return Entrance
}

// Drain applies one scan's worth of battery drain.
func (b *Beacon) Drain() {
	b.Battery = math.Max(0, b.Battery-batteryDrain)
}

// RSSI models the signal a scanner at loc receives from b. The second result is false
// when the beacon is out of range.
func RSSI(rng *rand.Rand, b *Beacon, loc Location) (float64, bool) {
	var base float64

	switch {
	case b.Location == loc:
		base = uniform(rng, -55, -45)
	case Adjacent(b.Location, loc):
		base = uniform(rng, -75, -65)
	default:
		return 0, false
	}

	noise := uniform(rng, -5, 5)
	batteryEffect := (1 - b.Battery) * -10

	rssi := base + noise + batteryEffect
	if rssi < DetectionRange {
		return 0, false
	}

	return rssi, true
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
