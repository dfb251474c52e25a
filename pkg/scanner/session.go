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

package scanner

import "time"

// State is the orchestrator lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateRegistering
	StateIdle
	StateScanning
	StateProcessing
	StateFlushing
	StateTerminated
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateRegistering:   "registering",
	StateIdle:          "idle",
	StateScanning:      "scanning",
	StateProcessing:    "processing",
	StateFlushing:      "flushing",
	StateTerminated:    "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "unknown"
}

// Session holds the per-process scanner state. It is owned by the orchestrator goroutine.
type Session struct {
	StartedAt  time.Time
	Registered bool
	GroupID    string
	Degraded   bool

	Cycles    int
	Submitted int
	Failed    int

	seen map[string]struct{}
}

func newSession(startedAt time.Time) *Session {
	return &Session{
		StartedAt: startedAt,
		seen:      make(map[string]struct{}),
	}
}

// Seen records a beacon identifier.
func (s *Session) Seen(beaconID string) {
	s.seen[beaconID] = struct{}{}
}

// UniqueBeacons is the number of distinct beacons observed since start.
func (s *Session) UniqueBeacons() int {
	return len(s.seen)
}
