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

import "strings"

// IdentityState tells how far a detection has progressed towards a backend identity.
type IdentityState int

const (
	// IdentityUnmapped means the beacon is not in the mapping table and can never be submitted.
	IdentityUnmapped IdentityState = iota
	// IdentityMapped means a memorable id is known but the backend identity is not resolved yet.
	IdentityMapped
	// IdentityResolved means the detection carries a backend participant id and can be submitted.
	IdentityResolved
)

func (s IdentityState) String() string {
	switch s {
	case IdentityUnmapped:
		return "unmapped"
	case IdentityMapped:
		return "mapped"
	case IdentityResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Identity is the presence-tagged identity of a detection. The zero value is unmapped.
type Identity struct {
	state         IdentityState
	memorableID   string
	participantID string
}

// Unmapped returns an identity with neither a memorable id nor a backend id.
func Unmapped() Identity {
	return Identity{}
}

// Mapped returns an identity carrying only a memorable id. A blank id yields Unmapped.
func Mapped(memorableID string) Identity {
	memorableID = strings.TrimSpace(memorableID)
	if memorableID == "" {
		return Unmapped()
	}

	return Identity{state: IdentityMapped, memorableID: memorableID}
}

// Resolve attaches a backend participant id. Unmapped identities and blank ids are returned unchanged.
func (i Identity) Resolve(participantID string) Identity {
	if i.state == IdentityUnmapped || participantID == "" {
		return i
	}

	return Identity{state: IdentityResolved, memorableID: i.memorableID, participantID: participantID}
}

// State reports the identity state.
func (i Identity) State() IdentityState {
	return i.state
}

// MemorableID returns the memorable id and whether one is present.
func (i Identity) MemorableID() (string, bool) {
	return i.memorableID, i.state != IdentityUnmapped
}

// ParticipantID returns the backend id and whether the identity is resolved.
func (i Identity) ParticipantID() (string, bool) {
	return i.participantID, i.state == IdentityResolved
}

// Submittable reports whether a record can be built from this identity.
func (i Identity) Submittable() bool {
	return i.state == IdentityResolved
}
