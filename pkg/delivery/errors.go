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

package delivery

import "errors"

var (
	// ErrTransport covers network failures and timeouts talking to the collection service.
	ErrTransport = errors.New("transport error")
	// ErrNotFound is returned when an identity or group lookup yields nothing.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a detection that cannot become a record, usually for lack of a resolved identity.
	ErrValidation = errors.New("validation error")
	// ErrDegraded marks registration or health failures that narrow functionality without stopping the scanner.
	ErrDegraded = errors.New("degraded mode")
	// ErrUnexpectedStatus is returned for any non-success HTTP status not mapped to another error.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrMissingIdentifier is returned by participant queries that name no identifier.
	ErrMissingIdentifier = errors.New("at least one participant identifier is required")
	// ErrCheckFailed marks a connection check that did not complete every step.
	ErrCheckFailed = errors.New("connection check failed")
)
