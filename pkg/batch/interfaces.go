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
	"time"

	"github.com/carverauto/beaconradar/pkg/models"
)

// Clock abstracts time for the age threshold.
type Clock interface {
	Now() time.Time
}

// Submitter delivers a single detection. A returned error counts as a failed submission.
type Submitter interface {
	Submit(ctx context.Context, d *models.Detection) error
}

// RecordSink receives every record the collection service accepted.
type RecordSink interface {
	PublishDetection(ctx context.Context, producerID string, record *models.Record, result *models.SubmitResult) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
