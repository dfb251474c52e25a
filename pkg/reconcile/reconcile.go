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

// Package reconcile reduces the raw readings of one scan cycle to one detection per beacon.
package reconcile

import (
	"github.com/carverauto/beaconradar/pkg/models"
	"github.com/carverauto/beaconradar/pkg/scoring"
)

// Options selects the per-cycle processing steps.
type Options struct {
	// Threshold discards readings weaker than this RSSI.
	Threshold float64
	// Reconcile collapses multiple readings of a beacon into one.
	Reconcile bool
	// MinQuality, when positive, discards detections scoring below it under ScoringMode.
	MinQuality  float64
	ScoringMode scoring.Mode
}

// Apply runs threshold filtering, then optional reconciliation, then the optional quality floor.
func Apply(readings []*models.Detection, opts Options) []*models.Detection {
	out := Filter(readings, opts.Threshold)

	if opts.Reconcile {
		out = Reconcile(out)
	}

	if opts.MinQuality > 0 {
		out = FilterQuality(out, opts.ScoringMode, opts.MinQuality)
	}

	return out
}

// Filter drops readings with RSSI below threshold, keeping input order.
func Filter(readings []*models.Detection, threshold float64) []*models.Detection {
	out := make([]*models.Detection, 0, len(readings))

	for _, r := range readings {
		if r.RSSI < threshold {
			continue
		}

		out = append(out, r)
	}

	return out
}

// Reconcile groups readings by beacon in first-seen order. A group of one passes through
// untouched; a larger group is reduced to its most recently observed reading, with RSSI
// replaced by the group's arithmetic mean. On equal timestamps the earliest arrival wins.
func Reconcile(readings []*models.Detection) []*models.Detection {
	type group struct {
		latest *models.Detection
		sum    float64
		count  int
	}

	groups := make(map[string]*group, len(readings))
	order := make([]string, 0, len(readings))

	for _, r := range readings {
		g, ok := groups[r.BeaconID]
		if !ok {
			groups[r.BeaconID] = &group{latest: r, sum: r.RSSI, count: 1}
			order = append(order, r.BeaconID)

			continue
		}

		g.sum += r.RSSI
		g.count++

		if r.ObservedAt.After(g.latest.ObservedAt) {
			g.latest = r
		}
	}

	out := make([]*models.Detection, 0, len(order))

	for _, id := range order {
		g := groups[id]
		if g.count > 1 {
			g.latest.RSSI = g.sum / float64(g.count)
		}

		out = append(out, g.latest)
	}

	return out
}

// FilterQuality drops detections whose score under mode is below minScore.
func FilterQuality(readings []*models.Detection, mode scoring.Mode, minScore float64) []*models.Detection {
	out := make([]*models.Detection, 0, len(readings))

	for _, r := range readings {
		if mode.Evaluate(r).Score < minScore {
			continue
		}

		out = append(out, r)
	}

	return out
}
