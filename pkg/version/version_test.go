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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullVersionCarriesBuildID(t *testing.T) {
	defer func(v, b string) { version, buildID = v, b }(version, buildID)

	version, buildID = "1.4.0", "a1b2c3"

	assert.Equal(t, "a1b2c3", GetBuildID())
	assert.Equal(t, "1.4.0 (build: a1b2c3)", GetFullVersion())
	assert.Equal(t, "beaconradar/1.4.0", SourceSystem())
}

func TestDefaultsToDev(t *testing.T) {
	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "dev", GetBuildID())
}
