// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ballot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/discovery"
	"github.com/blinklabs-io/ballot/state"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	assert.NotNil(t, c.logger)
	assert.Equal(t, discovery.DefaultMaxProbe, c.maxProbe)
	assert.Equal(t, uint64(state.DefaultProposalDuration), c.proposalDuration)
	assert.Zero(t, c.probeLimit)
	assert.False(t, c.tracing)
	require.EqualError(t, c.validate(), "no contract configured")
}

func TestConfigOptions(t *testing.T) {
	c := NewConfig(
		WithMaxProbe(4),
		WithProbeLimit(64),
		WithConfirmTimeout(time.Minute),
		WithQueryTimeout(time.Second),
		WithRetryMaxAttempts(5),
		WithProposalDuration(60),
		WithShutdownTimeout(time.Second),
		WithTracing(true),
		WithTracingStdout(true),
	)
	assert.Equal(t, 4, c.maxProbe)
	assert.Equal(t, 64, c.probeLimit)
	assert.Equal(t, time.Minute, c.confirmTimeout)
	assert.Equal(t, time.Second, c.queryTimeout)
	assert.Equal(t, uint(5), c.retryMaxAttempts)
	assert.Equal(t, uint64(60), c.proposalDuration)
	assert.Equal(t, time.Second, c.shutdownTimeout)
	assert.True(t, c.tracing)
	assert.True(t, c.tracingStdout)
}
