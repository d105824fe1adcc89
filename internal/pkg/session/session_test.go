/*
 * Copyright 2024 The Labman Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import (
	"testing"
	"time"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.ConfigureLogger("none", false)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		allowed bool
	}{
		{"pending_to_provisioning", StatePending, StateProvisioning, true},
		{"provisioning_to_active", StateProvisioning, StateActive, true},
		{"provisioning_to_failed", StateProvisioning, StateFailed, true},
		{"active_to_cleanup", StateActive, StateCleanup, true},
		{"failed_to_cleanup", StateFailed, StateCleanup, true},
		{"cleanup_to_terminated", StateCleanup, StateTerminated, true},
		{"cleanup_to_failed", StateCleanup, StateFailed, true},
		{"pending_to_active", StatePending, StateActive, false},
		{"active_to_provisioning", StateActive, StateProvisioning, false},
		{"terminated_to_anything", StateTerminated, StateCleanup, false},
		{"pending_to_terminated", StatePending, StateTerminated, false},
	}

	for _, test := range tests {
		assert.Equal(t, test.allowed, CanTransition(test.from, test.to),
			"unexpected result for %s", test.name)
	}
}

func TestTransitionTo(t *testing.T) {
	sessionObj := New("cicd-101", "alice", "eu-west-1", 2*time.Hour)
	assert.Equal(t, StatePending, sessionObj.State)

	err := sessionObj.TransitionTo(StateProvisioning, "")
	assert.Nil(t, err)
	assert.Equal(t, StateProvisioning, sessionObj.State)

	// illegal jump leaves the session unchanged
	err = sessionObj.TransitionTo(StateTerminated, "")
	assert.NotNil(t, err)
	assert.Equal(t, StateProvisioning, sessionObj.State)

	err = sessionObj.TransitionTo(StateActive, "")
	require.Nil(t, err)
	err = sessionObj.TransitionTo(StateCleanup, "expired")
	require.Nil(t, err)
	err = sessionObj.TransitionTo(StateTerminated, "")
	require.Nil(t, err)

	assert.Len(t, sessionObj.History, 4)
	assert.Equal(t, "expired", sessionObj.History[2].Reason)
	assert.True(t, sessionObj.State.Terminal())
}

func TestExpiredAndExtend(t *testing.T) {
	sessionObj := New("cicd-101", "alice", "eu-west-1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, sessionObj.Expired())

	err := sessionObj.Extend(time.Hour)
	assert.Nil(t, err)
	assert.False(t, sessionObj.Expired())

	err = sessionObj.Extend(-time.Hour)
	assert.NotNil(t, err)

	require.Nil(t, sessionObj.TransitionTo(StateProvisioning, ""))
	require.Nil(t, sessionObj.TransitionTo(StateActive, ""))
	require.Nil(t, sessionObj.TransitionTo(StateCleanup, ""))

	err = sessionObj.Extend(time.Hour)
	assert.NotNil(t, err, "sessions in cleanup can't be extended")
}

func TestStackName(t *testing.T) {
	sessionObj := New("cicd-101", "alice", "eu-west-1", time.Hour)
	name := sessionObj.StackName("network")
	assert.Contains(t, name, "labman-cicd-101-")
	assert.Contains(t, name, "-network")
	assert.Equal(t, name, sessionObj.StackName("network"), "stack names are deterministic")
}

func TestEstimatedTotalUSD(t *testing.T) {
	sessionObj := New("cicd-101", "alice", "eu-west-1", 90*time.Minute)
	sessionObj.HourlyCostUSD = 1.5

	// 90 minutes rounds up to 2 hours
	assert.InDelta(t, 3.0, sessionObj.EstimatedTotalUSD(), 0.001)
}

func TestParseState(t *testing.T) {
	state, err := ParseState("active")
	assert.Nil(t, err)
	assert.Equal(t, StateActive, state)

	_, err = ParseState("limbo")
	assert.NotNil(t, err)
}
