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
	"fmt"

	"github.com/pkg/errors"
)

// The lifecycle state of a session
type State string

const (
	StatePending      State = "pending"
	StateProvisioning State = "provisioning"
	StateActive       State = "active"
	StateCleanup      State = "cleanup"
	StateTerminated   State = "terminated"
	StateFailed       State = "failed"
)

// Legal state transitions. A session that failed provisioning still goes
// through cleanup so partially-created resources get removed.
var transitions = map[State][]State{
	StatePending:      {StateProvisioning},
	StateProvisioning: {StateActive, StateFailed},
	StateActive:       {StateCleanup},
	StateFailed:       {StateCleanup},
	StateCleanup:      {StateTerminated, StateFailed},
	StateTerminated:   {},
}

// Returns whether moving from one state to another is legal
func CanTransition(from State, to State) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}

	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}

	return false
}

// Returns whether the state is terminal, i.e. no transitions lead out of it
func (s State) Terminal() bool {
	return s == StateTerminated
}

// Validates that a string is a known state
func ParseState(raw string) (State, error) {
	switch State(raw) {
	case StatePending, StateProvisioning, StateActive, StateCleanup,
		StateTerminated, StateFailed:
		return State(raw), nil
	}

	return "", errors.New(fmt.Sprintf("Unknown session state '%s'", raw))
}
