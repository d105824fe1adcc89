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
	"strings"
	"time"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// A recorded state change
type Transition struct {
	From   State     `yaml:"from" dynamodbav:"from"`
	To     State     `yaml:"to" dynamodbav:"to"`
	At     time.Time `yaml:"at" dynamodbav:"at"`
	Reason string    `yaml:"reason,omitempty" dynamodbav:"reason,omitempty"`
}

// One learner's running instance of a lab. All state changes go through
// TransitionTo so the history is complete and illegal jumps are impossible.
type Session struct {
	Id            string            `yaml:"id" dynamodbav:"id"`
	LabId         string            `yaml:"lab_id" dynamodbav:"lab_id"`
	Owner         string            `yaml:"owner" dynamodbav:"owner"`
	Region        string            `yaml:"region" dynamodbav:"region"`
	State         State             `yaml:"state" dynamodbav:"state"`
	CreatedAt     time.Time         `yaml:"created_at" dynamodbav:"created_at"`
	ExpiresAt     time.Time         `yaml:"expires_at" dynamodbav:"expires_at"`
	StackNames    map[string]string `yaml:"stack_names,omitempty" dynamodbav:"stack_names,omitempty"`
	Outputs       map[string]string `yaml:"outputs,omitempty" dynamodbav:"outputs,omitempty"`
	HourlyCostUSD float64           `yaml:"hourly_cost_usd" dynamodbav:"hourly_cost_usd"`
	History       []Transition      `yaml:"history,omitempty" dynamodbav:"history,omitempty"`
}

// Creates a new pending session for a lab
func New(labId string, owner string, region string, ttl time.Duration) *Session {
	now := time.Now().UTC()

	return &Session{
		Id:         uuid.New().String(),
		LabId:      labId,
		Owner:      owner,
		Region:     region,
		State:      StatePending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		StackNames: map[string]string{},
		Outputs:    map[string]string{},
		History:    []Transition{},
	}
}

// Moves the session to a new state, appending to the history. Illegal
// transitions return an error and leave the session unchanged.
func (s *Session) TransitionTo(newState State, reason string) error {
	if !CanTransition(s.State, newState) {
		return errors.New(fmt.Sprintf("Session '%s' can't transition from "+
			"'%s' to '%s'", s.Id, s.State, newState))
	}

	log.Logger.Infof("Session '%s' transitioning from '%s' to '%s'",
		s.Id, s.State, newState)

	s.History = append(s.History, Transition{
		From:   s.State,
		To:     newState,
		At:     time.Now().UTC(),
		Reason: reason,
	})
	s.State = newState

	return nil
}

// Whether the session's TTL has elapsed. Expiry doesn't change the state by
// itself, but expired active sessions are targets for the sweeper.
func (s *Session) Expired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// Pushes the expiry time out. Sessions being cleaned up or already
// terminated can't be extended.
func (s *Session) Extend(extra time.Duration) error {
	if extra <= 0 {
		return errors.New("Extension must be positive")
	}

	switch s.State {
	case StateCleanup, StateTerminated, StateFailed:
		return errors.New(fmt.Sprintf("Can't extend session '%s' in state '%s'",
			s.Id, s.State))
	}

	s.ExpiresAt = s.ExpiresAt.Add(extra)
	return nil
}

// Short prefix of the session ID used in resource names
func (s *Session) ShortId() string {
	return strings.Split(s.Id, "-")[0]
}

// Returns the CloudFormation stack name for one of the lab's templates.
// Stack names are deterministic so a session can always rediscover its
// own stacks.
func (s *Session) StackName(templateId string) string {
	return fmt.Sprintf("labman-%s-%s-%s", s.LabId, s.ShortId(), templateId)
}

// Remaining lifetime, truncated at zero
func (s *Session) Remaining() time.Duration {
	remaining := time.Until(s.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Estimated total cost over the session's full TTL, rounded up to whole
// hours
func (s *Session) EstimatedTotalUSD() float64 {
	hours := s.ExpiresAt.Sub(s.CreatedAt).Hours()
	wholeHours := int(hours)
	if hours > float64(wholeHours) {
		wholeHours++
	}
	return s.HourlyCostUSD * float64(wholeHours)
}
