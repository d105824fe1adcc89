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

package manager

import (
	"context"
	"time"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/certlab/labman/internal/pkg/sessionstore"
	"github.com/pkg/errors"
)

// Tears down a session's stacks and marks it terminated. The session
// record is kept so the history stays inspectable.
func (m *Manager) Cleanup(ctx context.Context, idOrPrefix string) (*session.Session, error) {
	sess, err := sessionstore.Find(ctx, m.store, idOrPrefix)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	labObj, err := m.catalog.Get(sess.LabId)
	if err != nil {
		return sess, errors.WithStack(err)
	}

	err = sess.TransitionTo(session.StateCleanup, "")
	if err != nil {
		return sess, errors.WithStack(err)
	}
	err = m.store.Save(ctx, sess)
	if err != nil {
		return sess, errors.WithStack(err)
	}

	err = m.cleaner.TeardownSession(ctx, labObj, sess)
	if err != nil {
		transitionErr := sess.TransitionTo(session.StateFailed, err.Error())
		if transitionErr != nil {
			log.Logger.Errorf("Error recording failure on session '%s': %v",
				sess.Id, transitionErr)
		}
		if saveErr := m.store.Save(ctx, sess); saveErr != nil {
			log.Logger.Errorf("Error saving failed session '%s': %v", sess.Id,
				saveErr)
		}
		return sess, errors.WithStack(err)
	}

	err = sess.TransitionTo(session.StateTerminated, "")
	if err != nil {
		return sess, errors.WithStack(err)
	}
	err = m.store.Save(ctx, sess)
	if err != nil {
		return sess, errors.WithStack(err)
	}

	log.Logger.Infof("Session '%s' terminated", sess.ShortId())

	return sess, nil
}

// Pushes a session's expiry time out and updates the record
func (m *Manager) Extend(ctx context.Context, idOrPrefix string,
	extra time.Duration) (*session.Session, error) {

	sess, err := sessionstore.Find(ctx, m.store, idOrPrefix)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = sess.Extend(extra)
	if err != nil {
		return sess, errors.WithStack(err)
	}

	err = m.store.Save(ctx, sess)
	if err != nil {
		return sess, errors.WithStack(err)
	}

	log.Logger.Infof("Session '%s' now expires at %s", sess.ShortId(),
		sess.ExpiresAt.Format(time.RFC3339))

	return sess, nil
}

func (m *Manager) Status(ctx context.Context, idOrPrefix string) (*session.Session, error) {
	return sessionstore.Find(ctx, m.store, idOrPrefix)
}

func (m *Manager) List(ctx context.Context) ([]*session.Session, error) {
	return m.store.List(ctx)
}

// Tears down stacks belonging to expired or unknown sessions, then marks
// any expired session records terminated
func (m *Manager) Sweep(ctx context.Context) ([]string, error) {
	destroyed, err := m.cleaner.Sweep(ctx, m.store)
	if err != nil {
		return destroyed, errors.WithStack(err)
	}

	sessions, err := m.store.List(ctx)
	if err != nil {
		return destroyed, errors.WithStack(err)
	}

	for _, sess := range sessions {
		if !sess.Expired() || sess.State.Terminal() {
			continue
		}

		err = sess.TransitionTo(session.StateCleanup, "expired, swept")
		if err == nil {
			err = sess.TransitionTo(session.StateTerminated, "")
		}
		if err != nil {
			log.Logger.Warnf("Couldn't mark swept session '%s' terminated: %v",
				sess.Id, err)
			continue
		}

		err = m.store.Save(ctx, sess)
		if err != nil {
			return destroyed, errors.WithStack(err)
		}
	}

	return destroyed, nil
}
