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

package sessionstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Persists sessions as one YAML file per session under a local directory.
// This is the default backend, suited to a single learner on one machine.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "Error creating session directory '%s'", dir)
	}

	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s.yaml", id))
}

// Saves via a temp file and rename so a crash mid-write never leaves a
// truncated record behind
func (f *FileStore) Save(ctx context.Context, sess *session.Session) error {
	data, err := yaml.Marshal(sess)
	if err != nil {
		return errors.Wrapf(err, "Error marshalling session '%s'", sess.Id)
	}

	tempFile, err := os.CreateTemp(f.dir, fmt.Sprintf("%s-*.tmp", sess.Id))
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = tempFile.Write(data)
	if err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return errors.WithStack(err)
	}

	err = tempFile.Close()
	if err != nil {
		os.Remove(tempFile.Name())
		return errors.WithStack(err)
	}

	err = os.Rename(tempFile.Name(), f.path(sess.Id))
	if err != nil {
		os.Remove(tempFile.Name())
		return errors.WithStack(err)
	}

	log.Logger.Debugf("Saved session '%s' to '%s'", sess.Id, f.path(sess.Id))

	return nil
}

func (f *FileStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "No session '%s'", id)
		}
		return nil, errors.WithStack(err)
	}

	sess := session.Session{}
	err = yaml.Unmarshal(data, &sess)
	if err != nil {
		return nil, errors.Wrapf(err, "Error parsing session file '%s'", f.path(id))
	}

	return &sess, nil
}

// Lists all sessions, newest first
func (f *FileStore) List(ctx context.Context) ([]*session.Session, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sessions := make([]*session.Session, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".yaml")
		sess, err := f.Get(ctx, id)
		if err != nil {
			log.Logger.Warnf("Skipping unreadable session file '%s': %v",
				entry.Name(), err)
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i int, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(f.path(id))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}
