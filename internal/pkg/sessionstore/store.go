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
	"strings"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/pkg/errors"
)

// Returned by Get/Find when no session matches
var ErrNotFound = errors.New("Session not found")

// Store persists session records
type Store interface {
	Save(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, id string) (*session.Session, error)
	List(ctx context.Context) ([]*session.Session, error)
	Delete(ctx context.Context, id string) error
}

// Factory that creates session stores
func New(conf config.SessionsConf, awsConfig awsv2.Config) (Store, error) {
	backend := conf.Backend
	if backend == "" {
		backend = constants.StoreBackendLocal
	}

	switch backend {
	case constants.StoreBackendLocal:
		dir := conf.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			dir = filepath.Join(home, constants.AppDirName, "sessions")
		}
		return NewFileStore(dir)
	case constants.StoreBackendDynamoDB:
		if conf.Table == "" {
			return nil, errors.New("The dynamodb session backend needs a table name")
		}
		return NewDynamoDBStore(dynamodb.NewFromConfig(awsConfig), conf.Table), nil
	}

	return nil, errors.New(fmt.Sprintf("Session backend '%s' doesn't exist", backend))
}

// Resolves a full session ID or a unique prefix of one to a session.
// Prefixes that match several sessions are an error.
func Find(ctx context.Context, store Store, idOrPrefix string) (*session.Session, error) {
	sess, err := store.Get(ctx, idOrPrefix)
	if err == nil {
		return sess, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return nil, errors.WithStack(err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	matches := make([]*session.Session, 0)
	for _, candidate := range sessions {
		if strings.HasPrefix(candidate.Id, idOrPrefix) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errors.Wrapf(ErrNotFound, "No session matches '%s'", idOrPrefix)
	case 1:
		return matches[0], nil
	}

	return nil, errors.New(fmt.Sprintf("'%s' is ambiguous... it matches %d sessions",
		idOrPrefix, len(matches)))
}
