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
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An in-memory DynamoDB double backed by a map keyed on the session ID
type fakeDynamoDB struct {
	items map[string]map[string]ddbtypes.AttributeValue
	// when > 0, Scan returns one item per page to exercise pagination
	pageSize int
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{
		items: map[string]map[string]ddbtypes.AttributeValue{},
	}
}

func itemId(item map[string]ddbtypes.AttributeValue) string {
	return item["id"].(*ddbtypes.AttributeValueMemberS).Value
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput,
	optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[itemId(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput,
	optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	item := f.items[itemId(params.Key)]
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput,
	optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	ids := make([]string, 0)
	for id := range f.items {
		ids = append(ids, id)
	}
	// map iteration order changes per call; paging needs a stable order
	sort.Strings(ids)

	start := 0
	if params.ExclusiveStartKey != nil {
		previous := itemId(params.ExclusiveStartKey)
		for i, id := range ids {
			if id == previous {
				start = i + 1
				break
			}
		}
	}

	end := len(ids)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	output := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		output.Items = append(output.Items, f.items[id])
	}
	if end < len(ids) {
		output.LastEvaluatedKey = map[string]ddbtypes.AttributeValue{
			"id": &ddbtypes.AttributeValueMemberS{Value: ids[end-1]},
		}
	}

	return output, nil
}

func (f *fakeDynamoDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput,
	optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(f.items, itemId(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDBStoreRoundTrip(t *testing.T) {
	fake := newFakeDynamoDB()
	store := NewDynamoDBStore(fake, "labman-sessions")

	sess := session.New("cicd-101", "ola", "eu-west-1", 4*time.Hour)
	sess.Outputs["VpcId"] = "vpc-123"
	require.Nil(t, sess.TransitionTo(session.StateProvisioning, ""))

	require.Nil(t, store.Save(context.Background(), sess))

	loaded, err := store.Get(context.Background(), sess.Id)
	require.Nil(t, err)
	assert.Equal(t, sess.Id, loaded.Id)
	assert.Equal(t, session.StateProvisioning, loaded.State)
	assert.Equal(t, sess.Outputs, loaded.Outputs)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, session.StatePending, loaded.History[0].From)
}

func TestDynamoDBStoreGetMissing(t *testing.T) {
	store := NewDynamoDBStore(newFakeDynamoDB(), "labman-sessions")

	_, err := store.Get(context.Background(), "no-such-session")
	require.NotNil(t, err)
	assert.Equal(t, ErrNotFound, errors.Cause(err))
}

func TestDynamoDBStoreListPaginates(t *testing.T) {
	fake := newFakeDynamoDB()
	fake.pageSize = 1
	store := NewDynamoDBStore(fake, "labman-sessions")

	for i := 0; i < 3; i++ {
		sess := session.New("cicd-101", "ola", "eu-west-1", time.Hour)
		require.Nil(t, store.Save(context.Background(), sess))
	}

	sessions, err := store.List(context.Background())
	require.Nil(t, err)
	assert.Len(t, sessions, 3)
}

func TestDynamoDBStoreDelete(t *testing.T) {
	fake := newFakeDynamoDB()
	store := NewDynamoDBStore(fake, "labman-sessions")

	sess := session.New("cicd-101", "ola", "eu-west-1", time.Hour)
	require.Nil(t, store.Save(context.Background(), sess))
	require.Nil(t, store.Delete(context.Background(), sess.Id))

	_, err := store.Get(context.Background(), sess.Id)
	assert.Equal(t, ErrNotFound, errors.Cause(err))
}
