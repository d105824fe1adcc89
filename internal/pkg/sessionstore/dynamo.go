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

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/pkg/errors"
)

// The subset of the DynamoDB API the store uses, so tests can swap in a
// fake
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Persists sessions in a DynamoDB table keyed by session ID. Use this
// backend when several machines (or a classroom) share session state.
type DynamoDBStore struct {
	api   DynamoDBAPI
	table string
}

func NewDynamoDBStore(api DynamoDBAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{
		api:   api,
		table: table,
	}
}

func (d *DynamoDBStore) key(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"id": &ddbtypes.AttributeValueMemberS{Value: id},
	}
}

func (d *DynamoDBStore) Save(ctx context.Context, sess *session.Session) error {
	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return errors.Wrapf(err, "Error marshalling session '%s'", sess.Id)
	}

	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: awsv2.String(d.table),
		Item:      item,
	})
	if err != nil {
		return errors.Wrapf(err, "Error writing session '%s' to table '%s'",
			sess.Id, d.table)
	}

	log.Logger.Debugf("Saved session '%s' to table '%s'", sess.Id, d.table)

	return nil
}

func (d *DynamoDBStore) Get(ctx context.Context, id string) (*session.Session, error) {
	result, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: awsv2.String(d.table),
		Key:       d.key(id),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading session '%s' from table '%s'",
			id, d.table)
	}

	if len(result.Item) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "No session '%s'", id)
	}

	sess := session.Session{}
	err = attributevalue.UnmarshalMap(result.Item, &sess)
	if err != nil {
		return nil, errors.Wrapf(err, "Error unmarshalling session '%s'", id)
	}

	return &sess, nil
}

// Lists all sessions, newest first. Scans the whole table... fine for the
// tens of sessions a class produces.
func (d *DynamoDBStore) List(ctx context.Context) ([]*session.Session, error) {
	sessions := make([]*session.Session, 0)

	var startKey map[string]ddbtypes.AttributeValue
	for {
		result, err := d.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         awsv2.String(d.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "Error scanning table '%s'", d.table)
		}

		for _, item := range result.Items {
			sess := session.Session{}
			err = attributevalue.UnmarshalMap(item, &sess)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			sessions = append(sessions, &sess)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	sort.Slice(sessions, func(i int, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

func (d *DynamoDBStore) Delete(ctx context.Context, id string) error {
	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: awsv2.String(d.table),
		Key:       d.key(id),
	})
	if err != nil {
		return errors.Wrapf(err, "Error deleting session '%s' from table '%s'",
			id, d.table)
	}
	return nil
}
