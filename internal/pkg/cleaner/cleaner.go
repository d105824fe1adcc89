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

// Package cleaner tears down session infrastructure: stack deletion in
// reverse dependency order, bucket draining, and sweeping orphaned stacks.
package cleaner

import (
	"context"
	"strings"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/dag"
	"github.com/certlab/labman/internal/pkg/lab"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/provisioner"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/pkg/errors"
)

// The subset of the CloudFormation API the cleaner uses to discover stacks
// and the resources inside them
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	ListStackResources(ctx context.Context, params *cloudformation.ListStackResourcesInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.ListStackResourcesOutput, error)
}

type Cleaner struct {
	provisioner provisioner.Provisioner
	cfnApi      CloudFormationAPI
	s3Api       S3API
	numWorkers  int
}

func New(provisionerImpl provisioner.Provisioner, cfnApi CloudFormationAPI,
	s3Api S3API, numWorkers int) *Cleaner {

	if numWorkers < 1 {
		numWorkers = 1
	}

	return &Cleaner{
		provisioner: provisionerImpl,
		cfnApi:      cfnApi,
		s3Api:       s3Api,
		numWorkers:  numWorkers,
	}
}

// Tears down every stack a session owns, leaf-to-root so dependents go
// before their dependencies
func (c *Cleaner) TeardownSession(ctx context.Context, labObj *lab.Lab,
	sess *session.Session) error {

	dagObj, err := dag.Create(labObj.Templates(), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	err = dagObj.Execute(constants.DagActionDestroy, c.numWorkers,
		func(node dag.NamedNode) error {
			stackName, ok := sess.StackNames[node.Template().Id]
			if !ok {
				stackName = sess.StackName(node.Template().Id)
			}
			return c.DestroyStack(ctx, stackName)
		})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Drains any buckets the stack created, then deletes the stack.
// CloudFormation can't delete non-empty buckets.
func (c *Cleaner) DestroyStack(ctx context.Context, stackName string) error {
	buckets, err := c.stackBuckets(ctx, stackName)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, bucket := range buckets {
		err = c.DrainBucket(ctx, bucket)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return c.provisioner.Destroy(ctx, stackName)
}

// Physical bucket names of the stack's S3 buckets. Missing stacks return
// no buckets rather than an error so deletes stay idempotent.
func (c *Cleaner) stackBuckets(ctx context.Context, stackName string) ([]string, error) {
	buckets := make([]string, 0)

	var nextToken *string
	for {
		result, err := c.cfnApi.ListStackResources(ctx,
			&cloudformation.ListStackResourcesInput{
				StackName: awsv2.String(stackName),
				NextToken: nextToken,
			})
		if err != nil {
			if stackMissing(err) {
				return buckets, nil
			}
			return nil, errors.Wrapf(err, "Error listing resources of stack '%s'",
				stackName)
		}

		for _, resource := range result.StackResourceSummaries {
			if awsv2.ToString(resource.ResourceType) != "AWS::S3::Bucket" {
				continue
			}
			if bucket := awsv2.ToString(resource.PhysicalResourceId); bucket != "" {
				buckets = append(buckets, bucket)
			}
		}

		if result.NextToken == nil {
			break
		}
		nextToken = result.NextToken
	}

	return buckets, nil
}

// Finds stacks carrying the session tag whose session is expired or no
// longer known to the store, and tears them down. Untagged stacks are
// never touched. Returns the names of the stacks it destroyed.
func (c *Cleaner) Sweep(ctx context.Context, store SessionLookup) ([]string, error) {
	destroyed := make([]string, 0)

	stacks, err := c.listStacks(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, stack := range stacks {
		switch stack.StackStatus {
		case cfntypes.StackStatusDeleteInProgress, cfntypes.StackStatusDeleteComplete:
			continue
		}

		sessionId := stackTag(stack, constants.TagSessionID)
		if sessionId == "" {
			continue
		}

		stackName := awsv2.ToString(stack.StackName)

		sess, err := store.Get(ctx, sessionId)
		if err != nil {
			log.Logger.Infof("Stack '%s' belongs to unknown session '%s'... "+
				"sweeping it", stackName, sessionId)
		} else if sess.Expired() {
			log.Logger.Infof("Stack '%s' belongs to expired session '%s'... "+
				"sweeping it", stackName, sessionId)
		} else {
			continue
		}

		err = c.DestroyStack(ctx, stackName)
		if err != nil {
			return destroyed, errors.WithStack(err)
		}
		destroyed = append(destroyed, stackName)
	}

	return destroyed, nil
}

// The piece of the session store the sweeper needs
type SessionLookup interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

func (c *Cleaner) listStacks(ctx context.Context) ([]cfntypes.Stack, error) {
	stacks := make([]cfntypes.Stack, 0)

	var nextToken *string
	for {
		result, err := c.cfnApi.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, errors.Wrap(err, "Error listing stacks")
		}

		stacks = append(stacks, result.Stacks...)

		if result.NextToken == nil {
			break
		}
		nextToken = result.NextToken
	}

	return stacks, nil
}

func stackTag(stack cfntypes.Stack, key string) string {
	for _, tag := range stack.Tags {
		if awsv2.ToString(tag.Key) == key {
			return awsv2.ToString(tag.Value)
		}
	}
	return ""
}

// CloudFormation reports missing stacks through a validation error rather
// than a typed one
func stackMissing(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "does not exist")
}
