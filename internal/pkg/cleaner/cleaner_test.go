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

package cleaner

import (
	"context"
	"testing"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/lab"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/provisioner"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/certlab/labman/internal/pkg/sessionstore"
	"github.com/certlab/labman/internal/pkg/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.ConfigureLogger("none", false)
}

type fakeCfn struct {
	stacks []cfntypes.Stack
	// logical ID -> physical ID of bucket resources per stack
	bucketsByStack map[string]map[string]string
}

func (f *fakeCfn) DescribeStacks(ctx context.Context,
	params *cloudformation.DescribeStacksInput,
	optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	return &cloudformation.DescribeStacksOutput{Stacks: f.stacks}, nil
}

func (f *fakeCfn) ListStackResources(ctx context.Context,
	params *cloudformation.ListStackResourcesInput,
	optFns ...func(*cloudformation.Options)) (*cloudformation.ListStackResourcesOutput, error) {

	output := &cloudformation.ListStackResourcesOutput{}
	for logicalId, physicalId := range f.bucketsByStack[awsv2.ToString(params.StackName)] {
		output.StackResourceSummaries = append(output.StackResourceSummaries,
			cfntypes.StackResourceSummary{
				LogicalResourceId:  awsv2.String(logicalId),
				PhysicalResourceId: awsv2.String(physicalId),
				ResourceType:       awsv2.String("AWS::S3::Bucket"),
			})
	}
	return output, nil
}

type fakeS3 struct {
	objectsByBucket map[string][]string
	deletedByBucket map[string][]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objectsByBucket: map[string][]string{},
		deletedByBucket: map[string][]string{},
	}
}

func (f *fakeS3) ListObjectVersions(ctx context.Context,
	params *s3.ListObjectVersionsInput,
	optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {

	output := &s3.ListObjectVersionsOutput{IsTruncated: awsv2.Bool(false)}
	for _, key := range f.objectsByBucket[awsv2.ToString(params.Bucket)] {
		output.Versions = append(output.Versions, s3types.ObjectVersion{
			Key:       awsv2.String(key),
			VersionId: awsv2.String("v1"),
		})
	}
	return output, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input,
	optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	// everything is reported through the versions API in these tests
	return &s3.ListObjectsV2Output{IsTruncated: awsv2.Bool(false)}, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput,
	optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {

	bucket := awsv2.ToString(params.Bucket)
	for _, identifier := range params.Delete.Objects {
		f.deletedByBucket[bucket] = append(f.deletedByBucket[bucket],
			awsv2.ToString(identifier.Key))
	}
	f.objectsByBucket[bucket] = nil
	return &s3.DeleteObjectsOutput{}, nil
}

func testLab(t *testing.T) *lab.Lab {
	labObj, err := lab.New(structs.Lab{
		Id:       "cicd-101",
		Name:     "CI/CD fundamentals",
		Category: "cicd",
		Ttl:      "4h",
		Templates: []structs.Template{
			{Id: "network", Path: "templates/network.yaml"},
			{Id: "artifacts", Path: "templates/artifacts.yaml",
				DependsOn: []string{"network"}},
			{Id: "pipeline", Path: "templates/pipeline.yaml",
				DependsOn: []string{"artifacts"}},
		},
	}, "../../testdata/catalog")
	require.Nil(t, err)
	return labObj
}

func TestTeardownSession(t *testing.T) {
	noop := &provisioner.NoopProvisioner{}
	fake := &fakeCfn{bucketsByStack: map[string]map[string]string{}}

	labObj := testLab(t)
	sess := session.New("cicd-101", "ola", "eu-west-1", 4*time.Hour)

	cleanerObj := New(noop, fake, newFakeS3(), 1)
	err := cleanerObj.TeardownSession(context.Background(), labObj, sess)
	require.Nil(t, err)

	// leaf-to-root: dependents deleted before their dependencies
	require.Len(t, noop.DestroyedStacks, 3)
	assert.Equal(t, sess.StackName("pipeline"), noop.DestroyedStacks[0])
	assert.Equal(t, sess.StackName("artifacts"), noop.DestroyedStacks[1])
	assert.Equal(t, sess.StackName("network"), noop.DestroyedStacks[2])
}

func TestDestroyStackDrainsBuckets(t *testing.T) {
	noop := &provisioner.NoopProvisioner{}
	fakeS3Obj := newFakeS3()
	fakeS3Obj.objectsByBucket["artifact-bucket"] = []string{"a.zip", "b.zip"}

	fake := &fakeCfn{
		bucketsByStack: map[string]map[string]string{
			"labman-cicd-101-abc-artifacts": {"Artifacts": "artifact-bucket"},
		},
	}

	cleanerObj := New(noop, fake, fakeS3Obj, 1)
	err := cleanerObj.DestroyStack(context.Background(), "labman-cicd-101-abc-artifacts")
	require.Nil(t, err)

	assert.ElementsMatch(t, []string{"a.zip", "b.zip"},
		fakeS3Obj.deletedByBucket["artifact-bucket"])
	assert.Equal(t, []string{"labman-cicd-101-abc-artifacts"}, noop.DestroyedStacks)
}

func taggedStack(name string, sessionId string) cfntypes.Stack {
	stack := cfntypes.Stack{
		StackName:   awsv2.String(name),
		StackStatus: cfntypes.StackStatusCreateComplete,
	}
	if sessionId != "" {
		stack.Tags = []cfntypes.Tag{{
			Key:   awsv2.String(constants.TagSessionID),
			Value: awsv2.String(sessionId),
		}}
	}
	return stack
}

func TestSweep(t *testing.T) {
	store, err := sessionstore.NewFileStore(t.TempDir())
	require.Nil(t, err)

	live := session.New("cicd-101", "ola", "eu-west-1", 4*time.Hour)
	require.Nil(t, store.Save(context.Background(), live))

	expired := session.New("cicd-101", "kari", "eu-west-1", time.Hour)
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.Nil(t, store.Save(context.Background(), expired))

	noop := &provisioner.NoopProvisioner{}
	fake := &fakeCfn{
		bucketsByStack: map[string]map[string]string{},
		stacks: []cfntypes.Stack{
			taggedStack("live-stack", live.Id),
			taggedStack("expired-stack", expired.Id),
			taggedStack("orphan-stack", "long-gone-session"),
			taggedStack("someone-elses-stack", ""),
		},
	}

	cleanerObj := New(noop, fake, newFakeS3(), 1)
	destroyed, err := cleanerObj.Sweep(context.Background(), store)
	require.Nil(t, err)

	assert.ElementsMatch(t, []string{"expired-stack", "orphan-stack"}, destroyed)
	assert.NotContains(t, noop.DestroyedStacks, "live-stack")
	// untagged stacks must never be touched
	assert.NotContains(t, noop.DestroyedStacks, "someone-elses-stack")
}
