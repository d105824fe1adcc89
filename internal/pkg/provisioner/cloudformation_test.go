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

package provisioner

import (
	"context"
	"testing"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.ConfigureLogger("none", false)
}

// A scripted CloudFormation API double. Each DescribeStacks call pops the
// next status off the queue; the last entry is sticky.
type fakeCloudFormation struct {
	createInput  *cloudformation.CreateStackInput
	deleteInput  *cloudformation.DeleteStackInput
	createErr    error
	deleteErr    error
	describeErr  error
	statusQueue  []cfntypes.StackStatus
	statusReason string
	outputs      []cfntypes.Output
}

func (f *fakeCloudFormation) CreateStack(ctx context.Context,
	params *cloudformation.CreateStackInput,
	optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.createInput = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &cloudformation.CreateStackOutput{}, nil
}

func (f *fakeCloudFormation) DescribeStacks(ctx context.Context,
	params *cloudformation.DescribeStacksInput,
	optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}

	status := f.statusQueue[0]
	if len(f.statusQueue) > 1 {
		f.statusQueue = f.statusQueue[1:]
	}

	stack := cfntypes.Stack{
		StackName:   params.StackName,
		StackStatus: status,
		Outputs:     f.outputs,
	}
	if f.statusReason != "" {
		stack.StackStatusReason = awsv2.String(f.statusReason)
	}

	return &cloudformation.DescribeStacksOutput{
		Stacks: []cfntypes.Stack{stack},
	}, nil
}

func (f *fakeCloudFormation) DeleteStack(ctx context.Context,
	params *cloudformation.DeleteStackInput,
	optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	f.deleteInput = params
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &cloudformation.DeleteStackOutput{}, nil
}

func testProvisioner(api CloudFormationAPI) *CloudFormationProvisioner {
	return &CloudFormationProvisioner{
		api:          api,
		pollInterval: time.Millisecond,
		timeout:      time.Second,
	}
}

func validStackSpec() StackSpec {
	return StackSpec{
		StackName:    "labman-cicd-101-abc123-network",
		TemplateBody: "Resources: {}",
		Parameters:   map[string]string{"EnvironmentName": "lab"},
		Capabilities: []string{"CAPABILITY_IAM"},
		Tags: map[string]string{
			constants.TagSessionID: "abc123",
			constants.TagLabID:     "cicd-101",
			constants.TagExpiresAt: "2030-01-01T00:00:00Z",
		},
	}
}

func TestProvision(t *testing.T) {
	fake := &fakeCloudFormation{
		statusQueue: []cfntypes.StackStatus{
			cfntypes.StackStatusCreateInProgress,
			cfntypes.StackStatusCreateComplete,
		},
		outputs: []cfntypes.Output{
			{OutputKey: awsv2.String("VpcId"), OutputValue: awsv2.String("vpc-123")},
		},
	}

	outputs, err := testProvisioner(fake).Provision(context.Background(), validStackSpec())
	require.Nil(t, err)
	assert.Equal(t, map[string]string{"VpcId": "vpc-123"}, outputs)

	require.NotNil(t, fake.createInput)
	assert.Equal(t, cfntypes.OnFailureDelete, fake.createInput.OnFailure)
	assert.Len(t, fake.createInput.Tags, 3)
	assert.Len(t, fake.createInput.Parameters, 1)
	assert.Equal(t, []cfntypes.Capability{cfntypes.CapabilityCapabilityIam},
		fake.createInput.Capabilities)
}

func TestProvisionRollback(t *testing.T) {
	fake := &fakeCloudFormation{
		statusQueue: []cfntypes.StackStatus{
			cfntypes.StackStatusRollbackComplete,
		},
		statusReason: "Resource creation cancelled",
	}

	_, err := testProvisioner(fake).Provision(context.Background(), validStackSpec())
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "ROLLBACK_COMPLETE")
	assert.Contains(t, err.Error(), "Resource creation cancelled")
}

func TestProvisionMissingSessionTag(t *testing.T) {
	fake := &fakeCloudFormation{}

	spec := validStackSpec()
	delete(spec.Tags, constants.TagSessionID)

	_, err := testProvisioner(fake).Provision(context.Background(), spec)
	require.NotNil(t, err)
	assert.Nil(t, fake.createInput, "validation must fail before any API call")
}

func TestProvisionTimeout(t *testing.T) {
	fake := &fakeCloudFormation{
		statusQueue: []cfntypes.StackStatus{
			cfntypes.StackStatusCreateInProgress,
		},
	}

	provisionerObj := testProvisioner(fake)
	provisionerObj.timeout = 10 * time.Millisecond

	_, err := provisionerObj.Provision(context.Background(), validStackSpec())
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "Timed out")
}

func TestDestroy(t *testing.T) {
	fake := &fakeCloudFormation{
		statusQueue: []cfntypes.StackStatus{
			cfntypes.StackStatusDeleteInProgress,
			cfntypes.StackStatusDeleteComplete,
		},
	}

	err := testProvisioner(fake).Destroy(context.Background(), "labman-cicd-101-abc123-network")
	assert.Nil(t, err)
	require.NotNil(t, fake.deleteInput)
	assert.Equal(t, "labman-cicd-101-abc123-network", awsv2.ToString(fake.deleteInput.StackName))
}

func TestDestroyMissingStack(t *testing.T) {
	fake := &fakeCloudFormation{
		deleteErr: errors.New("Stack with id labman-x does not exist"),
	}

	err := testProvisioner(fake).Destroy(context.Background(), "labman-x")
	assert.Nil(t, err, "deleting an absent stack isn't an error")
}

func TestDestroyDisappearingStack(t *testing.T) {
	fake := &fakeCloudFormation{
		describeErr: errors.New("Stack with id labman-x does not exist"),
	}

	err := testProvisioner(fake).Destroy(context.Background(), "labman-x")
	assert.Nil(t, err)
}

func TestDestroyFailed(t *testing.T) {
	fake := &fakeCloudFormation{
		statusQueue: []cfntypes.StackStatus{
			cfntypes.StackStatusDeleteFailed,
		},
		statusReason: "Bucket not empty",
	}

	err := testProvisioner(fake).Destroy(context.Background(), "labman-x")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "DELETE_FAILED")
}

func TestNewFactory(t *testing.T) {
	provisionerObj, err := New(constants.ProvisionerNoop, awsv2.Config{},
		config.ProvisionConf{})
	assert.Nil(t, err)
	assert.IsType(t, &NoopProvisioner{}, provisionerObj)

	_, err = New("terraform", awsv2.Config{}, config.ProvisionConf{})
	assert.NotNil(t, err)
}
