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
	"fmt"
	"sort"
	"strings"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/pkg/errors"
)

// The subset of the CloudFormation API the provisioner uses, so tests can
// swap in a fake
type CloudFormationAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// Provisions lab infrastructure as CloudFormation stacks
type CloudFormationProvisioner struct {
	api          CloudFormationAPI
	pollInterval time.Duration
	timeout      time.Duration
}

func (p *CloudFormationProvisioner) Provision(ctx context.Context,
	spec StackSpec) (map[string]string, error) {

	err := validateSpec(spec)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	log.Logger.Infof("Creating CloudFormation stack '%s'...", spec.StackName)

	input := &cloudformation.CreateStackInput{
		StackName:    awsv2.String(spec.StackName),
		TemplateBody: awsv2.String(spec.TemplateBody),
		Parameters:   toParameters(spec.Parameters),
		Capabilities: toCapabilities(spec.Capabilities),
		Tags:         toTags(spec.Tags),
		// a failed create must roll back fully so the cleaner never has
		// to reason about half-created stacks
		OnFailure: cfntypes.OnFailureDelete,
	}

	_, err = p.api.CreateStack(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "Error creating stack '%s'", spec.StackName)
	}

	stack, err := p.waitForTerminalStatus(ctx, spec.StackName)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if stack.StackStatus != cfntypes.StackStatusCreateComplete {
		return nil, errors.New(fmt.Sprintf("Stack '%s' reached status '%s': %s",
			spec.StackName, stack.StackStatus,
			awsv2.ToString(stack.StackStatusReason)))
	}

	outputs := map[string]string{}
	for _, output := range stack.Outputs {
		outputs[awsv2.ToString(output.OutputKey)] = awsv2.ToString(output.OutputValue)
	}

	log.Logger.Infof("Stack '%s' created with %d output(s)", spec.StackName,
		len(outputs))

	return outputs, nil
}

func (p *CloudFormationProvisioner) Destroy(ctx context.Context, stackName string) error {
	log.Logger.Infof("Deleting CloudFormation stack '%s'...", stackName)

	_, err := p.api.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: awsv2.String(stackName),
	})
	if err != nil {
		if stackMissing(err) {
			log.Logger.Infof("Stack '%s' doesn't exist... nothing to delete", stackName)
			return nil
		}
		return errors.Wrapf(err, "Error deleting stack '%s'", stackName)
	}

	stack, err := p.waitForTerminalStatus(ctx, stackName)
	if err != nil {
		if stackMissing(errors.Cause(err)) {
			// the stack disappearing is a successful delete
			return nil
		}
		return errors.WithStack(err)
	}

	if stack.StackStatus != cfntypes.StackStatusDeleteComplete {
		return errors.New(fmt.Sprintf("Stack '%s' reached status '%s': %s",
			stackName, stack.StackStatus, awsv2.ToString(stack.StackStatusReason)))
	}

	return nil
}

// Polls the stack until it reaches a terminal status or the timeout elapses
func (p *CloudFormationProvisioner) waitForTerminalStatus(ctx context.Context,
	stackName string) (*cfntypes.Stack, error) {

	deadline := time.Now().Add(p.timeout)

	for {
		if time.Now().After(deadline) {
			return nil, errors.New(fmt.Sprintf("Timed out after %s waiting for "+
				"stack '%s' to reach a terminal status", p.timeout, stackName))
		}

		described, err := p.api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: awsv2.String(stackName),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "Error describing stack '%s'", stackName)
		}

		if len(described.Stacks) == 0 {
			return nil, errors.New(fmt.Sprintf("Stack '%s' does not exist", stackName))
		}

		stack := described.Stacks[0]

		if terminalStatus(stack.StackStatus) {
			return &stack, nil
		}

		log.Logger.Debugf("Stack '%s' is in status '%s'. Sleeping for %s...",
			stackName, stack.StackStatus, p.pollInterval)

		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}
}

// Statuses that will never change without another API call
func terminalStatus(status cfntypes.StackStatus) bool {
	switch status {
	case cfntypes.StackStatusCreateComplete,
		cfntypes.StackStatusCreateFailed,
		cfntypes.StackStatusRollbackComplete,
		cfntypes.StackStatusRollbackFailed,
		cfntypes.StackStatusDeleteComplete,
		cfntypes.StackStatusDeleteFailed,
		cfntypes.StackStatusUpdateComplete,
		cfntypes.StackStatusUpdateRollbackComplete,
		cfntypes.StackStatusUpdateRollbackFailed:
		return true
	}
	return false
}

// CloudFormation reports missing stacks through a validation error rather
// than a typed one
func stackMissing(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "does not exist")
}

func toParameters(parameters map[string]string) []cfntypes.Parameter {
	keys := make([]string, 0)
	for key := range parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]cfntypes.Parameter, 0)
	for _, key := range keys {
		result = append(result, cfntypes.Parameter{
			ParameterKey:   awsv2.String(key),
			ParameterValue: awsv2.String(parameters[key]),
		})
	}
	return result
}

func toCapabilities(capabilities []string) []cfntypes.Capability {
	result := make([]cfntypes.Capability, 0)
	for _, capability := range capabilities {
		result = append(result, cfntypes.Capability(capability))
	}
	return result
}

func toTags(tags map[string]string) []cfntypes.Tag {
	keys := make([]string, 0)
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]cfntypes.Tag, 0)
	for _, key := range keys {
		result = append(result, cfntypes.Tag{
			Key:   awsv2.String(key),
			Value: awsv2.String(tags[key]),
		})
	}
	return result
}
