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
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/pkg/errors"
)

// A request to bring up a single stack
type StackSpec struct {
	StackName    string
	TemplateBody string
	Parameters   map[string]string
	Capabilities []string
	// Tags stamped onto the stack and propagated by CloudFormation to
	// every resource it creates. Must include the session ID tag.
	Tags map[string]string
}

// Provisioner turns a stack spec into real (or pretend) infrastructure
type Provisioner interface {
	// Provision creates the stack and blocks until it reaches a terminal
	// status, returning its outputs
	Provision(ctx context.Context, spec StackSpec) (map[string]string, error)
	// Destroy deletes the stack and blocks until it's gone. Deleting a
	// stack that doesn't exist isn't an error.
	Destroy(ctx context.Context, stackName string) error
}

// Factory that creates provisioners
func New(name string, awsConfig awsv2.Config, provisionConf config.ProvisionConf) (Provisioner, error) {
	switch name {
	case constants.ProvisionerCloudFormation:
		return &CloudFormationProvisioner{
			api:          cloudformation.NewFromConfig(awsConfig),
			pollInterval: time.Duration(provisionConf.PollIntervalSeconds) * time.Second,
			timeout:      time.Duration(provisionConf.TimeoutSeconds) * time.Second,
		}, nil
	case constants.ProvisionerNoop:
		return &NoopProvisioner{}, nil
	}

	return nil, errors.New(fmt.Sprintf("Provisioner '%s' doesn't exist", name))
}

// Validates that the spec carries the isolation tags every session stack
// must have
func validateSpec(spec StackSpec) error {
	if spec.StackName == "" {
		return errors.New("Stack specs must have a stack name")
	}

	if spec.TemplateBody == "" {
		return errors.New(fmt.Sprintf("Stack spec '%s' has an empty template body",
			spec.StackName))
	}

	for _, required := range []string{constants.TagSessionID, constants.TagLabID,
		constants.TagExpiresAt} {
		if _, ok := spec.Tags[required]; !ok {
			return errors.New(fmt.Sprintf("Stack spec '%s' is missing the "+
				"mandatory '%s' tag", spec.StackName, required))
		}
	}

	return nil
}
