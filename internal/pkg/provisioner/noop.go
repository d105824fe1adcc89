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
	"sync"

	"github.com/certlab/labman/internal/pkg/log"
)

// A provisioner that doesn't create any real infrastructure. Used for dry
// runs and in tests. It records the specs and stack names it was given.
type NoopProvisioner struct {
	mutex           sync.Mutex
	ProvisionedSpec []StackSpec
	DestroyedStacks []string
}

func (p *NoopProvisioner) Provision(ctx context.Context,
	spec StackSpec) (map[string]string, error) {

	err := validateSpec(spec)
	if err != nil {
		return nil, err
	}

	log.Logger.Infof("Noop provisioner pretending to create stack '%s'",
		spec.StackName)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.ProvisionedSpec = append(p.ProvisionedSpec, spec)

	return map[string]string{}, nil
}

func (p *NoopProvisioner) Destroy(ctx context.Context, stackName string) error {
	log.Logger.Infof("Noop provisioner pretending to delete stack '%s'", stackName)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.DestroyedStacks = append(p.DestroyedStacks, stackName)

	return nil
}
