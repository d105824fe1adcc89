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

package config

import (
	"path"
	"testing"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/stretchr/testify/assert"
)

const testDir = "../../testdata"

func init() {
	log.ConfigureLogger("debug", false)
}

func TestLoad(t *testing.T) {
	configFile := path.Join(testDir, "test-labman-conf.yaml")
	ViperConfig.SetConfigFile(configFile)

	err := Load(ViperConfig)
	assert.Nil(t, err)

	assert.Equal(t, 3, CurrentConfig.NumWorkers)
	assert.Equal(t, "eu-west-1", CurrentConfig.Region)
	assert.Equal(t, "local", CurrentConfig.Sessions.Backend)
	assert.Equal(t, "2h", CurrentConfig.Sessions.DefaultTtl)
	assert.Equal(t, 2.5, CurrentConfig.Budget.MaxHourly)
	assert.Equal(t, []string{"Project", "Environment"}, CurrentConfig.Validation.RequiredTags)
	assert.Equal(t, []int{22, 443}, CurrentConfig.Validation.AllowedIngressPorts)
	assert.Equal(t, 25, CurrentConfig.Validation.MaxResources)
	assert.Equal(t, 900, CurrentConfig.Provision.TimeoutSeconds)
}
