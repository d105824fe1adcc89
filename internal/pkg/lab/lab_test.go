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

package lab

import (
	"path"
	"testing"
	"time"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/structs"
	"github.com/stretchr/testify/assert"
)

func init() {
	log.ConfigureLogger("debug", false)
}

// descriptors resolve template paths against this directory, which holds
// real template bodies
var fixtureDir = path.Join(testDir, "catalog")

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		descriptor    structs.Lab
		expectedError bool
	}{
		{
			name: "valid",
			descriptor: structs.Lab{
				Id:       "sec-101",
				Category: "security",
				Ttl:      "90m",
				Templates: []structs.Template{
					{Id: "base", Path: "templates/network.yaml"},
					{Id: "app", Path: "templates/webtier.yaml",
						DependsOn: []string{"base"}},
				},
			},
			expectedError: false,
		},
		{
			name: "missing_id",
			descriptor: structs.Lab{
				Templates: []structs.Template{
					{Id: "base", Path: "templates/network.yaml"},
				},
			},
			expectedError: true,
		},
		{
			name: "no_templates",
			descriptor: structs.Lab{
				Id: "sec-101",
			},
			expectedError: true,
		},
		{
			name: "unknown_category",
			descriptor: structs.Lab{
				Id:       "sec-101",
				Category: "quantum",
				Templates: []structs.Template{
					{Id: "base", Path: "templates/network.yaml"},
				},
			},
			expectedError: true,
		},
		{
			name: "duplicate_template_ids",
			descriptor: structs.Lab{
				Id: "sec-101",
				Templates: []structs.Template{
					{Id: "base", Path: "templates/network.yaml"},
					{Id: "base", Path: "templates/webtier.yaml"},
				},
			},
			expectedError: true,
		},
		{
			name: "self_dependency",
			descriptor: structs.Lab{
				Id: "sec-101",
				Templates: []structs.Template{
					{Id: "base", Path: "templates/network.yaml",
						DependsOn: []string{"base"}},
				},
			},
			expectedError: true,
		},
		{
			name: "missing_dependency",
			descriptor: structs.Lab{
				Id: "sec-101",
				Templates: []structs.Template{
					{Id: "app", Path: "templates/webtier.yaml",
						DependsOn: []string{"missing"}},
				},
			},
			expectedError: true,
		},
		{
			name: "no_template_path",
			descriptor: structs.Lab{
				Id: "sec-101",
				Templates: []structs.Template{
					{Id: "base"},
				},
			},
			expectedError: true,
		},
		{
			name: "template_body_doesnt_exist",
			descriptor: structs.Lab{
				Id: "sec-101",
				Templates: []structs.Template{
					{Id: "base", Path: "templates/netwrok.yaml"},
				},
			},
			expectedError: true,
		},
		{
			name: "bad_ttl",
			descriptor: structs.Lab{
				Id:  "sec-101",
				Ttl: "whenever",
				Templates: []structs.Template{
					{Id: "base", Path: "templates/network.yaml"},
				},
			},
			expectedError: true,
		},
	}

	for _, test := range tests {
		labObj, err := New(test.descriptor, fixtureDir)
		if test.expectedError {
			assert.NotNil(t, err, "expected an error for %s", test.name)
			assert.Nil(t, labObj)
		} else {
			assert.Nil(t, err, "unexpected error for %s", test.name)
			assert.Equal(t, test.descriptor.Id, labObj.Id())
		}
	}
}

func TestTtl(t *testing.T) {
	labObj, err := New(structs.Lab{
		Id:  "iac-101",
		Ttl: "2h",
		Templates: []structs.Template{
			{Id: "base", Path: "templates/network.yaml"},
		},
	}, fixtureDir)
	assert.Nil(t, err)
	assert.Equal(t, 2*time.Hour, labObj.Ttl())
}

func TestTemplatePath(t *testing.T) {
	labObj, err := New(structs.Lab{
		Id: "iac-101",
		Templates: []structs.Template{
			{Id: "base", Path: "templates/network.yaml"},
		},
	}, fixtureDir)
	assert.Nil(t, err)

	template, ok := labObj.Template("base")
	assert.True(t, ok)
	assert.Equal(t, path.Join(fixtureDir, "templates/network.yaml"),
		labObj.TemplatePath(template))
}
