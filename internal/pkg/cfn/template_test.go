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

package cfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlTemplate = `
AWSTemplateFormatVersion: "2010-09-09"
Resources:
  WebServer:
    Type: AWS::EC2::Instance
    Properties:
      InstanceType: t3.micro
      Tags:
        - Key: Environment
          Value: lab
        - Key: ManagedBy
          Value: labman
  DataBucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketEncryption:
        ServerSideEncryptionConfiguration:
          - ServerSideEncryptionByDefault:
              SSEAlgorithm: AES256
`

const jsonTemplate = `{
  "AWSTemplateFormatVersion": "2010-09-09",
  "Resources": {
    "WebServer": {
      "Type": "AWS::EC2::Instance",
      "Properties": {
        "InstanceType": "t3.micro",
        "EbsOptimized": false
      }
    }
  }
}`

func TestParseYamlTemplate(t *testing.T) {
	template, err := ParseTemplate([]byte(yamlTemplate))
	require.Nil(t, err)
	require.Len(t, template.Resources, 2)

	webServer := template.Resources["WebServer"]
	assert.Equal(t, "AWS::EC2::Instance", webServer.Type)

	instanceType, ok := webServer.PropString("InstanceType")
	assert.True(t, ok)
	assert.Equal(t, "t3.micro", instanceType)

	assert.Equal(t, []string{"Environment", "ManagedBy"}, webServer.TagKeys())

	// nested property access through normalised maps
	bucket := template.Resources["DataBucket"]
	configs, ok := bucket.PropList("BucketEncryption",
		"ServerSideEncryptionConfiguration")
	assert.True(t, ok)
	assert.Len(t, configs, 1)
}

func TestParseJsonTemplate(t *testing.T) {
	template, err := ParseTemplate([]byte(jsonTemplate))
	require.Nil(t, err)
	require.Len(t, template.Resources, 1)

	webServer := template.Resources["WebServer"]
	assert.Equal(t, "AWS::EC2::Instance", webServer.Type)

	optimised, ok := webServer.PropBool("EbsOptimized")
	assert.True(t, ok)
	assert.False(t, optimised)
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"invalid json", "{ not json"},
		{"no resources yaml", "Outputs: {}"},
		{"no resources json", `{"Outputs": {}}`},
		{"missing type", "Resources:\n  Thing:\n    Properties: {}"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(test.input))
			assert.NotNil(t, err)
		})
	}
}

func TestSortedResources(t *testing.T) {
	template, err := ParseTemplate([]byte(yamlTemplate))
	require.Nil(t, err)

	resources := template.SortedResources()
	require.Len(t, resources, 2)
	assert.Equal(t, "DataBucket", resources[0].LogicalId)
	assert.Equal(t, "WebServer", resources[1].LogicalId)
}
