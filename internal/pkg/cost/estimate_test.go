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

package cost

import (
	"testing"
	"time"

	"github.com/certlab/labman/internal/pkg/cfn"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedTemplate(t *testing.T, body string) *cfn.Template {
	template, err := cfn.ParseTemplate([]byte(body))
	require.Nil(t, err)
	return template
}

func TestEstimate(t *testing.T) {
	templates := map[string]*cfn.Template{
		"webtier": parsedTemplate(t, `
Resources:
  WebServer:
    Type: AWS::EC2::Instance
    Properties:
      InstanceType: t3.micro
  Nat:
    Type: AWS::EC2::NatGateway
`),
		"storage": parsedTemplate(t, `
Resources:
  Artifacts:
    Type: AWS::S3::Bucket
  Cache:
    Type: AWS::ElastiCache::CacheCluster
`),
	}

	estimate := NewEstimator().Estimate(templates, nil)

	require.Len(t, estimate.Templates, 2)
	// templates come back sorted by ID
	assert.Equal(t, "storage", estimate.Templates[0].TemplateId)
	assert.Equal(t, "webtier", estimate.Templates[1].TemplateId)

	assert.InDelta(t, 0.0104+0.045, estimate.Templates[1].HourlyUSD, 0.0001)
	assert.InDelta(t, 0.01, estimate.Templates[0].HourlyUSD, 0.0001)
	assert.InDelta(t, 0.0104+0.045+0.01, estimate.HourlyUSD, 0.0001)

	// the cache cluster has no mapper and must be surfaced, not zeroed
	assert.Equal(t, []string{"AWS::ElastiCache::CacheCluster"},
		estimate.UnmappedTypes)

	storage := estimate.Templates[0]
	require.Len(t, storage.Resources, 2)
	assert.False(t, storage.Resources[1].Mapped)
	assert.Equal(t, "Cache", storage.Resources[1].LogicalId)
}

func TestEstimateUnknownInstanceTypeFallsBack(t *testing.T) {
	templates := map[string]*cfn.Template{
		"webtier": parsedTemplate(t, `
Resources:
  BigBox:
    Type: AWS::EC2::Instance
    Properties:
      InstanceType: x2gd.16xlarge
`),
	}

	estimate := NewEstimator().Estimate(templates, nil)
	assert.InDelta(t, defaultEc2HourlyRate, estimate.HourlyUSD, 0.0001)
}

func TestEstimateCostHints(t *testing.T) {
	templates := map[string]*cfn.Template{
		"webtier": parsedTemplate(t, `
Resources:
  WebServer:
    Type: AWS::EC2::Instance
    Properties:
      InstanceType: t3.micro
`),
	}

	// an autoscaling group will run 3 instances even though the template
	// declares one
	estimate := NewEstimator().Estimate(templates,
		map[string]int{"AWS::EC2::Instance": 3})

	assert.InDelta(t, 3*0.0104, estimate.HourlyUSD, 0.0001)
}

func TestEstimateDynamoDBProvisioned(t *testing.T) {
	templates := map[string]*cfn.Template{
		"storage": parsedTemplate(t, `
Resources:
  Table:
    Type: AWS::DynamoDB::Table
    Properties:
      ProvisionedThroughput:
        ReadCapacityUnits: 10
        WriteCapacityUnits: 10
  OnDemand:
    Type: AWS::DynamoDB::Table
    Properties:
      BillingMode: PAY_PER_REQUEST
`),
	}

	estimate := NewEstimator().Estimate(templates, nil)
	assert.InDelta(t, 10*dynamodbRcuHourlyRate+10*dynamodbWcuHourlyRate,
		estimate.HourlyUSD, 0.0001)
}

func TestSessionTotalUSD(t *testing.T) {
	// 90 minutes rounds up to 2 hours
	assert.InDelta(t, 2.0, SessionTotalUSD(1.0, 90*time.Minute), 0.0001)
	assert.InDelta(t, 4.0, SessionTotalUSD(1.0, 4*time.Hour), 0.0001)
	assert.InDelta(t, 0.0, SessionTotalUSD(1.0, 0), 0.0001)
}

func TestCheckBudget(t *testing.T) {
	budget := config.BudgetConf{MaxHourly: 1.0, MaxSession: 5.0}

	withinBudget := &Estimate{HourlyUSD: 0.5}
	assert.Nil(t, CheckBudget(withinBudget, budget, 4*time.Hour))

	overHourly := &Estimate{HourlyUSD: 1.5}
	err := CheckBudget(overHourly, budget, time.Hour)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "hourly rate")

	overTotal := &Estimate{HourlyUSD: 0.75}
	err = CheckBudget(overTotal, budget, 8*time.Hour)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "session total")

	// zero limits disable the checks
	assert.Nil(t, CheckBudget(overHourly, config.BudgetConf{}, 100*time.Hour))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$1,234.56", FormatUSD(1234.56))
	assert.Equal(t, "$0.05", FormatUSD(0.05))
}
