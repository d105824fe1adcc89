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
	"strings"

	"github.com/certlab/labman/internal/pkg/cfn"
)

// A Mapper turns one resource declaration into an estimated hourly USD
// rate
type Mapper func(resource cfn.Resource) float64

// Nominal on-demand rates. These are deliberately coarse... the point is
// catching a forgotten db.r5.4xlarge before it runs all night, not billing
// accuracy.
var ec2HourlyRates = map[string]float64{
	"t2.nano":   0.0058,
	"t2.micro":  0.0116,
	"t2.small":  0.023,
	"t3.nano":   0.0052,
	"t3.micro":  0.0104,
	"t3.small":  0.0208,
	"t3.medium": 0.0416,
	"t3.large":  0.0832,
	"m5.large":  0.096,
	"m5.xlarge": 0.192,
	"c5.large":  0.085,
	"r5.large":  0.126,
}

var rdsHourlyRates = map[string]float64{
	"db.t3.micro":  0.017,
	"db.t3.small":  0.034,
	"db.t3.medium": 0.068,
	"db.m5.large":  0.171,
	"db.r5.large":  0.24,
}

const (
	// fallback when an instance type isn't in the table; high enough to
	// trip budgets rather than hide cost
	defaultEc2HourlyRate = 0.2
	defaultRdsHourlyRate = 0.3

	natGatewayHourlyRate   = 0.045
	loadBalancerHourlyRate = 0.0225
	eipHourlyRate          = 0.005
	// gp2/gp3 is ~0.10 USD per GB-month; 730 hours in a month
	ebsGbHourlyRate = 0.10 / 730
	// per provisioned capacity unit
	dynamodbRcuHourlyRate = 0.00013
	dynamodbWcuHourlyRate = 0.00065
	// buckets are near-free at lab scale but shouldn't read as zero
	s3BucketHourlyRate = 0.01
)

// Built-in mappers keyed by CloudFormation resource type
func defaultMappers() map[string]Mapper {
	return map[string]Mapper{
		"AWS::EC2::Instance": func(resource cfn.Resource) float64 {
			return instanceRate(resource, "InstanceType", ec2HourlyRates,
				defaultEc2HourlyRate)
		},
		"AWS::RDS::DBInstance": func(resource cfn.Resource) float64 {
			return instanceRate(resource, "DBInstanceClass", rdsHourlyRates,
				defaultRdsHourlyRate)
		},
		"AWS::EC2::NatGateway": flatRate(natGatewayHourlyRate),
		"AWS::ElasticLoadBalancingV2::LoadBalancer": flatRate(loadBalancerHourlyRate),
		"AWS::ElasticLoadBalancing::LoadBalancer":   flatRate(loadBalancerHourlyRate),
		"AWS::EC2::EIP":                             flatRate(eipHourlyRate),
		"AWS::EC2::Volume": func(resource cfn.Resource) float64 {
			size, ok := resource.PropFloat("Size")
			if !ok {
				size = 8
			}
			return size * ebsGbHourlyRate
		},
		"AWS::DynamoDB::Table": func(resource cfn.Resource) float64 {
			// on-demand tables bill per request, which rounds to zero for
			// lab traffic
			if mode, _ := resource.PropString("BillingMode"); mode == "PAY_PER_REQUEST" {
				return 0
			}

			rcu, ok := resource.PropFloat("ProvisionedThroughput", "ReadCapacityUnits")
			if !ok {
				rcu = 5
			}
			wcu, ok := resource.PropFloat("ProvisionedThroughput", "WriteCapacityUnits")
			if !ok {
				wcu = 5
			}
			return rcu*dynamodbRcuHourlyRate + wcu*dynamodbWcuHourlyRate
		},
		"AWS::S3::Bucket": flatRate(s3BucketHourlyRate),
	}
}

func flatRate(rate float64) Mapper {
	return func(resource cfn.Resource) float64 {
		return rate
	}
}

func instanceRate(resource cfn.Resource, property string,
	rates map[string]float64, fallback float64) float64 {

	instanceType, ok := resource.PropString(property)
	if !ok {
		return fallback
	}

	if rate, ok := rates[strings.ToLower(instanceType)]; ok {
		return rate
	}
	return fallback
}
