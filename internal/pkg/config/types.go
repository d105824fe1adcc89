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

// Typed representation of the labman config file plus any overrides from
// env vars / CLI flags
type Conf struct {
	JsonLogs   bool   `mapstructure:"json-logs"`
	LogLevel   string `mapstructure:"log-level"`
	NumWorkers int    `mapstructure:"num-workers"`
	CatalogDir string `mapstructure:"catalog-dir"`

	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`

	Sessions   SessionsConf   `mapstructure:"sessions"`
	Budget     BudgetConf     `mapstructure:"budget"`
	Validation ValidationConf `mapstructure:"validation"`
	Provision  ProvisionConf  `mapstructure:"provision"`
}

type SessionsConf struct {
	// "local" or "dynamodb"
	Backend string `mapstructure:"backend"`
	// local backend: directory holding session records (defaults to
	// ~/.labman/sessions)
	Dir string `mapstructure:"dir"`
	// dynamodb backend: table name
	Table string `mapstructure:"table"`
	// default session TTL, e.g. "4h"
	DefaultTtl string `mapstructure:"default-ttl"`
}

type BudgetConf struct {
	// maximum estimated hourly cost (USD) allowed for a session
	MaxHourly float64 `mapstructure:"max-hourly"`
	// maximum estimated total cost (USD) for a session over its TTL
	MaxSession float64 `mapstructure:"max-session"`
}

// Static-analysis thresholds applied to lab CloudFormation templates
type ValidationConf struct {
	RequiredTags           []string `mapstructure:"required-tags"`
	AllowedIngressPorts    []int    `mapstructure:"allowed-ingress-ports"`
	AllowedInstanceTypes   []string `mapstructure:"allowed-instance-types"`
	ForbiddenResourceTypes []string `mapstructure:"forbidden-resource-types"`
	MaxResources           int      `mapstructure:"max-resources"`
}

type ProvisionConf struct {
	// seconds between stack status polls
	PollIntervalSeconds int `mapstructure:"poll-interval-seconds"`
	// max seconds to wait for a stack to reach a terminal status
	TimeoutSeconds int `mapstructure:"timeout-seconds"`
}
