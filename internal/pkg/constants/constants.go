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

package constants

// Tags stamped onto every CloudFormation stack a session creates. The
// cleaner refuses to touch stacks that don't carry the session ID tag.
const (
	TagSessionID = "labman:session-id"
	TagLabID     = "labman:lab-id"
	TagExpiresAt = "labman:expires-at"
	TagOwner     = "labman:owner"
)

// Actions that can be executed while traversing a session's template DAG
const (
	DagActionProvision = "provision"
	DagActionDestroy   = "destroy"
	DagActionTemplate  = "template"
)

// Provisioner implementations
const (
	ProvisionerCloudFormation = "cloudformation"
	ProvisionerNoop           = "noop"
)

// Session store backends
const (
	StoreBackendLocal    = "local"
	StoreBackendDynamoDB = "dynamodb"
)

// Keys into the run registry that templates can reference
const (
	RegistryKeyOutputs = "outputs"
	RegistryKeyRegion  = "region"
)

// Name of the dotdir holding local state (under the user's home dir)
const AppDirName = ".labman"
