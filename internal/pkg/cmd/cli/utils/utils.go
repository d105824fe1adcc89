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

// Package utils wires configuration into the object graph the CLI commands
// run against.
package utils

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/certlab/labman/internal/pkg/awsclient"
	"github.com/certlab/labman/internal/pkg/cleaner"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/lab"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/manager"
	"github.com/certlab/labman/internal/pkg/provisioner"
	"github.com/certlab/labman/internal/pkg/sessionstore"
	"github.com/pkg/errors"
)

// Loads the lab catalog from the configured directory
func LoadCatalog() (*lab.Catalog, error) {
	conf := config.CurrentConfig
	return lab.LoadCatalog(conf.CatalogDir)
}

// Builds a fully wired session manager. On a dry run stacks are pretended
// into existence by the noop provisioner instead of CloudFormation.
func BuildManager(ctx context.Context, dryRun bool) (*manager.Manager, error) {
	conf := config.CurrentConfig

	catalog, err := LoadCatalog()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	awsConfig, err := awsclient.LoadConfig(ctx,
		awsclient.WithProfile(conf.Profile),
		awsclient.WithRegion(conf.Region))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !dryRun {
		account, arn, err := awsclient.CallerIdentity(ctx, awsConfig)
		if err != nil {
			return nil, errors.Wrap(err, "Error verifying AWS credentials")
		}
		log.Logger.Infof("Running as '%s' in account %s", arn, account)
	}

	provisionerName := constants.ProvisionerCloudFormation
	if dryRun {
		provisionerName = constants.ProvisionerNoop
	}

	provisionerImpl, err := provisioner.New(provisionerName, awsConfig,
		conf.Provision)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	store, err := sessionstore.New(conf.Sessions, awsConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cleanerObj := cleaner.New(provisionerImpl,
		cloudformation.NewFromConfig(awsConfig), s3.NewFromConfig(awsConfig),
		conf.NumWorkers)

	return manager.New(catalog, store, provisionerImpl, cleanerObj, conf), nil
}
