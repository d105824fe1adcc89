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

package awsclient

import (
	"context"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/pkg/errors"
)

// options holds optional overrides for AWS config loading
type options struct {
	profile string
	region  string
}

// Option customises how AWS config is loaded. Default behaviour (no
// options) inherits the shell environment and shared config chain
// (AWS_PROFILE, ~/.aws/config, ~/.aws/credentials, IMDS, etc.)
type Option func(*options)

func WithProfile(profile string) Option {
	return func(o *options) {
		o.profile = profile
	}
}

func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// LoadConfig loads AWS SDK v2 config. By default it inherits the shell's
// AWS setup. Options can override profile and region without changing
// callers.
func LoadConfig(ctx context.Context, opts ...Option) (awsv2.Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log.Logger.Debugf("Loading AWS config with profile=%s, region=%s",
		o.profile, o.region)

	loadOpts := make([]func(*awsconfig.LoadOptions) error, 0)
	if o.profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return awsv2.Config{}, errors.Wrapf(err, "Error loading AWS config")
	}

	return cfg, nil
}

// Returns the account ID and ARN of the current credentials so it's obvious
// in the logs which account lab resources will land in
func CallerIdentity(ctx context.Context, cfg awsv2.Config) (string, string, error) {
	client := sts.NewFromConfig(cfg)

	identity, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", errors.Wrapf(err, "Error getting caller identity")
	}

	return awsv2.ToString(identity.Account), awsv2.ToString(identity.Arn), nil
}
