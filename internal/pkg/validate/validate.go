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

// Package validate statically analyses CloudFormation templates against
// the security and hygiene rules lab templates must satisfy.
package validate

import (
	"fmt"

	"github.com/certlab/labman/internal/pkg/cfn"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/pkg/errors"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule IDs
const (
	RuleOpenIngress       = "open-ingress"
	RuleIamWildcard       = "iam-wildcard"
	RulePublicS3Acl       = "s3-public-acl"
	RulePublicAccessBlock = "s3-public-access-block"
	RuleUnencrypted       = "unencrypted"
	RuleRequiredTags      = "required-tags"
	RuleMaxResources      = "max-resources"
	RuleInstanceType      = "instance-type"
	RuleForbiddenType     = "forbidden-type"
)

// One rule violation in a template
type Finding struct {
	RuleId    string
	Severity  Severity
	LogicalId string
	Message   string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.RuleId, f.Message,
		f.LogicalId)
}

// The outcome of validating one template
type Result struct {
	TemplatePath string
	Findings     []Finding
}

// Findings with error severity. Warnings don't fail validation.
func (r *Result) Errors() []Finding {
	findings := make([]Finding, 0)
	for _, finding := range r.Findings {
		if finding.Severity == SeverityError {
			findings = append(findings, finding)
		}
	}
	return findings
}

func (r *Result) OK() bool {
	return len(r.Errors()) == 0
}

type rule func(template *cfn.Template, conf config.ValidationConf) []Finding

// Validator runs every rule against parsed templates
type Validator struct {
	conf  config.ValidationConf
	rules []rule
}

func New(conf config.ValidationConf) *Validator {
	return &Validator{
		conf: conf,
		rules: []rule{
			checkOpenIngress,
			checkIamWildcards,
			checkPublicS3Acls,
			checkPublicAccessBlocks,
			checkEncryptionFlags,
			checkRequiredTags,
			checkMaxResources,
			checkInstanceTypes,
			checkForbiddenTypes,
		},
	}
}

func (v *Validator) Validate(template *cfn.Template) []Finding {
	findings := make([]Finding, 0)
	for _, check := range v.rules {
		findings = append(findings, check(template, v.conf)...)
	}
	return findings
}

func (v *Validator) ValidateFile(path string) (*Result, error) {
	template, err := cfn.ParseTemplateFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Result{
		TemplatePath: path,
		Findings:     v.Validate(template),
	}, nil
}
