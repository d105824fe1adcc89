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

package validate

import (
	"fmt"
	"strings"

	"github.com/certlab/labman/internal/pkg/cfn"
	"github.com/certlab/labman/internal/pkg/config"
)

// Resource types the required-tags rule applies to. Untaggable types (e.g.
// route table associations) are skipped rather than flagged.
var taggableTypes = map[string]bool{
	"AWS::EC2::Instance":                        true,
	"AWS::EC2::SecurityGroup":                   true,
	"AWS::EC2::Volume":                          true,
	"AWS::EC2::VPC":                             true,
	"AWS::EC2::Subnet":                          true,
	"AWS::EC2::NatGateway":                      true,
	"AWS::S3::Bucket":                           true,
	"AWS::RDS::DBInstance":                      true,
	"AWS::DynamoDB::Table":                      true,
	"AWS::ElasticLoadBalancingV2::LoadBalancer": true,
	"AWS::IAM::Role":                            true,
	"AWS::Lambda::Function":                     true,
}

// Flags 0.0.0.0/0 (and ::/0) ingress on ports outside the allow list
func checkOpenIngress(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	allowed := map[int]bool{}
	for _, port := range conf.AllowedIngressPorts {
		allowed[port] = true
	}

	for _, resource := range template.SortedResources() {
		var ingressRules []interface{}

		switch resource.Type {
		case "AWS::EC2::SecurityGroup":
			rules, ok := resource.PropList("SecurityGroupIngress")
			if !ok {
				continue
			}
			ingressRules = rules
		case "AWS::EC2::SecurityGroupIngress":
			ingressRules = []interface{}{resource.Properties}
		default:
			continue
		}

		for _, raw := range ingressRules {
			ingress, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}

			if !worldOpen(ingress) {
				continue
			}

			fromPort, toPort := portRange(ingress)
			for port := fromPort; port <= toPort; port++ {
				if !allowed[port] {
					findings = append(findings, Finding{
						RuleId:    RuleOpenIngress,
						Severity:  SeverityError,
						LogicalId: resource.LogicalId,
						Message: fmt.Sprintf("ingress from 0.0.0.0/0 on port "+
							"%d isn't in the allowed list", port),
					})
					break
				}
			}
		}
	}

	return findings
}

func worldOpen(ingress map[string]interface{}) bool {
	if cidr, ok := ingress["CidrIp"].(string); ok && cidr == "0.0.0.0/0" {
		return true
	}
	if cidr, ok := ingress["CidrIpv6"].(string); ok && cidr == "::/0" {
		return true
	}
	return false
}

func portRange(ingress map[string]interface{}) (int, int) {
	from := asInt(ingress["FromPort"], 0)
	to := asInt(ingress["ToPort"], from)
	if to < from {
		to = from
	}
	return from, to
}

func asInt(value interface{}, fallback int) int {
	switch typed := value.(type) {
	case int:
		return typed
	case float64:
		return int(typed)
	case string:
		parsed := 0
		if _, err := fmt.Sscanf(typed, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

// Flags IAM policy statements granting Action:* on Resource:*
func checkIamWildcards(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	for _, resource := range template.SortedResources() {
		documents := make([]interface{}, 0)

		switch resource.Type {
		case "AWS::IAM::Policy", "AWS::IAM::ManagedPolicy":
			if document, ok := resource.Prop("PolicyDocument"); ok {
				documents = append(documents, document)
			}
		case "AWS::IAM::Role", "AWS::IAM::User", "AWS::IAM::Group":
			policies, ok := resource.PropList("Policies")
			if !ok {
				continue
			}
			for _, raw := range policies {
				policy, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				if document, ok := policy["PolicyDocument"]; ok {
					documents = append(documents, document)
				}
			}
		default:
			continue
		}

		for _, document := range documents {
			if policyGrantsEverything(document) {
				findings = append(findings, Finding{
					RuleId:    RuleIamWildcard,
					Severity:  SeverityError,
					LogicalId: resource.LogicalId,
					Message:   "policy statement grants 'Action: *' on 'Resource: *'",
				})
				break
			}
		}
	}

	return findings
}

func policyGrantsEverything(document interface{}) bool {
	asMap, ok := document.(map[string]interface{})
	if !ok {
		return false
	}

	statements, ok := asMap["Statement"].([]interface{})
	if !ok {
		// a single statement map is also legal
		if single, ok := asMap["Statement"].(map[string]interface{}); ok {
			statements = []interface{}{single}
		} else {
			return false
		}
	}

	for _, raw := range statements {
		statement, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if effect, _ := statement["Effect"].(string); effect == "Deny" {
			continue
		}
		if containsWildcard(statement["Action"]) && containsWildcard(statement["Resource"]) {
			return true
		}
	}
	return false
}

func containsWildcard(value interface{}) bool {
	switch typed := value.(type) {
	case string:
		return typed == "*"
	case []interface{}:
		for _, entry := range typed {
			if asString, ok := entry.(string); ok && asString == "*" {
				return true
			}
		}
	}
	return false
}

// Flags public-read and public-read-write bucket ACLs
func checkPublicS3Acls(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	for _, resource := range template.SortedResources() {
		if resource.Type != "AWS::S3::Bucket" {
			continue
		}

		acl, ok := resource.PropString("AccessControl")
		if !ok {
			continue
		}

		if acl == "PublicRead" || acl == "PublicReadWrite" {
			findings = append(findings, Finding{
				RuleId:    RulePublicS3Acl,
				Severity:  SeverityError,
				LogicalId: resource.LogicalId,
				Message:   fmt.Sprintf("bucket has public ACL '%s'", acl),
			})
		}
	}

	return findings
}

// Flags buckets that explicitly switch off part of the public access block
func checkPublicAccessBlocks(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	flags := []string{"BlockPublicAcls", "BlockPublicPolicy",
		"IgnorePublicAcls", "RestrictPublicBuckets"}

	for _, resource := range template.SortedResources() {
		if resource.Type != "AWS::S3::Bucket" {
			continue
		}

		for _, flag := range flags {
			value, ok := resource.PropBool("PublicAccessBlockConfiguration", flag)
			if ok && !value {
				findings = append(findings, Finding{
					RuleId:    RulePublicAccessBlock,
					Severity:  SeverityError,
					LogicalId: resource.LogicalId,
					Message:   fmt.Sprintf("bucket disables '%s'", flag),
				})
			}
		}
	}

	return findings
}

// Flags storage encryption switched off explicitly. Absent flags are left
// alone since account defaults may encrypt anyway.
func checkEncryptionFlags(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	encryptionProps := map[string]string{
		"AWS::RDS::DBInstance": "StorageEncrypted",
		"AWS::EC2::Volume":     "Encrypted",
	}

	for _, resource := range template.SortedResources() {
		property, ok := encryptionProps[resource.Type]
		if !ok {
			continue
		}

		value, ok := resource.PropBool(property)
		if ok && !value {
			findings = append(findings, Finding{
				RuleId:    RuleUnencrypted,
				Severity:  SeverityError,
				LogicalId: resource.LogicalId,
				Message:   fmt.Sprintf("'%s' is explicitly false", property),
			})
		}
	}

	return findings
}

// Flags taggable resources missing any configured required tag key
func checkRequiredTags(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	if len(conf.RequiredTags) == 0 {
		return findings
	}

	for _, resource := range template.SortedResources() {
		if !taggableTypes[resource.Type] {
			continue
		}

		declared := map[string]bool{}
		for _, key := range resource.TagKeys() {
			declared[key] = true
		}

		missing := make([]string, 0)
		for _, required := range conf.RequiredTags {
			if !declared[required] {
				missing = append(missing, required)
			}
		}

		if len(missing) > 0 {
			findings = append(findings, Finding{
				RuleId:    RuleRequiredTags,
				Severity:  SeverityError,
				LogicalId: resource.LogicalId,
				Message: fmt.Sprintf("missing required tag(s): %s",
					strings.Join(missing, ", ")),
			})
		}
	}

	return findings
}

// Flags templates declaring more resources than the configured maximum
func checkMaxResources(template *cfn.Template, conf config.ValidationConf) []Finding {
	if conf.MaxResources <= 0 || len(template.Resources) <= conf.MaxResources {
		return nil
	}

	return []Finding{{
		RuleId:   RuleMaxResources,
		Severity: SeverityError,
		Message: fmt.Sprintf("template declares %d resources, more than the "+
			"maximum of %d", len(template.Resources), conf.MaxResources),
	}}
}

// Flags EC2 instance types outside the allow list
func checkInstanceTypes(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	if len(conf.AllowedInstanceTypes) == 0 {
		return findings
	}

	allowed := map[string]bool{}
	for _, instanceType := range conf.AllowedInstanceTypes {
		allowed[strings.ToLower(instanceType)] = true
	}

	for _, resource := range template.SortedResources() {
		if resource.Type != "AWS::EC2::Instance" {
			continue
		}

		instanceType, ok := resource.PropString("InstanceType")
		if !ok {
			continue
		}

		if !allowed[strings.ToLower(instanceType)] {
			findings = append(findings, Finding{
				RuleId:    RuleInstanceType,
				Severity:  SeverityError,
				LogicalId: resource.LogicalId,
				Message: fmt.Sprintf("instance type '%s' isn't in the allowed "+
					"list", instanceType),
			})
		}
	}

	return findings
}

// Flags resource types on the forbidden list
func checkForbiddenTypes(template *cfn.Template, conf config.ValidationConf) []Finding {
	findings := make([]Finding, 0)

	forbidden := map[string]bool{}
	for _, resourceType := range conf.ForbiddenResourceTypes {
		forbidden[resourceType] = true
	}

	for _, resource := range template.SortedResources() {
		if forbidden[resource.Type] {
			findings = append(findings, Finding{
				RuleId:    RuleForbiddenType,
				Severity:  SeverityError,
				LogicalId: resource.LogicalId,
				Message: fmt.Sprintf("resource type '%s' isn't allowed in lab "+
					"templates", resource.Type),
			})
		}
	}

	return findings
}
