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

// Package cfn parses CloudFormation templates (YAML or JSON) into a
// uniform in-memory shape the validator and cost estimator can traverse.
package cfn

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/certlab/labman/internal/pkg/convert"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v2"
)

// A single resource declaration in a template
type Resource struct {
	LogicalId  string
	Type       string
	Properties map[string]interface{}
}

// A parsed CloudFormation template
type Template struct {
	Resources map[string]Resource
}

// Resources sorted by logical ID so rule output is deterministic
func (t *Template) SortedResources() []Resource {
	ids := make([]string, 0)
	for id := range t.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resources := make([]Resource, 0)
	for _, id := range ids {
		resources = append(resources, t.Resources[id])
	}
	return resources
}

// Walks nested property maps and returns the value at the given key path
func (r Resource) Prop(keys ...string) (interface{}, bool) {
	var current interface{} = r.Properties
	for _, key := range keys {
		asMap, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = asMap[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (r Resource) PropString(keys ...string) (string, bool) {
	value, ok := r.Prop(keys...)
	if !ok {
		return "", false
	}
	asString, ok := value.(string)
	return asString, ok
}

func (r Resource) PropBool(keys ...string) (bool, bool) {
	value, ok := r.Prop(keys...)
	if !ok {
		return false, false
	}

	switch typed := value.(type) {
	case bool:
		return typed, true
	case string:
		// both formats allow quoted booleans
		return strings.EqualFold(typed, "true"), true
	}
	return false, false
}

func (r Resource) PropFloat(keys ...string) (float64, bool) {
	value, ok := r.Prop(keys...)
	if !ok {
		return 0, false
	}

	switch typed := value.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	}
	return 0, false
}

func (r Resource) PropList(keys ...string) ([]interface{}, bool) {
	value, ok := r.Prop(keys...)
	if !ok {
		return nil, false
	}
	asList, ok := value.([]interface{})
	return asList, ok
}

// Tag keys declared on the resource's `Tags` property
func (r Resource) TagKeys() []string {
	keys := make([]string, 0)

	tags, ok := r.PropList("Tags")
	if !ok {
		return keys
	}

	for _, tag := range tags {
		asMap, ok := tag.(map[string]interface{})
		if !ok {
			continue
		}
		if key, ok := asMap["Key"].(string); ok {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys
}

// Parses a template in either YAML or JSON format
func ParseTemplate(data []byte) (*Template, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("Template is empty")
	}

	if strings.HasPrefix(trimmed, "{") {
		return parseJson(data)
	}
	return parseYaml(data)
}

func ParseTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading template '%s'", path)
	}

	template, err := ParseTemplate(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Error parsing template '%s'", path)
	}
	return template, nil
}

func parseJson(data []byte) (*Template, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("Template isn't valid JSON")
	}

	template := &Template{Resources: map[string]Resource{}}

	resources := gjson.GetBytes(data, "Resources")
	if !resources.Exists() {
		return nil, errors.New("Template has no 'Resources' section")
	}

	var parseErr error
	resources.ForEach(func(key gjson.Result, value gjson.Result) bool {
		resourceType := value.Get("Type").String()
		if resourceType == "" {
			parseErr = errors.New(fmt.Sprintf("Resource '%s' has no 'Type'",
				key.String()))
			return false
		}

		properties := map[string]interface{}{}
		if props, ok := value.Get("Properties").Value().(map[string]interface{}); ok {
			properties = props
		}

		template.Resources[key.String()] = Resource{
			LogicalId:  key.String(),
			Type:       resourceType,
			Properties: properties,
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return template, nil
}

func parseYaml(data []byte) (*Template, error) {
	raw := struct {
		Resources map[string]struct {
			Type       string                      `yaml:"Type"`
			Properties map[interface{}]interface{} `yaml:"Properties"`
		} `yaml:"Resources"`
	}{}

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, errors.Wrap(err, "Template isn't valid YAML")
	}

	if len(raw.Resources) == 0 {
		return nil, errors.New("Template has no 'Resources' section")
	}

	template := &Template{Resources: map[string]Resource{}}

	for logicalId, resource := range raw.Resources {
		if resource.Type == "" {
			return nil, errors.New(fmt.Sprintf("Resource '%s' has no 'Type'",
				logicalId))
		}

		properties, ok := convert.DeepStringKeys(resource.Properties).(map[string]interface{})
		if !ok {
			properties = map[string]interface{}{}
		}

		template.Resources[logicalId] = Resource{
			LogicalId:  logicalId,
			Type:       resource.Type,
			Properties: properties,
		}
	}

	return template, nil
}
