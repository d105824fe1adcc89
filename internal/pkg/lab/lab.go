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

package lab

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/certlab/labman/internal/pkg/structs"
	"github.com/pkg/errors"
)

// Categories labs can be filed under, matching the exam domains the labs
// teach
var Categories = []string{
	"cicd", "iac", "monitoring", "security", "deployment", "integration",
	"docker", "kubernetes",
}

// A lab built from a validated descriptor
type Lab struct {
	descriptor structs.Lab
	ttl        time.Duration
	// directory the descriptor file was loaded from. Template paths are
	// resolved relative to it.
	dir string
}

// Builds a Lab from a raw descriptor, validating it
func New(descriptor structs.Lab, dir string) (*Lab, error) {
	labObj := &Lab{
		descriptor: descriptor,
		dir:        dir,
	}

	err := labObj.validate()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if descriptor.Ttl != "" {
		ttl, err := time.ParseDuration(descriptor.Ttl)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid ttl '%s' for lab '%s'",
				descriptor.Ttl, descriptor.Id)
		}
		if ttl <= 0 {
			return nil, errors.New(fmt.Sprintf("Ttl for lab '%s' must be positive",
				descriptor.Id))
		}
		labObj.ttl = ttl
	}

	return labObj, nil
}

func (l *Lab) Id() string {
	return l.descriptor.Id
}

func (l *Lab) Name() string {
	return l.descriptor.Name
}

func (l *Lab) Description() string {
	return l.descriptor.Description
}

func (l *Lab) Category() string {
	return l.descriptor.Category
}

func (l *Lab) Region() string {
	return l.descriptor.Region
}

// The lab's default TTL, or zero if the descriptor didn't declare one
func (l *Lab) Ttl() time.Duration {
	return l.ttl
}

// The directory the descriptor was loaded from
func (l *Lab) Dir() string {
	return l.dir
}

func (l *Lab) Templates() []structs.Template {
	return l.descriptor.Templates
}

func (l *Lab) Hooks() structs.Hooks {
	return l.descriptor.Hooks
}

func (l *Lab) CostHints() map[string]int {
	return l.descriptor.CostHints
}

func (l *Lab) Vars() map[string]string {
	return l.descriptor.Vars
}

// Returns the absolute path to the body of the given template
func (l *Lab) TemplatePath(template structs.Template) string {
	if filepath.IsAbs(template.Path) {
		return template.Path
	}
	return filepath.Join(l.dir, template.Path)
}

// Returns the template with the given ID
func (l *Lab) Template(id string) (structs.Template, bool) {
	for _, template := range l.descriptor.Templates {
		if template.Id == id {
			return template, true
		}
	}
	return structs.Template{}, false
}

func (l *Lab) validate() error {
	if l.descriptor.Id == "" {
		return errors.New("Lab descriptors must declare an ID")
	}

	if len(l.descriptor.Templates) == 0 {
		return errors.New(fmt.Sprintf("Lab '%s' doesn't declare any templates",
			l.descriptor.Id))
	}

	if l.descriptor.Category != "" && !validCategory(l.descriptor.Category) {
		return errors.New(fmt.Sprintf("Unknown category '%s' for lab '%s'. "+
			"Valid categories are: %v", l.descriptor.Category, l.descriptor.Id,
			Categories))
	}

	templateIds := map[string]bool{}
	for _, template := range l.descriptor.Templates {
		if template.Id == "" {
			return errors.New(fmt.Sprintf("Lab '%s' contains a template "+
				"without an ID", l.descriptor.Id))
		}

		if templateIds[template.Id] {
			return errors.New(fmt.Sprintf("Duplicate template ID '%s' in "+
				"lab '%s'", template.Id, l.descriptor.Id))
		}
		templateIds[template.Id] = true

		if template.Path == "" {
			return errors.New(fmt.Sprintf("Template '%s' in lab '%s' doesn't "+
				"declare a path", template.Id, l.descriptor.Id))
		}

		// catch typo'd paths at load time, not mid-provision
		templatePath := l.TemplatePath(template)
		if _, err := os.Stat(templatePath); err != nil {
			return errors.Wrapf(err, "Template '%s' in lab '%s' points at a "+
				"body that doesn't exist: %s", template.Id, l.descriptor.Id,
				templatePath)
		}
	}

	// dependencies can only be validated once all IDs are known
	for _, template := range l.descriptor.Templates {
		for _, dependency := range template.DependsOn {
			if dependency == template.Id {
				return errors.New(fmt.Sprintf("Template '%s' in lab '%s' "+
					"depends on itself", template.Id, l.descriptor.Id))
			}

			if !templateIds[dependency] {
				return errors.New(fmt.Sprintf("Template '%s' in lab '%s' "+
					"depends on a template that doesn't exist: %s",
					template.Id, l.descriptor.Id, dependency))
			}
		}
	}

	return nil
}

func validCategory(category string) bool {
	for _, candidate := range Categories {
		if candidate == category {
			return true
		}
	}
	return false
}
