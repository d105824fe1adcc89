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

// Structs in this package directly mirror YAML on disk. They shouldn't
// contain behaviour, just data. Objects with behaviour are built from them
// elsewhere (e.g. in the 'lab' package).
package structs

// A single CloudFormation template within a lab, possibly depending on
// other templates in the same lab
type Template struct {
	Id           string            `yaml:"id"`
	Path         string            `yaml:"path"`
	DependsOn    []string          `yaml:"depends_on"`
	Parameters   map[string]string `yaml:"parameters"`
	Capabilities []string          `yaml:"capabilities"`
}

// Shell commands run around provisioning/teardown of a lab
type Hooks struct {
	Pre  []string `yaml:"pre"`
	Post []string `yaml:"post"`
}

// A lab descriptor as declared in a catalog YAML file
type Lab struct {
	Id          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Ttl         string            `yaml:"ttl"`
	Region      string            `yaml:"region"`
	Templates   []Template        `yaml:"templates"`
	Hooks       Hooks             `yaml:"hooks"`
	CostHints   map[string]int    `yaml:"cost_hints"`
	Vars        map[string]string `yaml:"vars"`
}
