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

package vars

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Loads a YAML file into a map
func LoadYamlFile(path string) (map[string]interface{}, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if _, err := os.Stat(absPath); err != nil {
		log.Logger.Debugf("YAML file doesn't exist: %s", absPath)
		return nil, errors.WithStack(err)
	}

	yamlData, err := ioutil.ReadFile(absPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading YAML file %s", absPath)
	}

	data := map[string]interface{}{}

	err = yaml.Unmarshal(yamlData, &data)
	if err != nil {
		return nil, errors.Wrapf(err, "Error loading YAML file %s", absPath)
	}

	return data, nil
}

// MergeFile loads the YAML file at path and merges it into result. Values
// already in result are overridden by values from the file.
func MergeFile(result *map[string]interface{}, path string) error {
	loaded, err := LoadYamlFile(path)
	if err != nil {
		return errors.WithStack(err)
	}

	log.Logger.Tracef("Merging %v with %v", *result, loaded)

	err = mergo.Merge(result, loaded, mergo.WithOverride)
	if err != nil {
		return errors.Wrapf(err, "Error merging vars from %s", path)
	}

	return nil
}

// MergePaths merges each YAML file in turn into result. Later files take
// precedence over earlier ones.
func MergePaths(result *map[string]interface{}, paths ...string) error {
	for _, path := range paths {
		err := MergeFile(result, path)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}
