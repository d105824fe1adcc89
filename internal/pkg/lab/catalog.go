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
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/structs"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// A catalog of labs loaded from a directory of descriptor files
type Catalog struct {
	labs map[string]*Lab
}

// Loads all lab descriptors in the given directory. Each top-level YAML
// file declares a single lab; subdirectories hold the CloudFormation
// templates the descriptors point at and aren't parsed as descriptors.
// Descriptor problems fail loading the whole catalog so broken labs can't
// be half-started later.
func LoadCatalog(dir string) (*Catalog, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if _, err := os.Stat(absDir); err != nil {
		return nil, errors.Wrapf(err, "Lab catalog directory '%s' doesn't exist", absDir)
	}

	catalog := &Catalog{
		labs: map[string]*Lab{},
	}

	entries, err := ioutil.ReadDir(absDir)
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading lab catalog directory '%s'", absDir)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(absDir, entry.Name())

		labObj, err := loadDescriptor(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		existing, ok := catalog.labs[labObj.Id()]
		if ok {
			return nil, errors.New(fmt.Sprintf("Duplicate lab ID '%s' declared in "+
				"'%s' and '%s'", labObj.Id(), existing.dir, path))
		}

		log.Logger.Debugf("Loaded lab '%s' from %s", labObj.Id(), path)
		catalog.labs[labObj.Id()] = labObj
	}

	log.Logger.Infof("Loaded %d lab(s) from catalog %s", len(catalog.labs), absDir)

	return catalog, nil
}

func loadDescriptor(path string) (*Lab, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading lab descriptor %s", path)
	}

	descriptor := structs.Lab{}
	err = yaml.UnmarshalStrict(data, &descriptor)
	if err != nil {
		return nil, errors.Wrapf(err, "Error parsing lab descriptor %s", path)
	}

	labObj, err := New(descriptor, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid lab descriptor %s", path)
	}

	return labObj, nil
}

// Returns the lab with the given ID
func (c *Catalog) Get(id string) (*Lab, error) {
	labObj, ok := c.labs[id]
	if !ok {
		return nil, errors.New(fmt.Sprintf("No lab '%s' in the catalog", id))
	}

	return labObj, nil
}

// Returns all labs, optionally filtered by category, sorted by ID
func (c *Catalog) List(category string) []*Lab {
	labs := make([]*Lab, 0)

	for _, labObj := range c.labs {
		if category != "" && labObj.Category() != category {
			continue
		}
		labs = append(labs, labObj)
	}

	sort.Slice(labs, func(i, j int) bool {
		return labs[i].Id() < labs[j].Id()
	})

	return labs
}
