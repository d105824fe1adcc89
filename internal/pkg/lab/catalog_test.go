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
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "../../testdata"

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog(path.Join(testDir, "catalog"))
	require.Nil(t, err)

	labObj, err := catalog.Get("cicd-101")
	assert.Nil(t, err)
	assert.Equal(t, "cicd", labObj.Category())
	assert.Len(t, labObj.Templates(), 3)

	// template paths resolve relative to the descriptor's directory
	template, ok := labObj.Template("network")
	require.True(t, ok)
	templatePath := labObj.TemplatePath(template)
	_, err = os.Stat(templatePath)
	assert.Nil(t, err, "template body should exist at %s", templatePath)

	_, err = catalog.Get("nonexistent")
	assert.NotNil(t, err)
}

func TestLoadCatalogMissingDir(t *testing.T) {
	_, err := LoadCatalog("/nonexistent/catalog")
	assert.NotNil(t, err)
}

// The fixture keeps its CloudFormation bodies in a subdirectory of the
// catalog, like real catalogs do. Those are stack templates, not lab
// descriptors, and loading must not try to parse them as descriptors.
func TestLoadCatalogIgnoresTemplateSubdirs(t *testing.T) {
	catalog, err := LoadCatalog(path.Join(testDir, "catalog"))
	require.Nil(t, err, "template bodies under the catalog dir must not be "+
		"parsed as lab descriptors")

	// only the two top-level descriptors, no phantom labs from template files
	assert.Len(t, catalog.List(""), 2)
}

func TestList(t *testing.T) {
	catalog, err := LoadCatalog(path.Join(testDir, "catalog"))
	require.Nil(t, err)

	all := catalog.List("")
	assert.True(t, len(all) >= 2)

	monitoring := catalog.List("monitoring")
	require.Len(t, monitoring, 1)
	assert.Equal(t, "monitoring-201", monitoring[0].Id())
}
