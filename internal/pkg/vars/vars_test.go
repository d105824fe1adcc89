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
	"testing"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.ConfigureLogger("debug", false)
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(path), 0755)
	require.Nil(t, err)
	err = ioutil.WriteFile(path, []byte(content), 0644)
	require.Nil(t, err)
	return path
}

func TestMergePaths(t *testing.T) {
	dir, err := ioutil.TempDir("", "vars")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	base := writeFile(t, dir, "base.yaml", "region: eu-west-1\nowner: alice\n")
	override := writeFile(t, dir, "override.yaml", "owner: bob\nttl: 2h\n")

	result := map[string]interface{}{}
	err = MergePaths(&result, base, override)
	assert.Nil(t, err)

	assert.Equal(t, "eu-west-1", result["region"])
	assert.Equal(t, "bob", result["owner"])
	assert.Equal(t, "2h", result["ttl"])
}

func TestMergeFileMissing(t *testing.T) {
	result := map[string]interface{}{}
	err := MergeFile(&result, "/nonexistent/values.yaml")
	assert.NotNil(t, err)
}
