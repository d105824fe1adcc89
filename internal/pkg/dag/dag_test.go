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

package dag

import (
	"fmt"
	"sync"
	"testing"

	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/structs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.ConfigureLogger("none", false)
}

func testTemplates() []structs.Template {
	return []structs.Template{
		{Id: "network"},
		{Id: "artifacts", DependsOn: []string{"network"}},
		{Id: "database", DependsOn: []string{"network"}},
		{Id: "pipeline", DependsOn: []string{"artifacts", "database"}},
	}
}

func TestCreate(t *testing.T) {
	dagObj, err := Create(testTemplates(), nil)
	assert.Nil(t, err)
	assert.NotNil(t, dagObj)
}

func TestCreateMissingDependency(t *testing.T) {
	templates := []structs.Template{
		{Id: "app", DependsOn: []string{"missing"}},
	}

	_, err := Create(templates, nil)
	assert.NotNil(t, err)
}

func TestCreateCycle(t *testing.T) {
	templates := []structs.Template{
		{Id: "a", DependsOn: []string{"b"}},
		{Id: "b", DependsOn: []string{"a"}},
	}

	_, err := Create(templates, nil)
	assert.NotNil(t, err)
}

func TestCreateSelfDependency(t *testing.T) {
	templates := []structs.Template{
		{Id: "a", DependsOn: []string{"a"}},
	}

	_, err := Create(templates, nil)
	assert.NotNil(t, err)
}

func TestSubGraph(t *testing.T) {
	dagObj, err := Create(testTemplates(), []string{"artifacts"})
	require.Nil(t, err)

	names, err := dagObj.SortedNodeNames()
	require.Nil(t, err)

	// the subgraph contains the selected node and its ancestors only
	assert.ElementsMatch(t, []string{"network", "artifacts"}, names)
}

func TestSubGraphUnknownNode(t *testing.T) {
	_, err := Create(testTemplates(), []string{"nonexistent"})
	assert.NotNil(t, err)
}

func TestSortedNodeNames(t *testing.T) {
	dagObj, err := Create(testTemplates(), nil)
	require.Nil(t, err)

	names, err := dagObj.SortedNodeNames()
	require.Nil(t, err)
	require.Len(t, names, 4)

	position := map[string]int{}
	for i, name := range names {
		position[name] = i
	}

	assert.True(t, position["network"] < position["artifacts"])
	assert.True(t, position["network"] < position["database"])
	assert.True(t, position["artifacts"] < position["pipeline"])
	assert.True(t, position["database"] < position["pipeline"])
}

// Records the order nodes were processed in, for asserting on ordering
// invariants after concurrent execution
type orderRecorder struct {
	mutex sync.Mutex
	order []string
}

func (r *orderRecorder) record(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.order = append(r.order, name)
}

func (r *orderRecorder) positions() map[string]int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	positions := map[string]int{}
	for i, name := range r.order {
		positions[name] = i
	}
	return positions
}

func TestExecuteProvisionOrdering(t *testing.T) {
	dagObj, err := Create(testTemplates(), nil)
	require.Nil(t, err)

	recorder := &orderRecorder{}
	err = dagObj.Execute(constants.DagActionProvision, 3, func(node NamedNode) error {
		recorder.record(node.Name())
		return nil
	})
	require.Nil(t, err)

	positions := recorder.positions()
	require.Len(t, positions, 4)
	assert.True(t, positions["network"] < positions["artifacts"])
	assert.True(t, positions["network"] < positions["database"])
	assert.True(t, positions["artifacts"] < positions["pipeline"])
	assert.True(t, positions["database"] < positions["pipeline"])
}

func TestExecuteDestroyOrdering(t *testing.T) {
	dagObj, err := Create(testTemplates(), nil)
	require.Nil(t, err)

	recorder := &orderRecorder{}
	err = dagObj.Execute(constants.DagActionDestroy, 3, func(node NamedNode) error {
		recorder.record(node.Name())
		return nil
	})
	require.Nil(t, err)

	positions := recorder.positions()
	require.Len(t, positions, 4)

	// teardown runs in reverse dependency order
	assert.True(t, positions["pipeline"] < positions["artifacts"])
	assert.True(t, positions["pipeline"] < positions["database"])
	assert.True(t, positions["artifacts"] < positions["network"])
	assert.True(t, positions["database"] < positions["network"])
}

func TestExecuteError(t *testing.T) {
	dagObj, err := Create(testTemplates(), nil)
	require.Nil(t, err)

	err = dagObj.Execute(constants.DagActionProvision, 2, func(node NamedNode) error {
		if node.Name() == "network" {
			return errors.New("stack rolled back")
		}
		return nil
	})
	require.NotNil(t, err)
	assert.Contains(t, fmt.Sprintf("%v", err), "stack rolled back")
}

func TestExecuteInvalidAction(t *testing.T) {
	dagObj, err := Create(testTemplates(), nil)
	require.Nil(t, err)

	err = dagObj.Execute("explode", 1, func(node NamedNode) error {
		return nil
	})
	assert.NotNil(t, err)
}
