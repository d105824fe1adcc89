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
	"time"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/structs"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const (
	unprocessed = iota
	running
	finished
)

// Wrapper around a directed graph of a lab's templates so we can define our
// own methods on it
type Dag struct {
	graph         *simple.DirectedGraph
	sleepInterval time.Duration
}

// Describes a node that should be created in the graph along with its parent
// dependencies. Just a descriptor, not an actual graph node.
type nodeDescriptor struct {
	dependsOn []string
	template  structs.Template
}

// A node in the graph that also has a string name
type NamedNode struct {
	name          string // must be unique across all nodes in the graph
	node          graph.Node
	template      structs.Template
	shouldProcess bool // whether this node was specifically selected for processing
}

func (n NamedNode) Name() string {
	return n.name
}

func (n NamedNode) ID() int64 {
	return n.node.ID()
}

func (n NamedNode) Template() structs.Template {
	return n.template
}

// Used to track whether a node has been processed
type nodeStatus struct {
	node   NamedNode
	status int
}

// Creates a DAG for the given templates. If a list of selected template IDs
// is given, a subgraph will be returned containing only those templates and
// their ancestors.
func Create(templates []structs.Template, selectedTemplateIds []string) (*Dag, error) {
	descriptors := make(map[string]nodeDescriptor, 0)
	for _, template := range templates {
		descriptors[template.Id] = nodeDescriptor{
			dependsOn: template.DependsOn,
			template:  template,
		}
	}

	dagObj, err := build(descriptors)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if len(selectedTemplateIds) > 0 {
		dagObj, err = dagObj.subGraph(selectedTemplateIds)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return dagObj, nil
}

// Builds a graph from a map of descriptors that contain a string node ID
// plus a list of IDs of nodes that node depends on (i.e. parents).
// An error will be returned if the resulting graph is cyclical.
func build(descriptors map[string]nodeDescriptor) (*Dag, error) {
	graphObj := simple.NewDirectedGraph()
	nodesByName := make(map[string]NamedNode, 0)

	for descriptorId, descriptor := range descriptors {
		descriptorNode := addNode(graphObj, nodesByName, descriptorId,
			descriptor.template, true)

		for _, dependencyId := range descriptor.dependsOn {
			dependency, ok := descriptors[dependencyId]
			if !ok {
				return nil, fmt.Errorf("template '%s' depends on a "+
					"template that doesn't exist: %s", descriptorId, dependencyId)
			}

			parentNode := addNode(graphObj, nodesByName, dependencyId,
				dependency.template, true)

			log.Logger.Debugf("Creating edge from '%s' to '%s'", dependencyId,
				descriptorId)

			// return an error instead of creating a loop
			if parentNode.node == descriptorNode.node {
				return nil, fmt.Errorf("Node %s is not allowed to depend on itself",
					descriptorNode.name)
			}

			edge := graphObj.NewEdge(parentNode, descriptorNode)
			graphObj.SetEdge(edge)
		}
	}

	if !isAcyclic(graphObj) {
		return nil, fmt.Errorf("Cyclical dependencies detected")
	}

	dagObj := Dag{
		graph:         graphObj,
		sleepInterval: 200 * time.Millisecond,
	}

	return &dagObj, nil
}

// Adds a node to the graph if the entry isn't already in it
func addNode(graphObj *simple.DirectedGraph, nodes map[string]NamedNode,
	nodeName string, template structs.Template, shouldProcess bool) NamedNode {
	existing, ok := nodes[nodeName]

	if ok {
		// if the existing node was added but wasn't marked for processing, and
		// now we would create it as a processable node, toggle the flag
		if !existing.shouldProcess && shouldProcess {
			existing.shouldProcess = shouldProcess
			nodes[nodeName] = existing
		}

		log.Logger.Debugf("Node '%s' already exists... won't recreate", nodeName)
		return existing
	}

	log.Logger.Debugf("Creating node '%s'", nodeName)

	namedNode := NamedNode{
		name:          nodeName,
		node:          graphObj.NewNode(),
		template:      template,
		shouldProcess: shouldProcess,
	}
	graphObj.AddNode(namedNode)
	nodes[nodeName] = namedNode
	return namedNode
}

// Returns a boolean indicating whether the given directed graph is acyclic
func isAcyclic(graphObj *simple.DirectedGraph) bool {
	// Topological sort can only be computed on acyclic graphs, so if it
	// doesn't return an error we have an acyclic graph.
	_, err := topo.Sort(graphObj)
	return err == nil
}

// Returns a new DAG comprising the nodes in the given input list and all
// their ancestors. The returned graph is guaranteed to be a DAG. All nodes
// in the input list will be marked for processing in the returned subgraph,
// their ancestors won't be (they're only needed to satisfy dependencies).
func (g *Dag) subGraph(nodeNames []string) (*Dag, error) {
	outputGraph := simple.NewDirectedGraph()

	inputGraphNodesByName := g.nodesByName()
	ogNodesByName := make(map[string]NamedNode, 0)

	for _, nodeName := range nodeNames {
		inputGraphNode, ok := inputGraphNodesByName[nodeName]
		if !ok {
			return nil, fmt.Errorf("Graph doesn't contain a node called '%s'", nodeName)
		}

		ogNode := addNode(outputGraph, ogNodesByName, inputGraphNode.Name(),
			inputGraphNode.template, true)
		addAncestors(g.graph, outputGraph, ogNodesByName, inputGraphNode, ogNode)
	}

	dagObj := Dag{
		graph:         outputGraph,
		sleepInterval: g.sleepInterval,
	}

	return &dagObj, nil
}

func addAncestors(inputGraph *simple.DirectedGraph, outputGraph *simple.DirectedGraph,
	ogNodes map[string]NamedNode, igNode NamedNode, ogNode NamedNode) {
	igParents := inputGraph.To(igNode.ID())

	for igParents.Next() {
		igParentNode := igParents.Node().(NamedNode)

		// we don't want to process ancestors, only to wait for them
		ogParentNode := addNode(outputGraph, ogNodes, igParentNode.name,
			igParentNode.template, false)

		edge := outputGraph.NewEdge(ogParentNode, ogNode)
		outputGraph.SetEdge(edge)

		// now recurse to the parent of the parent node
		addAncestors(inputGraph, outputGraph, ogNodes, igParentNode, ogParentNode)
	}
}

// Returns a map of nodeStatuses for each node in the graph keyed by node ID
func (g *Dag) nodeStatusesById() map[int64]nodeStatus {
	nodeMap := make(map[int64]nodeStatus, 0)

	nodes := g.graph.Nodes()

	for nodes.Next() {
		node := nodes.Node()
		nodeMap[node.ID()] = nodeStatus{
			node:   node.(NamedNode),
			status: unprocessed,
		}
	}

	return nodeMap
}

// Returns a map of nodes keyed by node name
func (g *Dag) nodesByName() map[string]NamedNode {
	nodeMap := make(map[string]NamedNode, 0)

	nodes := g.graph.Nodes()

	for nodes.Next() {
		node := nodes.Node().(NamedNode)
		nodeMap[node.name] = node
	}

	return nodeMap
}

// Returns the names of all nodes in topological order
func (g *Dag) SortedNodeNames() ([]string, error) {
	sorted, err := topo.Sort(g.graph)
	if err != nil {
		return nil, errors.Wrapf(err, "Error topologically sorting the graph")
	}

	names := make([]string, 0)
	for _, node := range sorted {
		names = append(names, node.(NamedNode).name)
	}

	return names, nil
}

func (g *Dag) walkDown(processCh chan<- NamedNode, doneCh chan NamedNode) chan bool {
	return g.walk(true, processCh, doneCh)
}

func (g *Dag) walkUp(processCh chan<- NamedNode, doneCh chan NamedNode) chan bool {
	return g.walk(false, processCh, doneCh)
}

// Walks the DAG. If down==true it walks from the root to the leaves, only
// processing a node once all its parents have been processed. If down==false
// it walks up from the leaves to the root, only processing a node once all
// its children have been processed.
func (g *Dag) walk(down bool, processCh chan<- NamedNode, doneCh chan NamedNode) chan bool {

	if down {
		log.Logger.Info("Starting walking down the DAG...")
	} else {
		log.Logger.Info("Starting walking up the DAG...")
	}

	mutex := &sync.Mutex{}
	nodeStatusesById := g.nodeStatusesById()

	numNodes := g.graph.Nodes().Len()
	log.Logger.Debugf("Graph has %d nodes", numNodes)

	// spawn a goroutine to listen to the doneCh to update the statuses of
	// completed nodes
	go func() {
		for namedNode := range doneCh {
			log.Logger.Debugf("Worker informs the DAG it's finished processing "+
				"node '%s'", namedNode.name)
			mutex.Lock()
			nodeItem := nodeStatusesById[namedNode.node.ID()]
			nodeItem.status = finished
			nodeStatusesById[namedNode.node.ID()] = nodeItem
			mutex.Unlock()
		}
	}()

	finishedCh := make(chan bool)

	go func() {
		// loop until there are no nodes left which haven't been processed
		for {
			mutex.Lock()
			ready := make([]NamedNode, 0)
			for nodeId, status := range nodeStatusesById {
				// only consider unprocessed nodes
				if status.status != unprocessed {
					continue
				}

				var dependencies graph.Nodes
				if down {
					dependencies = g.graph.To(status.node.ID())
				} else {
					dependencies = g.graph.From(status.node.ID())
				}

				// we have a node that needs to be processed. Check to see if
				// its dependencies have been satisfied.
				if dependenciesSatisfied(dependencies, nodeStatusesById) {
					log.Logger.Debugf("All dependencies satisfied for '%s', "+
						"adding it to the processing queue", status.node.name)
					// update the status so we don't keep requeuing running nodes
					status.status = running
					nodeStatusesById[nodeId] = status
					ready = append(ready, status.node)
				}
			}

			done := allDone(nodeStatusesById)
			mutex.Unlock()

			// send outside the lock so a full queue can't block the
			// goroutine marking nodes finished
			for _, node := range ready {
				processCh <- node
			}

			if done {
				log.Logger.Infof("DAG fully processed")
				close(finishedCh)
				close(doneCh)
				close(processCh)
				break
			} else {
				// sleep a little bit to give jobs a chance to complete
				log.Logger.Tracef("DAG still processing. Sleeping for %s...",
					g.sleepInterval)
				time.Sleep(g.sleepInterval)
			}
		}
	}()

	return finishedCh
}

// Returns a boolean indicating whether all nodes have been processed
func allDone(nodeStatuses map[int64]nodeStatus) bool {
	for _, status := range nodeStatuses {
		if status.status != finished {
			return false
		}
	}

	return true
}

// Returns a boolean indicating whether all dependencies of a node have been
// satisfied
func dependenciesSatisfied(dependencies graph.Nodes, nodeStatuses map[int64]nodeStatus) bool {
	for dependencies.Next() {
		dependency := dependencies.Node().(NamedNode)

		status := nodeStatuses[dependency.ID()]
		if status.status != finished {
			log.Logger.Tracef("Dependent node '%s' hasn't finished", dependency.name)
			return false
		}
	}

	return true
}
