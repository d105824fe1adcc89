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

	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/pkg/errors"
)

// Processor is invoked for each node marked for processing once all its
// dependencies have been processed. Implementations must be safe to call
// from multiple goroutines.
type Processor func(node NamedNode) error

// Traverses the DAG executing the named action on marked/processable nodes.
// Provisioning walks down the graph (dependencies first), destruction walks
// up it (dependents first). The first error aborts the traversal.
func (g *Dag) Execute(action string, numWorkers int, processor Processor) error {
	if numWorkers < 1 {
		numWorkers = 1
	}

	processCh := make(chan NamedNode, numWorkers)
	doneCh := make(chan NamedNode)
	errCh := make(chan error, numWorkers)

	log.Logger.Infof("Executing DAG with action=%s using %d worker(s)",
		action, numWorkers)

	// create the worker pool
	for w := 0; w < numWorkers; w++ {
		go worker(processCh, doneCh, errCh, processor)
	}

	var finishedCh chan bool

	switch action {
	case constants.DagActionProvision, constants.DagActionTemplate:
		finishedCh = g.walkDown(processCh, doneCh)
	case constants.DagActionDestroy:
		finishedCh = g.walkUp(processCh, doneCh)
	default:
		return fmt.Errorf("Invalid action on DAG: %s", action)
	}

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "Error processing lab template")
	case <-finishedCh:
		log.Logger.Infof("Finished processing the DAG")
		return nil
	}
}

// Processes nodes until the walker closes the queue. Nodes not marked for
// processing (ancestors pulled into a subgraph) are passed straight through
// so their dependents can run.
func worker(processCh <-chan NamedNode, doneCh chan<- NamedNode,
	errCh chan<- error, processor Processor) {

	for node := range processCh {
		if node.shouldProcess {
			log.Logger.Infof("Processing template '%s'", node.name)

			err := processor(node)
			if err != nil {
				errCh <- errors.Wrapf(err, "Error processing template '%s'",
					node.name)
				return
			}
		}

		doneCh <- node
	}
}
