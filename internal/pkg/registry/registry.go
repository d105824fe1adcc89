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

package registry

import (
	"strings"
	"sync"

	"github.com/certlab/labman/internal/pkg/convert"
	"github.com/certlab/labman/internal/pkg/log"
)

// A registry holding values produced while provisioning a session (e.g.
// stack outputs) so templates provisioned later in the DAG can reference
// them. Multiple DAG workers write to it concurrently.
type Registry struct {
	mu              sync.RWMutex
	mapStringString map[string]string
}

func New() *Registry {
	return &Registry{
		mapStringString: map[string]string{},
	}
}

// Add a string to the registry.
// *Note* Keys mustn't contain dot characters because they wouldn't be
// merged with template vars correctly (e.g. as a map). Use colons to
// namespace keys, e.g. 'outputs:network:VpcId'.
func (r *Registry) SetString(key string, value string) {
	if strings.Contains(key, ".") {
		log.Logger.Fatalf("Keys with dots ('.') are not currently merged "+
			"as a map. Use colons to namespace registry keys (got '%s')", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.mapStringString[key] = value
}

// Get a string from the registry
func (r *Registry) GetString(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	val, ok := r.mapStringString[key]
	if !ok {
		return "", false
	}

	return val, true
}

func (r *Registry) AsMap() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return convert.MapStringStringToMapStringInterface(r.mapStringString)
}
