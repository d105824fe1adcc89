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
	"fmt"
	"sync"
	"testing"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/stretchr/testify/assert"
)

func init() {
	log.ConfigureLogger("debug", false)
}

func TestSetGetString(t *testing.T) {
	reg := New()

	reg.SetString("outputs:network:VpcId", "vpc-123")

	val, ok := reg.GetString("outputs:network:VpcId")
	assert.True(t, ok)
	assert.Equal(t, "vpc-123", val)

	_, ok = reg.GetString("missing")
	assert.False(t, ok)
}

func TestAsMap(t *testing.T) {
	reg := New()
	reg.SetString("region", "eu-west-1")

	asMap := reg.AsMap()
	assert.Equal(t, map[string]interface{}{"region": "eu-west-1"}, asMap)
}

func TestConcurrentWriters(t *testing.T) {
	reg := New()

	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.SetString(fmt.Sprintf("key-%d", i), "value")
		}(i)
	}
	wg.Wait()

	assert.Len(t, reg.AsMap(), 20)
}
