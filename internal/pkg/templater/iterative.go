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

package templater

import (
	"bytes"

	"github.com/certlab/labman/internal/pkg/convert"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// maximum number of iterations while templating variables
const maxIterations = 20

// Iterate over the input variables trying to replace data as if it was a template. Keep iterating
// up to a maximum number of times, or until the output stops changing. Doing this allows defining
// intermediate variables or aliases (e.g. set `stack_prefix` = '{{ .vars.environment }}-{{ .session.short_id }}'
// then just use '{{ .vars.stack_prefix }}' elsewhere. Templating this requires 2 iterations).
func IterativelyTemplate(vars map[string]interface{}) (map[string]interface{}, error) {

	var previousBytes []byte
	var renderedYaml string

	log.Logger.Tracef("Iteratively templating variables: %+v", vars)

	for i := 0; i < maxIterations; i++ {
		log.Logger.Tracef("Templating variables. Iteration %d of max %d", i, maxIterations)

		// convert the input variables to YAML to simplify templating it
		yamlData, err := yaml.Marshal(&vars)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		renderedYaml, err = Render(string(yamlData[:]), vars)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		// unmarshal the rendered template ready for another iteration
		currentBytes := []byte(renderedYaml)
		var renderedVars map[string]interface{}
		err = yaml.UnmarshalStrict(currentBytes, &renderedVars)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		// yaml.v2 turns nested maps into interface-keyed ones which
		// text/template can't address by field
		vars = convert.DeepStringKeys(renderedVars).(map[string]interface{})
		if previousBytes != nil && bytes.Equal(previousBytes, currentBytes) {
			log.Logger.Debugf("Breaking out of templating variables after %d iterations", i)
			break
		}

		previousBytes = currentBytes
	}

	return vars, nil
}
