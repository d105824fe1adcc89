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

package convert

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Converts scalar values to strings, returning an error for composite types
// that have no sane string representation
func convertStringable(input interface{}) (string, error) {
	switch reflect.ValueOf(input).Kind() {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map:
		return "", errors.New(
			fmt.Sprintf("Can't convert array/slice/struct/map value: %#v", input))
	}

	return fmt.Sprintf("%v", input), nil
}

// Converts a map with keys and values as interfaces to a map with keys and values as strings or
// returns an error if types can't be sanely converted
func MapInterfaceInterfaceToMapStringString(input map[interface{}]interface{}) (map[string]string, error) {

	output := make(map[string]string)

	for k, v := range input {
		strKey, err := convertStringable(k)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		strVal, err := convertStringable(v)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		output[strKey] = strVal
	}

	return output, nil
}

// Converts a map with keys and values as interfaces to a map with string keys and values unchanged or
// returns an error if keys can't be sanely converted
func MapInterfaceInterfaceToMapStringInterface(input map[interface{}]interface{}) (map[string]interface{}, error) {

	output := make(map[string]interface{})

	for k, v := range input {
		strKey, err := convertStringable(k)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		output[strKey] = v
	}

	return output, nil
}

// Converts a map of strings to strings to a map of strings to interfaces
func MapStringStringToMapStringInterface(input map[string]string) map[string]interface{} {
	output := make(map[string]interface{})
	for k, v := range input {
		output[k] = v
	}

	return output
}

// Recursively converts parsed YAML values so every nested map has string
// keys. yaml.v2 returns map[interface{}]interface{} which is awkward to
// traverse.
func DeepStringKeys(input interface{}) interface{} {
	switch typed := input.(type) {
	case map[interface{}]interface{}:
		output := make(map[string]interface{})
		for k, v := range typed {
			output[fmt.Sprintf("%v", k)] = DeepStringKeys(v)
		}
		return output
	case map[string]interface{}:
		output := make(map[string]interface{})
		for k, v := range typed {
			output[k] = DeepStringKeys(v)
		}
		return output
	case []interface{}:
		output := make([]interface{}, len(typed))
		for i, v := range typed {
			output[i] = DeepStringKeys(v)
		}
		return output
	}

	return input
}
