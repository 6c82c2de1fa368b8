// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// SecretsConfig will be used to interpret secrets mounted next to
// the configuration files
type SecretsConfig struct {
	CassandraUsername string `yaml:"cassandra_username"`
	CassandraPassword string `yaml:"cassandra_password"`
}

// ValidationError is the returned when a configuration fails to pass validation
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field, nil if the
// field is valid
func (e ValidationError) ErrForField(name string) error {
	errs, ok := e.errorMap[name]
	if !ok || len(errs) == 0 {
		return nil
	}
	return errs
}

// Error returns the error string from a ValidationError
func (e ValidationError) Error() string {
	var w bytes.Buffer

	fields := make([]string, 0, len(e.errorMap))
	for f := range e.errorMap {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	fmt.Fprintf(&w, "validation failed\n")
	for _, f := range fields {
		fmt.Fprintf(&w, "   %s: %v\n", f, e.errorMap[f])
	}

	return w.String()
}

// Parse loads the given configFiles in order, merges them together, and parse into given
// config interface.
func Parse(config interface{}, configFiles ...string) error {
	if len(configFiles) == 0 {
		return errors.New("no files to load")
	}
	for _, fname := range configFiles {
		data, err := os.ReadFile(fname)
		if err != nil {
			return err
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("%s: %v", fname, err)
		}
	}

	// Validate on the merged config at the end.
	if err := validator.Validate(config); err != nil {
		if errs, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: errs}
		}
		return err
	}
	return nil
}

// ParseSecrets reads a secrets file. A missing file yields empty secrets.
func ParseSecrets(fname string) (*SecretsConfig, error) {
	secrets := &SecretsConfig{}
	data, err := os.ReadFile(fname)
	if os.IsNotExist(err) {
		return secrets, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, secrets); err != nil {
		return nil, fmt.Errorf("%s: %v", fname, err)
	}
	return secrets, nil
}
