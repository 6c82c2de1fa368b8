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

package main

import (
	"io"
	"os"

	"github.com/uber/cqlmapping/pkg/storage/orm"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// loadTables reads and resolves the given mapping files. Every file is
// read before any error is returned.
func loadTables(files []string) ([]*orm.ResolvedTable, error) {
	var (
		tables []orm.TableMapping
		errs   *multierror.Error
	)
	for _, fname := range files {
		data, err := os.ReadFile(fname)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		t, err := orm.LoadMappingFile(data)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, fname))
			continue
		}
		tables = append(tables, t...)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, errors.New("no tables found in mapping files")
	}
	return orm.ResolveMappings(tables, orm.DefaultNamingStrategy)
}

// writeTables prints the resolved tables as yaml.
func writeTables(w io.Writer, tables []*orm.ResolvedTable) error {
	out, err := yaml.Marshal(map[string][]*orm.ResolvedTable{"tables": tables})
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
