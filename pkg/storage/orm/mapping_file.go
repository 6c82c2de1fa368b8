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

package orm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// MappingFile declares primary keys outside of Go types, e.g. for tables
// owned by another service.
//
//	tables:
//	  - name: events
//	    keyColumns:
//	      - name: user_id
//	        ordinal: 0
//	        type: partitioned
//	      - name: created_at
//	        ordinal: 0
//	        type: clustered
//	        ordering: desc
type MappingFile struct {
	Tables []TableMapping `yaml:"tables"`
}

// TableMapping is the mapping of one table.
type TableMapping struct {
	Name       string                 `yaml:"name"`
	ForceQuote bool                   `yaml:"forceQuote"`
	Options    map[string]interface{} `yaml:"options"`
	KeyColumns []KeyColumnMapping     `yaml:"keyColumns"`
}

// KeyColumnMapping is a key column declaration. Field defaults to the
// column name.
type KeyColumnMapping struct {
	Field         string `yaml:"field"`
	FieldMetadata `yaml:",inline"`
}

// ResolvedTable is a table mapping with its key resolved.
type ResolvedTable struct {
	Name       Identifier
	ForceQuote bool
	Options    map[TableOption]interface{}
	Key        *CompositeKey
}

// LoadMappingFile parses a mapping file. Unknown attributes are rejected.
func LoadMappingFile(data []byte) ([]TableMapping, error) {
	var file MappingFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse mapping file")
	}
	for i, t := range file.Tables {
		// key columns are validated when the table is resolved
		if err := validator.Valid(t.Name, "nonzero"); err != nil {
			return nil, errors.Wrapf(err, "table %d: name", i)
		}
	}
	return file.Tables, nil
}

// Descriptors builds the key column descriptors of the table.
func (t TableMapping) Descriptors() ([]*KeyColumn, error) {
	columns := make([]*KeyColumn, 0, len(t.KeyColumns))
	for _, kc := range t.KeyColumns {
		field := kc.Field
		if field == "" {
			field = kc.Name
		}
		c, err := kc.FieldMetadata.KeyColumn(FieldIdentity{Name: field})
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// Resolve resolves the primary key of the table.
func (t TableMapping) Resolve(strategy NamingStrategy) (*ResolvedTable, error) {
	columns, err := t.Descriptors()
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", t.Name)
	}
	key, err := Resolve(columns, strategy)
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", t.Name)
	}
	options := make(map[TableOption]interface{}, len(t.Options))
	for k, v := range t.Options {
		options[TableOption(strings.ToLower(k))] = v
	}
	return &ResolvedTable{
		Name:       Identifier(t.Name),
		ForceQuote: t.ForceQuote,
		Options:    options,
		Key:        key,
	}, nil
}

// ResolveMappings resolves every table and returns all failures together.
// Tables are returned in declaration order.
func ResolveMappings(tables []TableMapping, strategy NamingStrategy) ([]*ResolvedTable, error) {
	var (
		resolved []*ResolvedTable
		errs     *multierror.Error
		names    = make(map[string]struct{}, len(tables))
	)
	for _, t := range tables {
		n := Identifier(t.Name).Normalized()
		if _, ok := names[n]; ok {
			errs = multierror.Append(errs, fmt.Errorf("table %s declared more than once", t.Name))
			continue
		}
		names[n] = struct{}{}

		rt, err := t.Resolve(strategy)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		resolved = append(resolved, rt)
	}
	return resolved, errs.ErrorOrNil()
}

// MarshalYAML renders the resolved table the way cqlmap prints it.
func (t *ResolvedTable) MarshalYAML() (interface{}, error) {
	type column struct {
		Name       string `yaml:"name"`
		Field      string `yaml:"field,omitempty"`
		Ordinal    int    `yaml:"ordinal"`
		Ordering   string `yaml:"ordering,omitempty"`
		ForceQuote bool   `yaml:"forceQuote,omitempty"`
		Comment    string `yaml:"comment,omitempty"`
	}
	toColumns := func(cols []ResolvedColumn) []column {
		out := make([]column, 0, len(cols))
		for _, c := range cols {
			col := column{
				Name:       c.Name.String(),
				Ordinal:    c.Ordinal,
				ForceQuote: c.ForceQuote,
				Comment:    c.Comment,
			}
			if c.FieldName != c.Name.String() {
				col.Field = c.FieldName
			}
			if c.KeyType == Clustered {
				col.Ordering = c.Ordering.String()
			}
			out = append(out, col)
		}
		return out
	}

	options := yaml.MapSlice{}
	keys := make([]string, 0, len(t.Options))
	for k := range t.Options {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		options = append(options, yaml.MapItem{Key: k, Value: t.Options[TableOption(k)]})
	}

	out := yaml.MapSlice{
		{Key: "name", Value: t.Name.String()},
		{Key: "primaryKey", Value: t.Key.String()},
		{Key: "partitionKey", Value: toColumns(t.Key.PartitionColumns())},
	}
	if cluster := t.Key.ClusterColumns(); len(cluster) > 0 {
		out = append(out, yaml.MapItem{Key: "clusteringKey", Value: toColumns(cluster)})
	}
	if t.ForceQuote {
		out = append(out, yaml.MapItem{Key: "forceQuote", Value: true})
	}
	if len(options) > 0 {
		out = append(out, yaml.MapItem{Key: "options", Value: options})
	}
	return out, nil
}
