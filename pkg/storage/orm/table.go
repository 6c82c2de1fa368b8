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
	"reflect"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"

	"github.com/pkg/errors"
	"go.uber.org/yarpc/yarpcerrors"
)

// Table translates storage objects of one entity to and from rows.
type Table struct {
	base.Definition

	entity *Entity
	// normalized column name to property
	columns map[string]*Property
}

// NewTable returns the row mapping of a resolved entity.
func NewTable(e *Entity) *Table {
	t := &Table{
		Definition: *e.Definition(),
		entity:     e,
		columns:    make(map[string]*Property, len(e.properties)),
	}
	for _, p := range e.properties {
		t.columns[p.Name.Normalized()] = p
	}
	return t
}

// Entity returns the entity the table was built from.
func (t *Table) Entity() *Entity { return t.entity }

func objectValue(e base.Object) reflect.Value {
	return reflect.ValueOf(e).Elem()
}

// selected reports whether p is one of the named object fields. Naming the
// key struct field selects all of its columns.
func selected(p *Property, fields []string) bool {
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		if f == p.Field.Name || f == p.topField {
			return true
		}
	}
	return false
}

// GetRowFromObject returns the columns of e. If selectedFields is given only
// the named object fields are returned. Unset optional values are left out.
func (t *Table) GetRowFromObject(e base.Object, selectedFields ...string) []base.Column {
	v := objectValue(e)
	row := make([]base.Column, 0, len(t.entity.properties))
	for _, p := range t.entity.properties {
		if !selected(p, selectedFields) {
			continue
		}
		value, ok := base.RawValue(v.FieldByIndex(p.Field.Index))
		if !ok {
			continue
		}
		row = append(row, base.Column{Name: p.Name.String(), Value: value})
	}
	return row
}

// ColumnNames returns the column names of the named object fields, or of
// all fields if none is given.
func (t *Table) ColumnNames(selectedFields ...string) []string {
	names := make([]string, 0, len(t.entity.properties))
	for _, p := range t.entity.properties {
		if selected(p, selectedFields) {
			names = append(names, p.Name.String())
		}
	}
	return names
}

// GetKeyRowFromObject returns the primary key columns of e, partition
// columns first, each group in ordinal order. Every key column must be set.
func (t *Table) GetKeyRowFromObject(e base.Object) ([]base.Column, error) {
	return t.keyRow(e, t.entity.key.Columns())
}

// GetPartitionKeyRowFromObject returns the partition key columns of e.
// Every partition column must be set.
func (t *Table) GetPartitionKeyRowFromObject(e base.Object) ([]base.Column, error) {
	return t.keyRow(e, t.entity.key.PartitionColumns())
}

// GetValueRowFromObject returns the non key columns of e.
func (t *Table) GetValueRowFromObject(e base.Object, selectedFields ...string) []base.Column {
	var row []base.Column
	for _, c := range t.GetRowFromObject(e, selectedFields...) {
		if p := t.columns[Identifier(c.Name).Normalized()]; p != nil && !p.Key {
			row = append(row, c)
		}
	}
	return row
}

func (t *Table) keyRow(e base.Object, cols []ResolvedColumn) ([]base.Column, error) {
	v := objectValue(e)
	row := make([]base.Column, 0, len(cols))
	for _, c := range cols {
		p := t.columns[c.Name.Normalized()]
		value, ok := base.RawValue(v.FieldByIndex(p.Field.Index))
		if !ok {
			return nil, yarpcerrors.InvalidArgumentErrorf(
				"key column %s of %s is not set", c.Name, t.entity.TableName())
		}
		row = append(row, base.Column{Name: c.Name.String(), Value: value})
	}
	return row, nil
}

// SetObjectFromRow sets the fields of e from a row read by a connector.
// Unknown columns and nil values are skipped. Values are converted to the
// field type when the types differ, e.g. int64 read from C* into a uint64.
func (t *Table) SetObjectFromRow(e base.Object, row map[string]interface{}) error {
	v := objectValue(e)
	for name, value := range row {
		p, ok := t.columns[Identifier(name).Normalized()]
		if !ok || value == nil {
			continue
		}
		fv := v.FieldByIndex(p.Field.Index)
		rv := reflect.ValueOf(value)
		switch {
		case base.IsOptionalType(fv.Type()):
			ov, err := base.OptionalFromRaw(fv.Type(), value)
			if err != nil {
				return errors.Wrapf(err, "column %s", name)
			}
			fv.Set(ov)
		case rv.Type().AssignableTo(fv.Type()):
			fv.Set(rv)
		case isNumeric(rv.Kind()) && isNumeric(fv.Kind()):
			fv.Set(rv.Convert(fv.Type()))
		default:
			return errors.Errorf(
				"column %s of type %s cannot be set to field %s of type %s",
				name, rv.Type(), p.Field.Name, fv.Type())
		}
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
