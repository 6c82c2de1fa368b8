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
	"reflect"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"
)

var _objectType = reflect.TypeOf((*base.Object)(nil)).Elem()

// key declaration styles, an object may only use one of them
const (
	_keyStyleNone = iota
	// primaryKey=((a), b) in the cassandra tag
	_keyStyleDSL
	// a key struct field tagged primaryKey
	_keyStyleClass
	// keyColumn tags on the object fields
	_keyStyleInline
	// a scalar field tagged primaryKey
	_keyStyleSingle
)

// IsCompositeKey returns true if t is a key struct, i.e. a struct which
// declares at least one keyColumn tag itself or through an embedded struct.
func IsCompositeKey(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if _, ok := f.Tag.Lookup(_keyColumnTag); ok {
			return true
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && IsCompositeKey(f.Type) {
			return true
		}
	}
	return false
}

// scanner walks a storage object type and collects its columns and key
// declarations.
type scanner struct {
	root     reflect.Type
	strategy NamingStrategy

	tableAttrs tagAttrs
	properties []*Property
	keyColumns []*KeyColumn
	keyStyle   int
	singleKey  *Property
}

// newEntity builds the metadata of the storage object type t and resolves
// its primary key.
func newEntity(t reflect.Type, cfg entityConfig) (*Entity, error) {
	if t.Kind() != reflect.Struct {
		return nil, &InvalidObjectError{
			Type:   t.String(),
			Reason: "storage objects must be pointers to structs",
		}
	}
	strategy := cfg.strategy
	if strategy == nil {
		strategy = DefaultNamingStrategy
	}

	s := &scanner{root: t, strategy: strategy}
	if err := s.walk(t, nil, ""); err != nil {
		return nil, err
	}
	if err := s.applyKeyDSL(); err != nil {
		return nil, err
	}

	e := &Entity{
		typ:        t,
		properties: s.properties,
		keyColumns: s.keyColumns,
		options:    map[TableOption]interface{}{},
	}

	switch s.keyStyle {
	case _keyStyleNone:
		return nil, &MissingPartitionKeyError{Owner: t.String()}
	case _keyStyleSingle:
		e.key = newSingleColumnKey(
			s.singleKey.Name, s.singleKey.Field.Name, s.singleKey.ForceQuote)
	default:
		key, err := Resolve(s.keyColumns, strategy)
		if err != nil {
			return nil, err
		}
		e.key = key
	}
	if err := s.checkColumnNames(); err != nil {
		return nil, err
	}

	e.tableName = tableNameFor(strategy, t)
	if name := s.tableAttrs[_nameAttr]; name != "" {
		e.tableName = Identifier(name)
	}
	if cfg.tableName != "" {
		e.tableName = cfg.tableName
	}
	fq, err := s.tableAttrs.bool(_forceQuoteAttr)
	if err != nil {
		return nil, s.invalid("%v", err)
	}
	e.forceQuote = fq
	if cfg.forceQuote != nil {
		e.forceQuote = *cfg.forceQuote
	}

	if to, ok := reflect.New(t).Interface().(TableOptioner); ok {
		for k, v := range to.TableOptions() {
			e.options[k] = v
		}
	}
	for k, v := range cfg.options {
		e.options[k] = v
	}
	return e, nil
}

func (s *scanner) invalid(format string, args ...interface{}) error {
	return &InvalidObjectError{
		Type:   s.root.String(),
		Reason: fmt.Sprintf(format, args...),
	}
}

func (s *scanner) setKeyStyle(style int) error {
	if s.keyStyle != _keyStyleNone && s.keyStyle != style {
		return s.invalid("primary key declared more than once")
	}
	s.keyStyle = style
	return nil
}

// walk visits the fields of t. index is the path to t from the root and
// top is the root field name t is reached through, if any.
func (s *scanner) walk(t reflect.Type, index []int, top string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		idx := append(append([]int(nil), index...), i)
		topField := top
		if topField == "" {
			topField = f.Name
		}

		if f.Anonymous && f.Type == _objectType {
			if err := s.objectTag(f); err != nil {
				return err
			}
			continue
		}
		if f.Anonymous && !hasOrmTag(f) {
			if f.Type.Kind() != reflect.Struct {
				return s.invalid("embedded field %s must be a struct", f.Name)
			}
			if err := s.walk(f.Type, idx, top); err != nil {
				return err
			}
			continue
		}
		if f.PkgPath != "" {
			// unexported
			continue
		}

		field := FieldIdentity{Owner: t, Name: f.Name, Index: idx}
		if tag, ok := f.Tag.Lookup(_primaryKeyTag); ok {
			if err := s.primaryKeyField(f, field, tag, topField); err != nil {
				return err
			}
			continue
		}
		if tag, ok := f.Tag.Lookup(_keyColumnTag); ok {
			if err := s.setKeyStyle(_keyStyleInline); err != nil {
				return err
			}
			if err := s.keyColumn(f, field, tag, topField); err != nil {
				return err
			}
			continue
		}

		tag, ok := f.Tag.Lookup(_columnTag)
		if !ok {
			return s.invalid("field %s has no %s tag", f.Name, _columnTag)
		}
		if tag == _skipColumn {
			continue
		}
		attrs, err := parseTag(tag)
		if err == nil {
			err = attrs.only(_nameAttr, _forceQuoteAttr)
		}
		if err != nil {
			return s.invalid("field %s: %v", f.Name, err)
		}
		p, err := s.property(f, field, attrs, topField)
		if err != nil {
			return err
		}
		s.properties = append(s.properties, p)
	}
	return nil
}

func hasOrmTag(f reflect.StructField) bool {
	for _, tag := range []string{_columnTag, _primaryKeyTag, _keyColumnTag} {
		if _, ok := f.Tag.Lookup(tag); ok {
			return true
		}
	}
	return false
}

// objectTag reads the table metadata off the embedded base.Object.
func (s *scanner) objectTag(f reflect.StructField) error {
	if s.tableAttrs != nil {
		return s.invalid("base.Object embedded more than once")
	}
	tag, ok := f.Tag.Lookup(_cassandraTag)
	if !ok {
		return s.invalid("base.Object has no %s tag", _cassandraTag)
	}
	attrs, err := parseTag(tag)
	if err == nil {
		err = attrs.only(_nameAttr, _primaryKeyAttr, _forceQuoteAttr)
	}
	if err != nil {
		return s.invalid("%s tag: %v", _cassandraTag, err)
	}
	s.tableAttrs = attrs
	return nil
}

func (s *scanner) property(
	f reflect.StructField,
	field FieldIdentity,
	attrs tagAttrs,
	topField string,
) (*Property, error) {
	fq, err := attrs.bool(_forceQuoteAttr)
	if err != nil {
		return nil, s.invalid("field %s: %v", f.Name, err)
	}
	name := Identifier(attrs[_nameAttr])
	if name == "" {
		name = s.strategy.FieldNameToColumnName(field)
	}
	return &Property{
		Field:      field,
		Name:       name,
		ForceQuote: fq,
		Type:       f.Type,
		topField:   topField,
	}, nil
}

// primaryKeyField handles a field tagged primaryKey, which is either a key
// struct or a single key column.
func (s *scanner) primaryKeyField(
	f reflect.StructField,
	field FieldIdentity,
	tag string,
	topField string,
) error {
	if IsCompositeKey(f.Type) {
		if f.Type.Kind() != reflect.Struct {
			return s.invalid("key struct field %s must not be a pointer", f.Name)
		}
		if s.keyStyle == _keyStyleClass {
			return s.invalid("primary key declared more than once")
		}
		if err := s.setKeyStyle(_keyStyleClass); err != nil {
			return err
		}
		return s.keyClass(f.Type, field.Index, topField)
	}

	if err := s.setKeyStyle(_keyStyleSingle); err != nil {
		return err
	}
	if s.singleKey != nil {
		return s.invalid("primary key declared more than once")
	}
	attrs, err := parseTag(tag)
	if err == nil {
		err = attrs.only(_nameAttr, _forceQuoteAttr)
	}
	if err != nil {
		return s.invalid("field %s: %v", f.Name, err)
	}
	p, err := s.property(f, field, attrs, topField)
	if err != nil {
		return err
	}
	p.Key = true
	s.singleKey = p
	s.properties = append(s.properties, p)
	return nil
}

// keyClass collects the key columns of a key struct. Every exported field of
// a key struct must carry a keyColumn tag.
func (s *scanner) keyClass(t reflect.Type, index []int, topField string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		idx := append(append([]int(nil), index...), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if err := s.keyClass(f.Type, idx, topField); err != nil {
				return err
			}
			continue
		}
		if f.PkgPath != "" {
			continue
		}
		tag, ok := f.Tag.Lookup(_keyColumnTag)
		if !ok {
			return s.invalid("key field %s.%s has no %s tag",
				t.Name(), f.Name, _keyColumnTag)
		}
		field := FieldIdentity{Owner: t, Name: f.Name, Index: idx}
		if err := s.keyColumn(f, field, tag, topField); err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) keyColumn(
	f reflect.StructField,
	field FieldIdentity,
	tag string,
	topField string,
) error {
	attrs, err := parseTag(tag)
	if err != nil {
		return &InvalidDescriptorError{Field: field.String(), Reason: err.Error()}
	}
	meta, err := attrs.fieldMetadata()
	if err != nil {
		return &InvalidDescriptorError{Field: field.String(), Reason: err.Error()}
	}
	c, err := meta.KeyColumn(field)
	if err != nil {
		return err
	}
	s.keyColumns = append(s.keyColumns, c)
	s.properties = append(s.properties, &Property{
		Field:      field,
		Name:       c.EffectiveName(s.strategy),
		ForceQuote: c.ForceQuote(),
		Type:       f.Type,
		Key:        true,
		topField:   topField,
	})
	return nil
}

// applyKeyDSL turns primaryKey=((a, b), c) of the cassandra tag into key
// column descriptors over the already collected properties.
func (s *scanner) applyKeyDSL() error {
	dsl, ok := s.tableAttrs[_primaryKeyAttr]
	if !ok {
		return nil
	}
	if err := s.setKeyStyle(_keyStyleDSL); err != nil {
		return err
	}
	partition, cluster, err := parsePrimaryKey(dsl)
	if err != nil {
		return s.invalid("%v", err)
	}

	byName := make(map[string]*Property, len(s.properties))
	for _, p := range s.properties {
		byName[p.Name.Normalized()] = p
	}
	add := func(name string, ordinal int, keyType KeyType, o Ordering) error {
		p, ok := byName[Identifier(name).Normalized()]
		if !ok {
			return s.invalid("primary key column %q is not a column", name)
		}
		c, err := NewKeyColumn(p.Field, ordinal, keyType,
			ColumnName(p.Name.String()),
			ColumnOrdering(o),
			ColumnForceQuote(p.ForceQuote),
		)
		if err != nil {
			return err
		}
		p.Key = true
		s.keyColumns = append(s.keyColumns, c)
		return nil
	}
	for i, name := range partition {
		if err := add(name, i, Partitioned, Ascending); err != nil {
			return err
		}
	}
	for i, ck := range cluster {
		if err := add(ck.name, i, Clustered, ck.ordering); err != nil {
			return err
		}
	}
	return nil
}

// checkColumnNames ensures no two columns share a name ignoring case. It
// runs after Resolve so key errors are reported first.
func (s *scanner) checkColumnNames() error {
	seen := make(map[string]struct{}, len(s.properties))
	for _, p := range s.properties {
		n := p.Name.Normalized()
		if _, ok := seen[n]; ok {
			return &DuplicateColumnNameError{Name: p.Name}
		}
		seen[n] = struct{}{}
	}
	return nil
}
