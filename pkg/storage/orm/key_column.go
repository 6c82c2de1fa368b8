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
	"strings"
	"sync"

	"gopkg.in/validator.v2"
)

// KeyType tells which part of the primary key a column belongs to.
type KeyType int

const (
	// Partitioned columns make up the partition key
	Partitioned KeyType = iota + 1
	// Clustered columns make up the clustering key
	Clustered
)

func (k KeyType) String() string {
	switch k {
	case Partitioned:
		return "partitioned"
	case Clustered:
		return "clustered"
	default:
		return fmt.Sprintf("KeyType(%d)", int(k))
	}
}

// ParseKeyType parses the key type of a tag or mapping file. The system
// schema spellings "partition_key" and "clustering" are accepted as well.
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "partitioned", "partition", "partition_key":
		return Partitioned, nil
	case "clustered", "cluster", "clustering":
		return Clustered, nil
	}
	return 0, fmt.Errorf("unknown key type %q", s)
}

// Ordering is the clustering order of a clustered column.
type Ordering int

const (
	// Ascending is the default clustering order
	Ascending Ordering = iota
	// Descending reverses the clustering order
	Descending
)

func (o Ordering) String() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseOrdering parses a clustering order. An empty string is Ascending.
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return 0, fmt.Errorf("unknown ordering %q", s)
}

// FieldMetadata is the raw, per field key column declaration as it is read
// from a struct tag or a mapping file. Defaults are applied by KeyColumn.
type FieldMetadata struct {
	// Name of the column, derived from the field when empty
	Name string `yaml:"name"`
	// Ordinal is the position among columns of the same key type. It is
	// required, and 0 is a valid position.
	Ordinal *int `yaml:"ordinal"`
	// Type is either "partitioned" or "clustered"
	Type string `yaml:"type" validate:"nonzero"`
	// Ordering is "asc" or "desc", only meaningful for clustered columns
	Ordering string `yaml:"ordering"`
	// ForceQuote requests the column name to be quoted
	ForceQuote bool `yaml:"forceQuote"`
	// Comment is free-form text
	Comment string `yaml:"comment"`
}

// KeyColumn builds the descriptor for field out of the declaration.
func (m FieldMetadata) KeyColumn(field FieldIdentity) (*KeyColumn, error) {
	var reasons []string
	if m.Ordinal == nil {
		reasons = append(reasons, "ordinal: missing")
	}
	if err := validator.Validate(m); err != nil {
		reasons = append(reasons, formatValidationError(err))
	}
	if len(reasons) > 0 {
		return nil, &InvalidDescriptorError{
			Field:  field.String(),
			Reason: strings.Join(reasons, ", "),
		}
	}
	keyType, err := ParseKeyType(m.Type)
	if err != nil {
		return nil, &InvalidDescriptorError{Field: field.String(), Reason: err.Error()}
	}
	ordering, err := ParseOrdering(m.Ordering)
	if err != nil {
		return nil, &InvalidDescriptorError{Field: field.String(), Reason: err.Error()}
	}
	return NewKeyColumn(
		field,
		*m.Ordinal,
		keyType,
		ColumnName(m.Name),
		ColumnOrdering(ordering),
		ColumnForceQuote(m.ForceQuote),
		ColumnComment(m.Comment),
	)
}

func formatValidationError(err error) string {
	errs, ok := err.(validator.ErrorMap)
	if !ok {
		return err.Error()
	}
	var parts []string
	for _, f := range []string{"Type"} {
		if fe, ok := errs[f]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", strings.ToLower(f), fe))
		}
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, ", ")
}

// KeyColumnOption sets an optional attribute of a KeyColumn.
type KeyColumnOption func(*KeyColumn)

// ColumnName sets the explicit column name.
func ColumnName(name string) KeyColumnOption {
	return func(c *KeyColumn) {
		c.name = Identifier(strings.TrimSpace(name))
	}
}

// ColumnOrdering sets the clustering order.
func ColumnOrdering(o Ordering) KeyColumnOption {
	return func(c *KeyColumn) {
		c.ordering = o
	}
}

// ColumnForceQuote sets whether the column name must be quoted.
func ColumnForceQuote(q bool) KeyColumnOption {
	return func(c *KeyColumn) {
		c.forceQuote = q
	}
}

// ColumnComment sets the free-form column comment.
func ColumnComment(comment string) KeyColumnOption {
	return func(c *KeyColumn) {
		c.comment = comment
	}
}

// KeyColumn describes the part one field plays in a composite primary key.
// It is immutable once built. Two KeyColumns are equal when they were
// declared on the same field, whatever their column names.
type KeyColumn struct {
	field      FieldIdentity
	name       Identifier
	ordinal    int
	keyType    KeyType
	ordering   Ordering
	forceQuote bool
	comment    string

	// effective names per naming strategy
	names sync.Map
}

// NewKeyColumn returns a descriptor for field. Name, ordering, quoting and
// comment default to absent, Ascending, false and empty.
func NewKeyColumn(
	field FieldIdentity,
	ordinal int,
	keyType KeyType,
	opts ...KeyColumnOption,
) (*KeyColumn, error) {
	c := &KeyColumn{
		field:    field,
		ordinal:  ordinal,
		keyType:  keyType,
		ordering: Ascending,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case field.Name == "":
		return nil, &InvalidDescriptorError{Field: field.String(), Reason: "field name is empty"}
	case ordinal < 0:
		return nil, &InvalidDescriptorError{
			Field:  field.String(),
			Reason: fmt.Sprintf("ordinal %d is negative", ordinal),
		}
	case keyType != Partitioned && keyType != Clustered:
		return nil, &InvalidDescriptorError{
			Field:  field.String(),
			Reason: fmt.Sprintf("unknown key type %s", keyType),
		}
	case c.ordering != Ascending && c.ordering != Descending:
		return nil, &InvalidDescriptorError{
			Field:  field.String(),
			Reason: fmt.Sprintf("unknown ordering %d", int(c.ordering)),
		}
	}

	// ordering only applies to clustering columns
	if keyType == Partitioned {
		c.ordering = Ascending
	}
	return c, nil
}

// Field returns the field the column was declared on.
func (c *KeyColumn) Field() FieldIdentity { return c.field }

// Name returns the explicit column name, empty when absent.
func (c *KeyColumn) Name() Identifier { return c.name }

// Ordinal returns the position of the column among its key type.
func (c *KeyColumn) Ordinal() int { return c.ordinal }

// KeyType returns whether the column is partitioned or clustered.
func (c *KeyColumn) KeyType() KeyType { return c.keyType }

// Ordering returns the clustering order.
func (c *KeyColumn) Ordering() Ordering { return c.ordering }

// ForceQuote returns whether the column name must be quoted.
func (c *KeyColumn) ForceQuote() bool { return c.forceQuote }

// Comment returns the column comment.
func (c *KeyColumn) Comment() string { return c.comment }

// Equal reports whether both descriptors were declared on the same field.
func (c *KeyColumn) Equal(o *KeyColumn) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.field.Equal(o.field)
}

// EffectiveName returns the explicit name if present, otherwise the name
// derived from the field by strategy. A nil strategy means
// DefaultNamingStrategy.
func (c *KeyColumn) EffectiveName(strategy NamingStrategy) Identifier {
	if c.name != "" {
		return c.name
	}
	if strategy == nil {
		strategy = DefaultNamingStrategy
	}
	if !cacheable(strategy) {
		return strategy.FieldNameToColumnName(c.field)
	}
	if name, ok := c.names.Load(strategy); ok {
		return name.(Identifier)
	}
	name, _ := c.names.LoadOrStore(strategy, strategy.FieldNameToColumnName(c.field))
	return name.(Identifier)
}

func (c *KeyColumn) String() string {
	return fmt.Sprintf("%s(%s, ordinal=%d)", c.field, c.keyType, c.ordinal)
}
