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
	"strings"
	"unicode"
)

// Identifier is a table or column name as declared by a storage object.
// Unquoted identifiers are case insensitive in CQL, so comparisons between
// identifiers go through Normalized.
type Identifier string

// String returns the identifier as declared.
func (i Identifier) String() string {
	return string(i)
}

// Normalized returns the lower case form of the identifier.
func (i Identifier) Normalized() string {
	return strings.ToLower(string(i))
}

// EqualFold reports whether both identifiers name the same column.
func (i Identifier) EqualFold(o Identifier) bool {
	return strings.EqualFold(string(i), string(o))
}

// FieldIdentity identifies the struct field a column was declared on.
// Owner is nil for columns that were declared outside of Go types, for
// example in a mapping file.
type FieldIdentity struct {
	// Owner is the struct type declaring the field
	Owner reflect.Type
	// Name is the Go field name
	Name string
	// Index is the field index path from the root storage object
	Index []int
}

// Equal reports whether both identities refer to the same field.
func (f FieldIdentity) Equal(o FieldIdentity) bool {
	return f.Owner == o.Owner && f.Name == o.Name
}

// String returns a printable identity, e.g. "objects.EventKey.UserID".
func (f FieldIdentity) String() string {
	if f.Owner == nil {
		return f.Name
	}
	return fmt.Sprintf("%s.%s", f.Owner.String(), f.Name)
}

// NamingStrategy maps fields to column names when no explicit name is given.
// Implementations must be pure. Comparable implementations get their results
// memoized by each KeyColumn.
type NamingStrategy interface {
	FieldNameToColumnName(field FieldIdentity) Identifier
}

// TableNamer is implemented by naming strategies which also derive table
// names from storage object types.
type TableNamer interface {
	TypeToTableName(t reflect.Type) Identifier
}

// NamingStrategyFunc adapts a function to a NamingStrategy.
type NamingStrategyFunc func(field FieldIdentity) Identifier

// FieldNameToColumnName calls f(field).
func (f NamingStrategyFunc) FieldNameToColumnName(field FieldIdentity) Identifier {
	return f(field)
}

// SnakeCaseNamingStrategy converts Go names to snake case,
// "CreatedAt" -> "created_at", "UserID" -> "user_id".
type SnakeCaseNamingStrategy struct{}

// FieldNameToColumnName implements NamingStrategy.
func (SnakeCaseNamingStrategy) FieldNameToColumnName(field FieldIdentity) Identifier {
	return Identifier(toSnakeCase(field.Name))
}

// TypeToTableName implements TableNamer.
func (SnakeCaseNamingStrategy) TypeToTableName(t reflect.Type) Identifier {
	return Identifier(toSnakeCase(t.Name()))
}

// DefaultNamingStrategy is used whenever no strategy is provided.
var DefaultNamingStrategy NamingStrategy = SnakeCaseNamingStrategy{}

func tableNameFor(strategy NamingStrategy, t reflect.Type) Identifier {
	if tn, ok := strategy.(TableNamer); ok {
		return tn.TypeToTableName(t)
	}
	return Identifier(toSnakeCase(t.Name()))
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) ||
					(unicode.IsUpper(prev) && nextLower) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// cacheable reports whether a strategy can be used as a map key. The
// dynamic values of interface fields are checked too, a struct holding a
// func in an interface field has a comparable type but cannot be hashed.
func cacheable(strategy NamingStrategy) bool {
	return reflect.ValueOf(strategy).Comparable()
}
