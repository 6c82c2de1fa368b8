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
)

// TableOption is the kind of a table option. Options are carried through to
// statement generation and never interpreted by the mapping layer.
type TableOption string

// Well known Cassandra table options. Any other TableOption value is carried
// through as well.
const (
	TableOptionComment                 TableOption = "comment"
	TableOptionCompaction              TableOption = "compaction"
	TableOptionCompression             TableOption = "compression"
	TableOptionCaching                 TableOption = "caching"
	TableOptionBloomFilterFpChance     TableOption = "bloom_filter_fp_chance"
	TableOptionReadRepairChance        TableOption = "read_repair_chance"
	TableOptionDcLocalReadRepairChance TableOption = "dclocal_read_repair_chance"
	TableOptionGcGraceSeconds          TableOption = "gc_grace_seconds"
	TableOptionDefaultTimeToLive       TableOption = "default_time_to_live"
	TableOptionMemtableFlushPeriodInMs TableOption = "memtable_flush_period_in_ms"
	TableOptionSpeculativeRetry        TableOption = "speculative_retry"
)

// TableOptioner is implemented by storage objects which declare table
// options. It is called once per type, on a new zero value, when the type is
// registered, so the options never depend on the registered instance.
type TableOptioner interface {
	TableOptions() map[TableOption]interface{}
}

// Property is one persisted column of a storage object.
type Property struct {
	// Field is the struct field backing the column
	Field FieldIdentity
	// Name is the effective column name
	Name Identifier
	// ForceQuote asks statement generation to quote Name
	ForceQuote bool
	// Type is the Go type of the field
	Type reflect.Type
	// Key is true for primary key columns
	Key bool

	// topField is the field name on the storage object itself, which is
	// the key struct field for composite key columns
	topField string
}

// Entity is the mapping metadata of one storage object type.
type Entity struct {
	typ        reflect.Type
	tableName  Identifier
	forceQuote bool
	options    map[TableOption]interface{}
	properties []*Property
	keyColumns []*KeyColumn
	key        *CompositeKey
}

// Type returns the storage object struct type.
func (e *Entity) Type() reflect.Type { return e.typ }

// TableName returns the name of the table the entity is persisted to.
func (e *Entity) TableName() Identifier { return e.tableName }

// ForceQuote returns whether the table name must be quoted.
func (e *Entity) ForceQuote() bool { return e.forceQuote }

// TableOptions returns a copy of the table options.
func (e *Entity) TableOptions() map[TableOption]interface{} {
	opts := make(map[TableOption]interface{}, len(e.options))
	for k, v := range e.options {
		opts[k] = v
	}
	return opts
}

// IsCompositePrimaryKey returns true if the key was assembled from key
// column descriptors rather than a single key field.
func (e *Entity) IsCompositePrimaryKey() bool {
	return len(e.keyColumns) > 0
}

// CompositePrimaryKeyProperties returns the key column descriptors in
// declaration order. It is empty for single column keys.
func (e *Entity) CompositePrimaryKeyProperties() []*KeyColumn {
	return append([]*KeyColumn(nil), e.keyColumns...)
}

// PrimaryKey returns the resolved primary key.
func (e *Entity) PrimaryKey() *CompositeKey { return e.key }

// Columns returns all persisted columns in declaration order.
func (e *Entity) Columns() []*Property {
	return append([]*Property(nil), e.properties...)
}

// Definition returns the schema information handed to connectors.
func (e *Entity) Definition() *base.Definition {
	def := &base.Definition{
		Name:          e.tableName.String(),
		ForceQuote:    e.forceQuote,
		Key:           e.key.PrimaryKey(),
		ColumnToType:  make(map[string]reflect.Type, len(e.properties)),
		QuotedColumns: make(map[string]bool),
	}
	for _, p := range e.properties {
		def.ColumnToType[p.Name.String()] = base.RawType(p.Type)
		if p.ForceQuote {
			def.QuotedColumns[p.Name.String()] = true
		}
	}
	return def
}

type entityConfig struct {
	tableName  Identifier
	forceQuote *bool
	options    map[TableOption]interface{}
	strategy   NamingStrategy
}

// EntityOption overrides what a storage object declares about itself.
type EntityOption func(*entityConfig)

// WithTableName overrides the table name of the entity.
func WithTableName(name string) EntityOption {
	return func(c *entityConfig) {
		c.tableName = Identifier(name)
	}
}

// WithForceQuote overrides whether the table name must be quoted.
func WithForceQuote(q bool) EntityOption {
	return func(c *entityConfig) {
		c.forceQuote = &q
	}
}

// WithTableOptions adds table options. They take precedence over the ones
// returned by TableOptioner.
func WithTableOptions(opts map[TableOption]interface{}) EntityOption {
	return func(c *entityConfig) {
		if c.options == nil {
			c.options = make(map[TableOption]interface{}, len(opts))
		}
		for k, v := range opts {
			c.options[k] = v
		}
	}
}

// WithNamingStrategy sets the naming strategy used for this entity.
func WithNamingStrategy(s NamingStrategy) EntityOption {
	return func(c *entityConfig) {
		c.strategy = s
	}
}
