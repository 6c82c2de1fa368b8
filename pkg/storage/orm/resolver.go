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
	"sort"
	"strings"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"
)

// ResolvedColumn is one column of a resolved primary key.
type ResolvedColumn struct {
	// Name is the effective column name
	Name Identifier
	// FieldName is the Go field the column was declared on
	FieldName string
	// Ordinal is the declared ordinal
	Ordinal int
	// KeyType is Partitioned or Clustered
	KeyType KeyType
	// Ordering is always Ascending for partitioned columns
	Ordering Ordering
	// ForceQuote asks statement generation to quote Name
	ForceQuote bool
	// Comment is carried through from the declaration
	Comment string
}

// CompositeKey is the canonical form of a primary key: partition columns and
// clustering columns, each sorted by ordinal.
type CompositeKey struct {
	partition []ResolvedColumn
	cluster   []ResolvedColumn
}

// Resolve validates a set of key column descriptors declared on one owning
// type and orders them into a CompositeKey. It fails with
// MissingPartitionKeyError, DuplicateOrdinalError or
// DuplicateColumnNameError, checked in that order, and never returns a
// partial key. Resolve holds no state and is safe for concurrent use.
func Resolve(columns []*KeyColumn, strategy NamingStrategy) (*CompositeKey, error) {
	if strategy == nil {
		strategy = DefaultNamingStrategy
	}

	var partition, cluster []*KeyColumn
	seen := make(map[*KeyColumn]struct{}, len(columns))
	for _, c := range columns {
		if c == nil {
			return nil, &InvalidDescriptorError{Field: "<nil>", Reason: "nil key column"}
		}
		// the input is a set
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}

		switch c.KeyType() {
		case Partitioned:
			partition = append(partition, c)
		case Clustered:
			cluster = append(cluster, c)
		default:
			return nil, &InvalidDescriptorError{
				Field:  c.Field().String(),
				Reason: "unknown key type " + c.KeyType().String(),
			}
		}
	}

	if len(partition) == 0 {
		return nil, &MissingPartitionKeyError{Owner: ownerOf(columns)}
	}
	if err := sortByOrdinal(Partitioned, partition); err != nil {
		return nil, err
	}
	if err := sortByOrdinal(Clustered, cluster); err != nil {
		return nil, err
	}

	key := &CompositeKey{
		partition: make([]ResolvedColumn, 0, len(partition)),
		cluster:   make([]ResolvedColumn, 0, len(cluster)),
	}
	names := make(map[string]struct{}, len(partition)+len(cluster))
	for _, group := range [][]*KeyColumn{partition, cluster} {
		for _, c := range group {
			name := c.EffectiveName(strategy)
			if _, ok := names[name.Normalized()]; ok {
				return nil, &DuplicateColumnNameError{Name: name}
			}
			names[name.Normalized()] = struct{}{}

			rc := resolvedColumn(c, name)
			if c.KeyType() == Partitioned {
				key.partition = append(key.partition, rc)
			} else {
				key.cluster = append(key.cluster, rc)
			}
		}
	}
	return key, nil
}

// sortByOrdinal sorts one key type group in place. Equal ordinals are an
// error, the lowest colliding ordinal is reported.
func sortByOrdinal(keyType KeyType, group []*KeyColumn) error {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Ordinal() < group[j].Ordinal()
	})
	for i := 1; i < len(group); i++ {
		if group[i].Ordinal() == group[i-1].Ordinal() {
			return &DuplicateOrdinalError{
				KeyType: keyType,
				Ordinal: group[i].Ordinal(),
			}
		}
	}
	return nil
}

func resolvedColumn(c *KeyColumn, name Identifier) ResolvedColumn {
	return ResolvedColumn{
		Name:       name,
		FieldName:  c.Field().Name,
		Ordinal:    c.Ordinal(),
		KeyType:    c.KeyType(),
		Ordering:   c.Ordering(),
		ForceQuote: c.ForceQuote(),
		Comment:    c.Comment(),
	}
}

func ownerOf(columns []*KeyColumn) string {
	for _, c := range columns {
		if c != nil && c.Field().Owner != nil {
			return c.Field().Owner.String()
		}
	}
	return ""
}

// newSingleColumnKey builds the key of an entity with a single key column.
// Such keys never go through Resolve.
func newSingleColumnKey(name Identifier, fieldName string, forceQuote bool) *CompositeKey {
	return &CompositeKey{
		partition: []ResolvedColumn{{
			Name:       name,
			FieldName:  fieldName,
			KeyType:    Partitioned,
			Ordering:   Ascending,
			ForceQuote: forceQuote,
		}},
	}
}

// PartitionColumns returns the partition key columns in ordinal order.
func (k *CompositeKey) PartitionColumns() []ResolvedColumn {
	return append([]ResolvedColumn(nil), k.partition...)
}

// ClusterColumns returns the clustering columns in ordinal order.
func (k *CompositeKey) ClusterColumns() []ResolvedColumn {
	return append([]ResolvedColumn(nil), k.cluster...)
}

// Columns returns partition columns followed by clustering columns.
func (k *CompositeKey) Columns() []ResolvedColumn {
	cols := make([]ResolvedColumn, 0, len(k.partition)+len(k.cluster))
	cols = append(cols, k.partition...)
	return append(cols, k.cluster...)
}

// ColumnNames returns the names of Columns.
func (k *CompositeKey) ColumnNames() []Identifier {
	names := make([]Identifier, 0, len(k.partition)+len(k.cluster))
	for _, c := range k.Columns() {
		names = append(names, c.Name)
	}
	return names
}

// IsComposite returns true if the key has more than one column.
func (k *CompositeKey) IsComposite() bool {
	return len(k.partition)+len(k.cluster) > 1
}

// Equal reports whether both keys have the same columns in the same order.
func (k *CompositeKey) Equal(o *CompositeKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	return equalColumns(k.partition, o.partition) &&
		equalColumns(k.cluster, o.cluster)
}

func equalColumns(a, b []ResolvedColumn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PrimaryKey converts the key to its connector representation.
func (k *CompositeKey) PrimaryKey() *base.PrimaryKey {
	pk := &base.PrimaryKey{
		PartitionKeys:  make([]string, 0, len(k.partition)),
		ClusteringKeys: make([]*base.ClusteringKey, 0, len(k.cluster)),
	}
	for _, c := range k.partition {
		pk.PartitionKeys = append(pk.PartitionKeys, c.Name.String())
	}
	for _, c := range k.cluster {
		pk.ClusteringKeys = append(pk.ClusteringKeys, &base.ClusteringKey{
			Name:       c.Name.String(),
			Descending: c.Ordering == Descending,
		})
	}
	return pk
}

// String renders the key as ((p1, p2), c1 DESC, c2) for logs.
func (k *CompositeKey) String() string {
	parts := make([]string, 0, len(k.partition))
	for _, c := range k.partition {
		parts = append(parts, c.Name.String())
	}
	s := "((" + strings.Join(parts, ", ") + ")"
	for _, c := range k.cluster {
		s += ", " + c.Name.String()
		if c.Ordering == Descending {
			s += " DESC"
		}
	}
	return s + ")"
}
