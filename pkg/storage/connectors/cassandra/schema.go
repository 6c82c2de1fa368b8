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

package cassandra

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"
	"github.com/uber/cqlmapping/pkg/storage/orm"

	"github.com/gocql/gocql"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"go.uber.org/yarpc/yarpcerrors"
)

const (
	_kindPartitionKey = "partition_key"
	_kindClustering   = "clustering"
	_orderDesc        = "desc"

	_primaryKeyQuery = `select column_name, clustering_order, kind, position
		from system_schema.columns
		where keyspace_name = ? and table_name = ?`
)

// PrimaryKeyReader reads the primary key of a live table.
type PrimaryKeyReader interface {
	ReadPrimaryKey(ctx context.Context, keyspace, table string) (*base.PrimaryKey, error)
}

// schemaColumn is one row of system_schema.columns
type schemaColumn struct {
	Name     string
	Order    string
	Kind     string
	Position int
}

type sessionReader struct {
	session *gocql.Session
}

// NewPrimaryKeyReader returns a reader backed by a gocql session.
func NewPrimaryKeyReader(session *gocql.Session) PrimaryKeyReader {
	return &sessionReader{session: session}
}

func (r *sessionReader) ReadPrimaryKey(
	ctx context.Context,
	keyspace, table string,
) (*base.PrimaryKey, error) {
	return RemoteGetPrimaryKey(ctx, r.session, keyspace, table)
}

// RemoteGetPrimaryKey reads the primary key of keyspace.table from
// system_schema. Columns are returned in key order.
func RemoteGetPrimaryKey(
	ctx context.Context,
	session *gocql.Session,
	keyspace, table string,
) (*base.PrimaryKey, error) {
	var (
		tmp     schemaColumn
		columns []schemaColumn
	)
	i := session.Query(_primaryKeyQuery, keyspace, table).WithContext(ctx).Iter()
	for i.Scan(&tmp.Name, &tmp.Order, &tmp.Kind, &tmp.Position) {
		columns = append(columns, tmp)
	}
	if err := i.Close(); err != nil {
		return nil, errors.Wrapf(err, "failed to read schema of %s.%s", keyspace, table)
	}
	if len(columns) == 0 {
		return nil, yarpcerrors.NotFoundErrorf("table %s.%s not found", keyspace, table)
	}
	return primaryKeyFromColumns(columns), nil
}

func primaryKeyFromColumns(columns []schemaColumn) *base.PrimaryKey {
	var partition, clustering []schemaColumn
	for _, c := range columns {
		switch c.Kind {
		case _kindPartitionKey:
			partition = append(partition, c)
		case _kindClustering:
			clustering = append(clustering, c)
		}
	}
	byPosition := func(cols []schemaColumn) {
		sort.Slice(cols, func(i, j int) bool {
			return cols[i].Position < cols[j].Position
		})
	}
	byPosition(partition)
	byPosition(clustering)

	pk := &base.PrimaryKey{
		PartitionKeys:  make([]string, 0, len(partition)),
		ClusteringKeys: make([]*base.ClusteringKey, 0, len(clustering)),
	}
	for _, c := range partition {
		pk.PartitionKeys = append(pk.PartitionKeys, c.Name)
	}
	for _, c := range clustering {
		pk.ClusteringKeys = append(pk.ClusteringKeys, &base.ClusteringKey{
			Name:       c.Name,
			Descending: strings.EqualFold(c.Order, _orderDesc),
		})
	}
	return pk
}

// SchemaMismatchError is returned when a declared primary key differs from
// the live table.
type SchemaMismatchError struct {
	Table string
	// Diff is a human readable diff, declared (-) against live (+)
	Diff string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("primary key of %s does not match the live schema:\n%s",
		e.Table, e.Diff)
}

// IsSchemaMismatch returns true if err is a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var m *SchemaMismatchError
	return errors.As(err, &m)
}

// StoredName returns the name Cassandra stores for an identifier, unquoted
// identifiers are folded to lower case.
func StoredName(name orm.Identifier, forceQuote bool) string {
	if forceQuote {
		return name.String()
	}
	return name.Normalized()
}

// ComparePrimaryKey compares a declared key with the key of the live table.
func ComparePrimaryKey(
	table string,
	declared *orm.CompositeKey,
	remote *base.PrimaryKey,
) error {
	want := &base.PrimaryKey{}
	for _, c := range declared.PartitionColumns() {
		want.PartitionKeys = append(want.PartitionKeys, StoredName(c.Name, c.ForceQuote))
	}
	for _, c := range declared.ClusterColumns() {
		want.ClusteringKeys = append(want.ClusteringKeys, &base.ClusteringKey{
			Name:       StoredName(c.Name, c.ForceQuote),
			Descending: c.Ordering == orm.Descending,
		})
	}

	got := &base.PrimaryKey{
		PartitionKeys:  append([]string(nil), remote.PartitionKeys...),
		ClusteringKeys: append([]*base.ClusteringKey(nil), remote.ClusteringKeys...),
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		return &SchemaMismatchError{Table: table, Diff: diff}
	}
	return nil
}
