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
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type keyOwner struct{}

var _keyOwnerType = reflect.TypeOf(keyOwner{})

type ResolverTestSuite struct {
	suite.Suite
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func (suite *ResolverTestSuite) column(
	field string,
	ordinal int,
	keyType KeyType,
	opts ...KeyColumnOption,
) *KeyColumn {
	c, err := NewKeyColumn(
		FieldIdentity{Owner: _keyOwnerType, Name: field}, ordinal, keyType, opts...)
	suite.Require().NoError(err)
	return c
}

// eventColumns returns user_id, created_at DESC and event_id, shuffled.
func (suite *ResolverTestSuite) eventColumns() []*KeyColumn {
	return []*KeyColumn{
		suite.column("EventID", 1, Clustered, ColumnName("event_id")),
		suite.column("UserID", 0, Partitioned, ColumnName("user_id")),
		suite.column("CreatedAt", 0, Clustered,
			ColumnName("created_at"), ColumnOrdering(Descending)),
	}
}

func (suite *ResolverTestSuite) TestResolve() {
	key, err := Resolve(suite.eventColumns(), nil)
	suite.Require().NoError(err)

	suite.Empty(cmp.Diff([]ResolvedColumn{
		{
			Name:      "user_id",
			FieldName: "UserID",
			KeyType:   Partitioned,
			Ordering:  Ascending,
		},
	}, key.PartitionColumns()))
	suite.Empty(cmp.Diff([]ResolvedColumn{
		{
			Name:      "created_at",
			FieldName: "CreatedAt",
			KeyType:   Clustered,
			Ordering:  Descending,
		},
		{
			Name:      "event_id",
			FieldName: "EventID",
			Ordinal:   1,
			KeyType:   Clustered,
			Ordering:  Ascending,
		},
	}, key.ClusterColumns()))
	suite.Equal(
		[]Identifier{"user_id", "created_at", "event_id"}, key.ColumnNames())
	suite.Equal("((user_id), created_at DESC, event_id)", key.String())
	suite.True(key.IsComposite())
}

func (suite *ResolverTestSuite) TestResolveDuplicatePartitionOrdinal() {
	_, err := Resolve([]*KeyColumn{
		suite.column("A", 0, Partitioned, ColumnName("a")),
		suite.column("B", 0, Partitioned, ColumnName("b")),
	}, nil)
	suite.Equal(&DuplicateOrdinalError{KeyType: Partitioned, Ordinal: 0}, err)
	suite.True(IsPermanent(err))
}

func (suite *ResolverTestSuite) TestResolveMissingPartitionKey() {
	_, err := Resolve([]*KeyColumn{
		suite.column("X", 0, Clustered, ColumnName("x")),
	}, nil)
	suite.Equal(&MissingPartitionKeyError{Owner: _keyOwnerType.String()}, err)
	suite.True(IsPermanent(err))

	_, err = Resolve(nil, nil)
	suite.Equal(&MissingPartitionKeyError{}, err)
}

func (suite *ResolverTestSuite) TestResolveSortsByOrdinal() {
	data := []struct {
		ordinals []int
		expected []Identifier
	}{
		{[]int{0, 1, 2}, []Identifier{"c0", "c1", "c2"}},
		{[]int{2, 1, 0}, []Identifier{"c0", "c1", "c2"}},
		{[]int{5, 1, 3}, []Identifier{"c1", "c3", "c5"}},
		{[]int{10, 100, 7}, []Identifier{"c7", "c10", "c100"}},
	}
	for _, d := range data {
		columns := []*KeyColumn{suite.column("P", 0, Partitioned)}
		for _, o := range d.ordinals {
			name := "c" + strconv.Itoa(o)
			columns = append(columns,
				suite.column("F"+strconv.Itoa(o), o, Clustered, ColumnName(name)))
		}
		key, err := Resolve(columns, nil)
		suite.Require().NoError(err)

		var names []Identifier
		for _, c := range key.ClusterColumns() {
			names = append(names, c.Name)
		}
		suite.Equal(d.expected, names, "ordinals %v", d.ordinals)
	}
}

func (suite *ResolverTestSuite) TestResolveDuplicateClusterOrdinal() {
	_, err := Resolve([]*KeyColumn{
		suite.column("P", 0, Partitioned),
		suite.column("A", 2, Clustered),
		suite.column("B", 2, Clustered),
		suite.column("C", 1, Clustered),
		suite.column("D", 1, Clustered),
	}, nil)
	suite.Equal(&DuplicateOrdinalError{KeyType: Clustered, Ordinal: 1}, err)
}

func (suite *ResolverTestSuite) TestResolveDuplicateColumnName() {
	_, err := Resolve([]*KeyColumn{
		suite.column("A", 0, Partitioned, ColumnName("Foo")),
		suite.column("B", 0, Clustered, ColumnName("foo")),
	}, nil)
	var dup *DuplicateColumnNameError
	suite.Require().True(errors.As(err, &dup))
	suite.Equal("foo", dup.Name.Normalized())
	suite.True(IsPermanent(err))

	// a derived name collides with an explicit one
	_, err = Resolve([]*KeyColumn{
		suite.column("UserID", 0, Partitioned),
		suite.column("Other", 1, Partitioned, ColumnName("USER_ID")),
	}, nil)
	suite.Require().True(errors.As(err, &dup))
	suite.Equal(Identifier("USER_ID"), dup.Name)
}

func (suite *ResolverTestSuite) TestResolveCheckOrder() {
	data := []struct {
		msg      string
		columns  []*KeyColumn
		expected error
	}{
		{
			msg: "missing partition before duplicate ordinal",
			columns: []*KeyColumn{
				suite.column("A", 0, Clustered),
				suite.column("B", 0, Clustered),
			},
			expected: &MissingPartitionKeyError{Owner: _keyOwnerType.String()},
		},
		{
			msg: "partition ordinals before cluster ordinals",
			columns: []*KeyColumn{
				suite.column("A", 1, Clustered),
				suite.column("B", 1, Clustered),
				suite.column("C", 4, Partitioned),
				suite.column("D", 4, Partitioned),
			},
			expected: &DuplicateOrdinalError{KeyType: Partitioned, Ordinal: 4},
		},
		{
			msg: "duplicate ordinal before duplicate name",
			columns: []*KeyColumn{
				suite.column("A", 0, Partitioned, ColumnName("same")),
				suite.column("B", 0, Clustered, ColumnName("same")),
				suite.column("C", 0, Clustered, ColumnName("other")),
			},
			expected: &DuplicateOrdinalError{KeyType: Clustered, Ordinal: 0},
		},
	}
	for _, d := range data {
		_, err := Resolve(d.columns, nil)
		suite.Equal(d.expected, err, d.msg)
	}
}

func (suite *ResolverTestSuite) TestResolveIdempotentUnderPermutation() {
	columns := append(suite.eventColumns(),
		suite.column("Region", 7, Partitioned),
		suite.column("Seq", 9, Clustered))
	expected, err := Resolve(columns, nil)
	suite.Require().NoError(err)

	permute(columns, func(p []*KeyColumn) {
		key, err := Resolve(p, nil)
		suite.Require().NoError(err)
		suite.True(expected.Equal(key), "permutation %v", p)
	})
}

func (suite *ResolverTestSuite) TestResolveDefaultNamingStrategy() {
	key, err := Resolve([]*KeyColumn{
		suite.column("UserID", 0, Partitioned),
		suite.column("CreatedAt", 0, Clustered),
	}, nil)
	suite.Require().NoError(err)
	suite.Equal([]Identifier{"user_id", "created_at"}, key.ColumnNames())

	upper := NamingStrategyFunc(func(f FieldIdentity) Identifier {
		return Identifier("X_" + f.Name)
	})
	key, err = Resolve([]*KeyColumn{
		suite.column("UserID", 0, Partitioned),
		suite.column("CreatedAt", 0, Clustered, ColumnName("ts")),
	}, upper)
	suite.Require().NoError(err)
	suite.Equal([]Identifier{"X_UserID", "ts"}, key.ColumnNames())
}

func (suite *ResolverTestSuite) TestResolvePartitionOrderingIgnored() {
	key, err := Resolve([]*KeyColumn{
		suite.column("A", 0, Partitioned, ColumnOrdering(Descending)),
	}, nil)
	suite.Require().NoError(err)
	suite.Equal(Ascending, key.PartitionColumns()[0].Ordering)
	suite.False(key.IsComposite())
}

func (suite *ResolverTestSuite) TestResolveCarriesAttributes() {
	key, err := Resolve([]*KeyColumn{
		suite.column("A", 0, Partitioned,
			ColumnName("Mixed"), ColumnForceQuote(true), ColumnComment("tenant")),
	}, nil)
	suite.Require().NoError(err)
	c := key.PartitionColumns()[0]
	suite.True(c.ForceQuote)
	suite.Equal("tenant", c.Comment)
	suite.Equal(Identifier("Mixed"), c.Name)
}

func (suite *ResolverTestSuite) TestResolveInvalidInput() {
	_, err := Resolve([]*KeyColumn{nil}, nil)
	var invalid *InvalidDescriptorError
	suite.True(errors.As(err, &invalid))

	// the same descriptor twice is a single column
	c := suite.column("A", 0, Partitioned)
	key, err := Resolve([]*KeyColumn{c, c}, nil)
	suite.NoError(err)
	suite.Len(key.Columns(), 1)
}

func (suite *ResolverTestSuite) TestCompositeKeyAccessorsReturnCopies() {
	key, err := Resolve(suite.eventColumns(), nil)
	suite.Require().NoError(err)

	cols := key.ClusterColumns()
	cols[0].Name = "changed"
	suite.Equal(Identifier("created_at"), key.ClusterColumns()[0].Name)

	all := key.Columns()
	all[0].Name = "changed"
	suite.Equal(Identifier("user_id"), key.PartitionColumns()[0].Name)
}

func (suite *ResolverTestSuite) TestCompositeKeyEqual() {
	a, err := Resolve(suite.eventColumns(), nil)
	suite.Require().NoError(err)
	b, err := Resolve([]*KeyColumn{
		suite.column("UserID", 0, Partitioned, ColumnName("user_id")),
	}, nil)
	suite.Require().NoError(err)

	suite.True(a.Equal(a))
	suite.False(a.Equal(b))
	suite.False(a.Equal(nil))
	suite.True((*CompositeKey)(nil).Equal(nil))
}

func (suite *ResolverTestSuite) TestCompositeKeyPrimaryKey() {
	key, err := Resolve(suite.eventColumns(), nil)
	suite.Require().NoError(err)

	pk := key.PrimaryKey()
	suite.Equal([]string{"user_id"}, pk.PartitionKeys)
	suite.Len(pk.ClusteringKeys, 2)
	suite.Equal("created_at", pk.ClusteringKeys[0].Name)
	suite.True(pk.ClusteringKeys[0].Descending)
	suite.Equal("event_id", pk.ClusteringKeys[1].Name)
	suite.False(pk.ClusteringKeys[1].Descending)
}

func (suite *ResolverTestSuite) TestResolveConcurrent() {
	columns := suite.eventColumns()
	expected, err := Resolve(columns, nil)
	suite.Require().NoError(err)

	var wg sync.WaitGroup
	keys := make([]*CompositeKey, 32)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], _ = Resolve(columns, DefaultNamingStrategy)
		}(i)
	}
	wg.Wait()
	for _, k := range keys {
		suite.True(expected.Equal(k))
	}
}

func permute(columns []*KeyColumn, f func([]*KeyColumn)) {
	var rec func(int)
	rec = func(i int) {
		if i == len(columns) {
			f(append([]*KeyColumn(nil), columns...))
			return
		}
		for j := i; j < len(columns); j++ {
			columns[i], columns[j] = columns[j], columns[i]
			rec(i + 1)
			columns[i], columns[j] = columns[j], columns[i]
		}
	}
	rec(0)
}
