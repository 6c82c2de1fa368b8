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
	"testing"
	"time"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"

	"github.com/stretchr/testify/suite"
	"go.uber.org/yarpc/yarpcerrors"
)

var (
	testRow = []base.Column{
		{Name: "id", Value: uint64(1)},
		{Name: "name", Value: "test"},
		{Name: "data", Value: "testdata"},
	}
	keyRow = []base.Column{
		{Name: "id", Value: uint64(1)},
		{Name: "name", Value: "test"},
	}
)

type TableTestSuite struct {
	suite.Suite

	mapping *MappingContext
}

func TestTableTestSuite(t *testing.T) {
	suite.Run(t, new(TableTestSuite))
}

func (suite *TableTestSuite) SetupTest() {
	suite.mapping = NewMappingContext()
}

func (suite *TableTestSuite) table(obj base.Object) *Table {
	e, err := suite.mapping.Register(obj)
	suite.Require().NoError(err)
	return NewTable(e)
}

// ensureRowsEqual checks both rows have the same columns, in any order
func (suite *TableTestSuite) ensureRowsEqual(row1, row2 []base.Column) {
	suite.Len(row1, len(row2))
	m := make(map[string]interface{}, len(row1))
	for _, c := range row1 {
		m[c.Name] = c.Value
	}
	for _, c := range row2 {
		suite.Contains(m, c.Name)
		suite.Equal(c.Value, m[c.Name], c.Name)
	}
}

func (suite *TableTestSuite) TestGetRowFromObject() {
	e := &ValidObject{
		ID:   uint64(1),
		Name: "test",
		Data: "testdata",
	}
	table := suite.table(e)

	suite.ensureRowsEqual(table.GetRowFromObject(e), testRow)
	suite.ensureRowsEqual(table.GetRowFromObject(e, "ID", "Name"), keyRow)
	suite.Equal("valid_object", table.Name)
	suite.Same(table.Entity(), table.entity)
}

func (suite *TableTestSuite) TestGetKeyRowFromObject() {
	e := &ValidObject{
		ID:   uint64(1),
		Name: "test",
		Data: "junk",
	}
	table := suite.table(e)

	keyRow, err := table.GetKeyRowFromObject(e)
	suite.Require().NoError(err)
	suite.Equal(e.ID, keyRow[0].Value)
	suite.Equal(e.Name, keyRow[1].Value)
	suite.Equal(len(keyRow), 2)

	partitionRow, err := table.GetPartitionKeyRowFromObject(e)
	suite.NoError(err)
	suite.Equal([]base.Column{{Name: "id", Value: e.ID}}, partitionRow)

	suite.Equal([]base.Column{{Name: "data", Value: "junk"}},
		table.GetValueRowFromObject(e))
}

func (suite *TableTestSuite) TestCompositeKeyRows() {
	created := time.Unix(1000, 0)
	e := &Event{
		Key: EventKey{
			UserID:    "u1",
			CreatedAt: created,
			EventID:   "e1",
		},
		Payload: "{}",
		Region:  "dca",
	}
	table := suite.table(e)

	keyRow, err := table.GetKeyRowFromObject(e)
	suite.NoError(err)
	suite.Equal([]base.Column{
		{Name: "user_id", Value: "u1"},
		{Name: "created_at", Value: created},
		{Name: "event_id", Value: "e1"},
	}, keyRow)
	partitionRow, err := table.GetPartitionKeyRowFromObject(e)
	suite.NoError(err)
	suite.Equal([]base.Column{{Name: "user_id", Value: "u1"}}, partitionRow)

	// naming the key struct field selects all of its columns
	suite.Len(table.GetRowFromObject(e, "Key"), 3)
	suite.Equal([]base.Column{{Name: "event_id", Value: "e1"}},
		table.GetRowFromObject(e, "EventID"))
	suite.Equal([]base.Column{
		{Name: "payload", Value: "{}"},
		{Name: "region", Value: "dca"},
	}, table.GetValueRowFromObject(e))
	suite.Equal([]base.Column{{Name: "region", Value: "dca"}},
		table.GetValueRowFromObject(e, "Region", "Key"))
}

func (suite *TableTestSuite) TestKeyRowOrdinalOrder() {
	// key columns are declared out of ordinal order
	e := &Reading{SensorID: "s1", Day: "2019-01-01", TakenAt: 42, Value: 1.5}
	table := suite.table(e)

	keyRow, err := table.GetKeyRowFromObject(e)
	suite.NoError(err)
	suite.Equal([]base.Column{
		{Name: "SensorId", Value: "s1"},
		{Name: "day", Value: "2019-01-01"},
		{Name: "taken_at", Value: int64(42)},
	}, keyRow)
	suite.ensureRowsEqual(table.GetRowFromObject(e), []base.Column{
		{Name: "SensorId", Value: "s1"},
		{Name: "day", Value: "2019-01-01"},
		{Name: "taken_at", Value: int64(42)},
		{Name: "value", Value: 1.5},
	})
}

func (suite *TableTestSuite) TestOptionalKeyColumns() {
	e := &Task{
		JobID: base.NewOptionalString("job"),
		State: "RUNNING",
	}
	table := suite.table(e)

	// an unset clustering column is an incomplete primary key
	_, err := table.GetKeyRowFromObject(e)
	suite.True(yarpcerrors.IsInvalidArgument(err))
	suite.Contains(err.Error(), "instance_id")

	partitionRow, err := table.GetPartitionKeyRowFromObject(e)
	suite.NoError(err)
	suite.Equal([]base.Column{{Name: "job_id", Value: "job"}}, partitionRow)

	e.InstanceID = base.NewOptionalUInt64(uint64(3))
	keyRow, err := table.GetKeyRowFromObject(e)
	suite.NoError(err)
	suite.Equal([]base.Column{
		{Name: "job_id", Value: "job"},
		{Name: "instance_id", Value: uint64(3)},
	}, keyRow)

	_, err = table.GetPartitionKeyRowFromObject(&Task{})
	suite.True(yarpcerrors.IsInvalidArgument(err))
}

func (suite *TableTestSuite) TestColumnNames() {
	table := suite.table(&Task{})
	suite.ElementsMatch([]string{"job_id", "instance_id", "state"}, table.ColumnNames())
	// unset optional fields are still named
	suite.ElementsMatch([]string{"instance_id", "state"},
		table.ColumnNames("InstanceID", "State"))
	suite.Empty(table.ColumnNames("Unknown"))

	suite.Len(suite.table(&Event{}).ColumnNames("Key"), 3)
}

func (suite *TableTestSuite) TestSetObjectFromRow() {
	table := suite.table(&ValidObject{})

	e := &ValidObject{}
	suite.NoError(table.SetObjectFromRow(e, map[string]interface{}{
		// bigint columns are read back as int64
		"id":      int64(1),
		"NAME":    "test",
		"data":    nil,
		"unknown": "skipped",
	}))
	suite.Equal(&ValidObject{ID: 1, Name: "test"}, e)

	err := table.SetObjectFromRow(e, map[string]interface{}{"id": "not a number"})
	suite.Error(err)

	// numbers are not converted into strings
	err = table.SetObjectFromRow(e, map[string]interface{}{"name": 65})
	suite.Error(err)
}

func (suite *TableTestSuite) TestSetObjectFromRowCompositeKey() {
	created := time.Unix(1000, 0)
	table := suite.table(&Event{})

	e := &Event{}
	suite.NoError(table.SetObjectFromRow(e, map[string]interface{}{
		"user_id":    "u1",
		"created_at": created,
		"event_id":   "e1",
		"payload":    "{}",
	}))
	suite.Equal(EventKey{UserID: "u1", CreatedAt: created, EventID: "e1"}, e.Key)
	suite.Equal("{}", e.Payload)
}

func (suite *TableTestSuite) TestSetObjectFromRowOptional() {
	table := suite.table(&Task{})

	e := &Task{}
	suite.NoError(table.SetObjectFromRow(e, map[string]interface{}{
		"job_id":      "job",
		"instance_id": int64(3),
		"state":       "RUNNING",
	}))
	suite.Equal(&Task{
		JobID:      &base.OptionalString{Value: "job"},
		InstanceID: &base.OptionalUInt64{Value: 3},
		State:      "RUNNING",
	}, e)

	suite.Error(table.SetObjectFromRow(e, map[string]interface{}{"job_id": 42}))
}
