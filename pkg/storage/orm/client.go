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
	"context"
	"reflect"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"

	"go.uber.org/yarpc/yarpcerrors"
)

// Client defines the methods to operate with storage objects
type Client interface {
	// CreateIfNotExists creates the storage object in the database if it
	// doesn't already exist
	CreateIfNotExists(ctx context.Context, e base.Object) error
	// Create creates the storage object in the database
	Create(ctx context.Context, e base.Object) error
	// Get gets the storage object from the database
	Get(ctx context.Context, e base.Object, fieldsToRead ...string) error
	// GetAll gets all rows of the partition key of the storage object
	GetAll(ctx context.Context, e base.Object) ([]map[string]interface{}, error)
	// Update updates the storage object in the database
	Update(ctx context.Context, e base.Object, fieldsToUpdate ...string) error
	// Delete deletes the storage object from the database
	Delete(ctx context.Context, e base.Object) error
}

type client struct {
	tables    map[reflect.Type]*Table
	connector Connector
}

// NewClient returns a new ORM client for the storage objects and connector
// provided. Objects are registered with mapping, a nil mapping uses a new
// MappingContext.
func NewClient(
	conn Connector,
	mapping *MappingContext,
	objects ...base.Object,
) (Client, error) {
	if mapping == nil {
		mapping = NewMappingContext()
	}
	if err := mapping.RegisterAll(objects...); err != nil {
		return nil, err
	}
	c := &client{
		tables:    make(map[reflect.Type]*Table, len(objects)),
		connector: conn,
	}
	for _, obj := range objects {
		e, err := mapping.Entity(obj)
		if err != nil {
			return nil, err
		}
		c.tables[e.Type()] = NewTable(e)
	}
	return c, nil
}

// getTable gets the Table that matches the storage object provided. Return
// an error when not found.
func (c *client) getTable(e base.Object) (*Table, error) {
	t := reflect.TypeOf(e)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	table, ok := c.tables[t]
	if !ok {
		name := "<nil>"
		if t != nil {
			name = t.Name()
		}
		return nil, yarpcerrors.NotFoundErrorf(
			"Table not found for base: %q", name)
	}
	return table, nil
}

// CreateIfNotExists creates the storage object in the database if it
// doesn't already exist
func (c *client) CreateIfNotExists(ctx context.Context, e base.Object) error {
	table, err := c.getTable(e)
	if err != nil {
		return err
	}
	row := table.GetRowFromObject(e)
	return c.connector.CreateIfNotExists(ctx, &table.Definition, row)
}

// Create creates the storage object in the database
func (c *client) Create(ctx context.Context, e base.Object) error {
	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// translate the storage object into a row (list of column)
	row := table.GetRowFromObject(e)

	// Tell the connector to create a row in the DB using this row
	return c.connector.Create(ctx, &table.Definition, row)
}

// Get fetches a storage object by primary key. The object provided must
// contain values for all components of its primary key for the operation to
// succeed.
func (c *client) Get(ctx context.Context, e base.Object, fieldsToRead ...string) error {
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// build a primary key row from storage object
	keyRow, err := table.GetKeyRowFromObject(e)
	if err != nil {
		return err
	}

	var colNamesToRead []string
	if len(fieldsToRead) > 0 {
		colNamesToRead = table.ColumnNames(fieldsToRead...)
		if len(colNamesToRead) == 0 {
			return yarpcerrors.InvalidArgumentErrorf(
				"no columns of %s match fields %v", table.Name, fieldsToRead)
		}
	}

	row, err := c.connector.Get(ctx, &table.Definition, keyRow, colNamesToRead...)
	if err != nil {
		return err
	}
	if row == nil {
		return yarpcerrors.NotFoundErrorf(
			"%s not found for key %v", table.Name, keyRow)
	}

	// build a storage object from the row
	return table.SetObjectFromRow(e, row)
}

// GetAll fetches all rows which share the partition key of e.
func (c *client) GetAll(ctx context.Context, e base.Object) ([]map[string]interface{}, error) {
	table, err := c.getTable(e)
	if err != nil {
		return nil, err
	}
	keyRow, err := table.GetPartitionKeyRowFromObject(e)
	if err != nil {
		return nil, err
	}
	return c.connector.GetAll(ctx, &table.Definition, keyRow)
}

// Update writes the non key fields of e, or only fieldsToUpdate if given.
func (c *client) Update(ctx context.Context, e base.Object, fieldsToUpdate ...string) error {
	table, err := c.getTable(e)
	if err != nil {
		return err
	}
	row := table.GetValueRowFromObject(e, fieldsToUpdate...)
	if len(row) == 0 {
		return yarpcerrors.InvalidArgumentErrorf(
			"no columns to update for %s", table.Name)
	}
	keyRow, err := table.GetKeyRowFromObject(e)
	if err != nil {
		return err
	}
	return c.connector.Update(ctx, &table.Definition, row, keyRow)
}

// Delete deletes the storage object in the database
func (c *client) Delete(ctx context.Context, e base.Object) error {
	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// build a primary key row from storage object, a partial key would
	// delete more than e
	keyRow, err := table.GetKeyRowFromObject(e)
	if err != nil {
		return err
	}

	// Tell the connector to delete the row in the DB using this keyRow
	return c.connector.Delete(ctx, &table.Definition, keyRow)
}
