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

	"github.com/uber/cqlmapping/pkg/storage/objects/base"
)

//go:generate mockgen -destination=mocks/mock_connector.go -package=mocks github.com/uber/cqlmapping/pkg/storage/orm Connector

// Connector is the interface that must be implemented for a backend
// service. Connectors build and execute statements, the orm only hands them
// the table definition and rows.
type Connector interface {
	// CreateIfNotExists creates a row in the DB for the base object if it
	// doesn't already exist
	CreateIfNotExists(
		ctx context.Context,
		e *base.Definition,
		values []base.Column,
	) error

	// Create creates a row in the DB for the base object
	Create(ctx context.Context, e *base.Definition, values []base.Column) error

	// Get fetches a row by primary key of base object
	Get(
		ctx context.Context,
		e *base.Definition,
		keys []base.Column,
		colNamesToRead ...string,
	) (map[string]interface{}, error)

	// GetAll fetches a list of base objects for the partition key
	// and the given clustering keys
	GetAll(
		ctx context.Context,
		e *base.Definition,
		keys []base.Column,
	) ([]map[string]interface{}, error)

	// Update updates a row in the DB for the base object
	Update(
		ctx context.Context,
		e *base.Definition,
		values []base.Column,
		keys []base.Column,
	) error

	// Delete deletes a row from the DB for the base object
	Delete(ctx context.Context, e *base.Definition, keys []base.Column) error
}
