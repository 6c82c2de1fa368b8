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

	"github.com/pkg/errors"
)

// InvalidDescriptorError is returned when a key column descriptor is
// malformed, e.g. it declares a negative ordinal.
type InvalidDescriptorError struct {
	Field  string
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid key column %q: %s", e.Field, e.Reason)
}

// IsPermanent marks the error as a configuration defect.
func (e *InvalidDescriptorError) IsPermanent() bool { return true }

// MissingPartitionKeyError is returned when a key declares no partitioned
// column.
type MissingPartitionKeyError struct {
	Owner string
}

func (e *MissingPartitionKeyError) Error() string {
	if e.Owner == "" {
		return "primary key declares no partition key column"
	}
	return fmt.Sprintf("primary key of %s declares no partition key column", e.Owner)
}

// IsPermanent marks the error as a configuration defect.
func (e *MissingPartitionKeyError) IsPermanent() bool { return true }

// DuplicateOrdinalError is returned when two columns of the same key type
// claim the same ordinal.
type DuplicateOrdinalError struct {
	KeyType KeyType
	Ordinal int
}

func (e *DuplicateOrdinalError) Error() string {
	return fmt.Sprintf("duplicate ordinal %d among %s key columns",
		e.Ordinal, e.KeyType)
}

// IsPermanent marks the error as a configuration defect.
func (e *DuplicateOrdinalError) IsPermanent() bool { return true }

// DuplicateColumnNameError is returned when two columns resolve to the same
// name ignoring case.
type DuplicateColumnNameError struct {
	Name Identifier
}

func (e *DuplicateColumnNameError) Error() string {
	return fmt.Sprintf("duplicate column name %q", e.Name.Normalized())
}

// IsPermanent marks the error as a configuration defect.
func (e *DuplicateColumnNameError) IsPermanent() bool { return true }

// InvalidObjectError is returned when a storage object cannot be mapped,
// e.g. it carries a malformed tag or declares its key twice.
type InvalidObjectError struct {
	Type   string
	Reason string
}

func (e *InvalidObjectError) Error() string {
	return fmt.Sprintf("invalid storage object %s: %s", e.Type, e.Reason)
}

// IsPermanent marks the error as a configuration defect.
func (e *InvalidObjectError) IsPermanent() bool { return true }

// IsPermanent returns true if err, or any error it wraps, is a mapping
// configuration defect that must not be retried.
func IsPermanent(err error) bool {
	var p interface{ IsPermanent() bool }
	return errors.As(err, &p) && p.IsPermanent()
}

// errorKind returns a metrics tag for a mapping error. Tags cannot contain
// the error message itself.
func errorKind(err error) string {
	var (
		invalid   *InvalidDescriptorError
		missing   *MissingPartitionKeyError
		ordinal   *DuplicateOrdinalError
		duplicate *DuplicateColumnNameError
		object    *InvalidObjectError
	)
	switch {
	case errors.As(err, &invalid):
		return "invalid_descriptor"
	case errors.As(err, &missing):
		return "missing_partition_key"
	case errors.As(err, &ordinal):
		return "duplicate_ordinal"
	case errors.As(err, &duplicate):
		return "duplicate_column_name"
	case errors.As(err, &object):
		return "invalid_object"
	default:
		return "invalid_mapping"
	}
}
