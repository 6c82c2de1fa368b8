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

package base

import (
	"fmt"
	"reflect"
)

// Optional is implemented by column types which may be left unset. Unset
// columns are left out of rows, so an object with unset clustering columns
// addresses its whole partition.
type Optional interface {
	// Raw returns the value understood by the DB layer
	Raw() interface{}
}

// OptionalString type can be used for primary key of type string
// to be evaluated as either nil or some string value
// different than empty string
type OptionalString struct {
	Value string
}

// NewOptionalString returns either new *OptionalString or nil
func NewOptionalString(v interface{}) *OptionalString {
	s, ok := v.(string)
	if ok && len(s) > 0 {
		return &OptionalString{Value: s}
	}
	return nil
}

// String for *OptionalString type
func (s *OptionalString) String() string {
	return s.Value
}

// Raw implements Optional.
func (s *OptionalString) Raw() interface{} {
	return s.Value
}

// OptionalUInt64 type can be used for primary key of type uint64
// to be evaluated as either nil or some uint64 value
type OptionalUInt64 struct {
	Value uint64
}

// NewOptionalUInt64 returns either new *OptionalUInt64 or nil
func NewOptionalUInt64(v interface{}) *OptionalUInt64 {
	if u, ok := v.(uint64); ok {
		return &OptionalUInt64{Value: u}
	}
	return nil
}

func (u *OptionalUInt64) String() string {
	return fmt.Sprintf("%d", u.Value)
}

// Raw implements Optional.
func (u *OptionalUInt64) Raw() interface{} {
	return u.Value
}

var (
	_optionalStringType = reflect.TypeOf(&OptionalString{})
	_optionalUInt64Type = reflect.TypeOf(&OptionalUInt64{})
)

// IsOptionalType returns whether t is one of the optional column types.
func IsOptionalType(t reflect.Type) bool {
	return t == _optionalStringType || t == _optionalUInt64Type
}

// RawType returns the type stored in the DB for a field of type t.
func RawType(t reflect.Type) reflect.Type {
	switch t {
	case _optionalStringType:
		return reflect.TypeOf("")
	case _optionalUInt64Type:
		return reflect.TypeOf(uint64(0))
	default:
		return t
	}
}

// RawValue returns the value handed to the DB layer for a field value. set
// is false for unset optional values.
func RawValue(v reflect.Value) (raw interface{}, set bool) {
	if !IsOptionalType(v.Type()) {
		return v.Interface(), true
	}
	if v.IsNil() {
		return nil, false
	}
	return v.Interface().(Optional).Raw(), true
}

// OptionalFromRaw builds a value of the optional type t out of a value read
// from the DB.
func OptionalFromRaw(t reflect.Type, raw interface{}) (reflect.Value, error) {
	switch t {
	case _optionalStringType:
		if s, ok := raw.(string); ok {
			return reflect.ValueOf(&OptionalString{Value: s}), nil
		}
	case _optionalUInt64Type:
		switch u := raw.(type) {
		case uint64:
			return reflect.ValueOf(&OptionalUInt64{Value: u}), nil
		case int64:
			// bigint columns are read as int64
			return reflect.ValueOf(&OptionalUInt64{Value: uint64(u)}), nil
		}
	default:
		return reflect.Value{}, fmt.Errorf("%s is not an optional type", t)
	}
	return reflect.Value{}, fmt.Errorf("cannot read %T into %s", raw, t)
}
