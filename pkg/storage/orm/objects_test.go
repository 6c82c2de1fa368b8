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
	"time"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"
)

// ValidObject declares its key with the cassandra tag
type ValidObject struct {
	base.Object `cassandra:"name=valid_object, primaryKey=((id), name)"`
	ID          uint64 `column:"name=id"`
	Name        string `column:"name=name"`
	Data        string `column:"name=data"`
}

// EventKey is a composite key class
type EventKey struct {
	UserID    string    `keyColumn:"ordinal=0, type=partitioned"`
	CreatedAt time.Time `keyColumn:"ordinal=0, type=clustered, ordering=desc"`
	EventID   string    `keyColumn:"ordinal=1, type=clustered, comment='event, uuid'"`
}

// Event uses EventKey as its primary key
type Event struct {
	base.Object `cassandra:"name=events"`
	Key         EventKey `primaryKey:""`
	Payload     string   `column:"name=payload"`
	Region      string   `column:""`
}

// Annotated derives its table comment from its own fields
type Annotated struct {
	base.Object `cassandra:"name=annotated, primaryKey=((id))"`
	ID          string `column:"name=id"`
	Note        string `column:"name=note"`
}

func (a *Annotated) TableOptions() map[TableOption]interface{} {
	return map[TableOption]interface{}{TableOptionComment: "note=" + a.Note}
}

func (e *Event) TableOptions() map[TableOption]interface{} {
	return map[TableOption]interface{}{
		TableOptionComment:        "user events",
		TableOptionGcGraceSeconds: 3600,
	}
}

// Reading declares key columns inline
type Reading struct {
	base.Object `cassandra:"name=readings, forceQuote"`
	SensorID    string  `keyColumn:"ordinal=0, type=partitioned, name=SensorId, forceQuote=true"`
	Day         string  `keyColumn:"ordinal=1, type=partitioned"`
	TakenAt     int64   `keyColumn:"ordinal=0, type=clustered"`
	Value       float64 `column:"name=value"`
	Ignored     string  `column:"-"`
	cached      bool
}

// Host has a single key column
type Host struct {
	base.Object `cassandra:"name=hosts"`
	Hostname    string `primaryKey:"name=hostname"`
	State       string `column:"name=state"`
}

// Task has an optional clustering column
type Task struct {
	base.Object `cassandra:"name=tasks, primaryKey=((job_id), instance_id)"`
	JobID       *base.OptionalString `column:"name=job_id"`
	InstanceID  *base.OptionalUInt64 `column:"name=instance_id"`
	State       string               `column:"name=state"`
}

// Untagged has no table name, it is derived from the type name
type Untagged struct {
	base.Object `cassandra:""`
	Key         struct {
		AccountID string `keyColumn:"ordinal=3, type=partitioned"`
	} `primaryKey:""`
	DisplayName string `column:""`
}

// NoKey declares no primary key
type NoKey struct {
	base.Object `cassandra:"name=no_key"`
	Data        string `column:"name=data"`
}

// ClusteredOnlyKey has no partition column
type ClusteredOnlyKey struct {
	base.Object `cassandra:"name=clustered_only"`
	Key         struct {
		X string `keyColumn:"ordinal=0, type=clustered"`
	} `primaryKey:""`
}

// DuplicateOrdinalKey has two partition columns with ordinal 0
type DuplicateOrdinalKey struct {
	base.Object `cassandra:"name=duplicate_ordinal"`
	A           string `keyColumn:"ordinal=0, type=partitioned"`
	B           string `keyColumn:"ordinal=0, type=partitioned"`
}

// DuplicateKeyName has two key columns which only differ by case
type DuplicateKeyName struct {
	base.Object `cassandra:"name=duplicate_key_name"`
	A           string `keyColumn:"ordinal=0, type=partitioned, name=Id"`
	B           string `keyColumn:"ordinal=0, type=clustered, name=ID"`
}

// DuplicateColumn has a regular column named like a key column
type DuplicateColumn struct {
	base.Object `cassandra:"name=duplicate_column"`
	ID          string `primaryKey:"name=id"`
	Other       string `column:"name=ID"`
}

// TwoKeyStyles declares its key twice
type TwoKeyStyles struct {
	base.Object `cassandra:"name=two_key_styles, primaryKey=((id))"`
	Key         EventKey `primaryKey:""`
	ID          string   `column:"name=id"`
}

// MissingColumnTag has a field without orm tag
type MissingColumnTag struct {
	base.Object `cassandra:"name=missing_column_tag, primaryKey=((id))"`
	ID          string `column:"name=id"`
	Data        string
}

// MissingObjectTag has no cassandra tag
type MissingObjectTag struct {
	base.Object `randomstring:"name=missing_object_tag, primaryKey=((id))"`
	ID          string `column:"name=id"`
}

// UnknownKeyColumn references a column it does not declare
type UnknownKeyColumn struct {
	base.Object `cassandra:"name=unknown_key_column, primaryKey=((id), name)"`
	ID          string `column:"name=id"`
}

// EmptyKey has an empty primary key
type EmptyKey struct {
	base.Object `cassandra:"name=empty_key, primaryKey=()"`
	ID          string `column:"name=id"`
}

// UntaggedKeyField has a key class field without keyColumn tag
type UntaggedKeyField struct {
	base.Object `cassandra:"name=untagged_key_field"`
	Key         struct {
		A string `keyColumn:"ordinal=0, type=partitioned"`
		B string
	} `primaryKey:""`
}

// BadOrdinal carries a malformed ordinal
type BadOrdinal struct {
	base.Object `cassandra:"name=bad_ordinal"`
	A           string `keyColumn:"ordinal=first, type=partitioned"`
}

// MissingOrdinal carries no ordinal
type MissingOrdinal struct {
	base.Object `cassandra:"name=missing_ordinal"`
	A           string `keyColumn:"type=partitioned"`
}
