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
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
	"go.uber.org/yarpc/yarpcerrors"
)

type MappingContextTestSuite struct {
	suite.Suite

	scope   tally.TestScope
	mapping *MappingContext
}

func TestMappingContextTestSuite(t *testing.T) {
	suite.Run(t, new(MappingContextTestSuite))
}

func (suite *MappingContextTestSuite) SetupTest() {
	suite.scope = tally.NewTestScope("", nil)
	suite.mapping = NewMappingContext(WithMetricsScope(suite.scope))
}

// counter returns the value of the counter name with exactly the given tags.
func (suite *MappingContextTestSuite) counter(name string, tags map[string]string) int64 {
	for _, c := range suite.scope.Snapshot().Counters() {
		if c.Name() != name || len(c.Tags()) != len(tags) {
			continue
		}
		match := true
		for k, v := range tags {
			if c.Tags()[k] != v {
				match = false
			}
		}
		if match {
			return c.Value()
		}
	}
	return 0
}

func (suite *MappingContextTestSuite) TestRegisterCachesEntity() {
	e1, err := suite.mapping.Register(&Event{})
	suite.NoError(err)
	e2, err := suite.mapping.Register(&Event{Payload: "ignored"})
	suite.NoError(err)

	suite.Same(e1, e2)
	suite.Equal(int64(1), suite.counter("mapping.resolve_success", nil))
	suite.Equal(int64(1), suite.counter("mapping.cache_hit", nil))

	e3, err := suite.mapping.Entity(&Event{})
	suite.NoError(err)
	suite.Same(e1, e3)
}

func (suite *MappingContextTestSuite) TestRegisterIgnoresOptionsOnceCached() {
	_, err := suite.mapping.Register(&Event{})
	suite.NoError(err)
	e, err := suite.mapping.Register(&Event{}, WithTableName("other"))
	suite.NoError(err)
	suite.Equal(Identifier("events"), e.TableName())
}

func (suite *MappingContextTestSuite) TestRegisterConcurrent() {
	const n = 50
	var wg sync.WaitGroup
	entities := make([]*Entity, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entities[i], errs[i] = suite.mapping.Register(&Event{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		suite.NoError(errs[i])
		suite.Same(entities[0], entities[i])
	}
	suite.Equal(int64(1), suite.counter("mapping.resolve_success", nil))
	suite.Equal(int64(n-1), suite.counter("mapping.cache_hit", nil))
}

func (suite *MappingContextTestSuite) TestRegisterCachesFailure() {
	_, err1 := suite.mapping.Register(&NoKey{})
	_, err2 := suite.mapping.Register(&NoKey{})

	suite.Equal(&MissingPartitionKeyError{Owner: reflect.TypeOf(NoKey{}).String()}, err1)
	suite.True(err1 == err2)
	suite.Equal(int64(1), suite.counter("mapping.resolve_fail",
		map[string]string{"error": "missing_partition_key"}))
	suite.Equal(int64(0), suite.counter("mapping.resolve_success", nil))

	_, err := suite.mapping.Entity(&NoKey{})
	var missing *MissingPartitionKeyError
	suite.True(errors.As(err, &missing))
	suite.True(IsPermanent(err))
}

type panicStrategy struct{}

func (panicStrategy) FieldNameToColumnName(FieldIdentity) Identifier {
	panic("no names today")
}

func (suite *MappingContextTestSuite) TestRegisterStrategyPanics() {
	_, err1 := suite.mapping.Register(&Untagged{}, WithNamingStrategy(panicStrategy{}))
	var object *InvalidObjectError
	suite.Require().True(errors.As(err1, &object))
	suite.Contains(object.Reason, "no names today")

	e, err2 := suite.mapping.Register(&Untagged{})
	suite.Nil(e)
	suite.True(err1 == err2)

	e, err := suite.mapping.Entity(&Untagged{})
	suite.Nil(e)
	suite.Error(err)
	suite.Equal(int64(1), suite.counter("mapping.resolve_fail",
		map[string]string{"error": "invalid_object"}))
}

func (suite *MappingContextTestSuite) TestRegisterAll() {
	err := suite.mapping.RegisterAll(
		&Event{}, &NoKey{}, &ValidObject{}, &DuplicateOrdinalKey{})
	suite.Error(err)

	merr, ok := err.(*multierror.Error)
	suite.Require().True(ok)
	suite.Len(merr.Errors, 2)
	suite.True(IsPermanent(merr.Errors[0]))
	suite.Equal(int64(1), suite.counter("mapping.resolve_fail",
		map[string]string{"error": "duplicate_ordinal"}))

	suite.NoError(suite.mapping.RegisterAll(&Event{}, &ValidObject{}))
	suite.NoError(suite.mapping.RegisterAll())
}

func (suite *MappingContextTestSuite) TestEntityNotRegistered() {
	_, err := suite.mapping.Entity(&Host{})
	suite.True(yarpcerrors.IsNotFound(err))

	_, err = suite.mapping.EntityOf(reflect.TypeOf(Host{}))
	suite.True(yarpcerrors.IsNotFound(err))

	_, err = suite.mapping.Entity(nil)
	var invalid *InvalidObjectError
	suite.True(errors.As(err, &invalid))
}

func (suite *MappingContextTestSuite) TestEntities() {
	suite.NoError(suite.mapping.RegisterAll(&ValidObject{}, &Event{}, &Host{}))
	_, err := suite.mapping.Register(&NoKey{})
	suite.Error(err)

	var names []Identifier
	for _, e := range suite.mapping.Entities() {
		names = append(names, e.TableName())
	}
	suite.Equal([]Identifier{"events", "hosts", "valid_object"}, names)
}

func (suite *MappingContextTestSuite) TestReset() {
	before, err := suite.mapping.Register(&Event{})
	suite.NoError(err)
	suite.Equal(int64(0), suite.mapping.Generation())

	suite.mapping.Reset()
	suite.Equal(int64(1), suite.mapping.Generation())
	suite.Empty(suite.mapping.Entities())
	suite.Equal(int64(1), suite.counter("mapping.reset", nil))

	_, err = suite.mapping.Entity(&Event{})
	suite.True(yarpcerrors.IsNotFound(err))

	after, err := suite.mapping.Register(&Event{})
	suite.NoError(err)
	suite.NotSame(before, after)
	suite.True(before.PrimaryKey().Equal(after.PrimaryKey()))
	// entities handed out before the reset remain usable
	suite.Equal(Identifier("events"), before.TableName())
	suite.Equal(int64(2), suite.counter("mapping.resolve_success", nil))
}

func (suite *MappingContextTestSuite) TestDefaultNamingStrategy() {
	mapping := NewMappingContext(WithDefaultNamingStrategy(
		NamingStrategyFunc(func(f FieldIdentity) Identifier {
			return Identifier("x_" + toSnakeCase(f.Name))
		})))
	e, err := mapping.Register(&Host{})
	suite.NoError(err)
	suite.Equal([]Identifier{"hostname", "state"}, columnNames(e.Columns()))

	e, err = mapping.Register(&Untagged{})
	suite.NoError(err)
	suite.Equal([]Identifier{"x_account_id", "x_display_name"}, columnNames(e.Columns()))
}
