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
	"reflect"
	"sort"
	"sync"

	"github.com/uber/cqlmapping/pkg/storage/objects/base"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"go.uber.org/atomic"
	"go.uber.org/yarpc/yarpcerrors"
)

// MappingContext holds the mapping metadata of all registered storage
// objects. Each type is scanned and its key resolved at most once, even
// under concurrent first registration. The result, success or failure, is
// kept until Reset.
type MappingContext struct {
	sync.Mutex

	entries    map[reflect.Type]*entityEntry
	generation *atomic.Int64
	strategy   NamingStrategy
	metrics    *contextMetrics
	logger     *log.Entry
}

// entityEntry is resolved by the goroutine which created it, everyone else
// waits on ready.
type entityEntry struct {
	ready  chan struct{}
	entity *Entity
	err    error
}

type contextMetrics struct {
	scope          tally.Scope
	resolveSuccess tally.Counter
	cacheHit       tally.Counter
	reset          tally.Counter
}

func newContextMetrics(scope tally.Scope) *contextMetrics {
	s := scope.SubScope("mapping")
	return &contextMetrics{
		scope:          s,
		resolveSuccess: s.Counter("resolve_success"),
		cacheHit:       s.Counter("cache_hit"),
		reset:          s.Counter("reset"),
	}
}

func (m *contextMetrics) resolveFail(err error) {
	m.scope.Tagged(map[string]string{"error": errorKind(err)}).
		Counter("resolve_fail").Inc(1)
}

// ContextOption configures a MappingContext.
type ContextOption func(*MappingContext)

// WithDefaultNamingStrategy sets the naming strategy of entities registered
// without WithNamingStrategy.
func WithDefaultNamingStrategy(s NamingStrategy) ContextOption {
	return func(c *MappingContext) {
		c.strategy = s
	}
}

// WithMetricsScope sets the scope mapping metrics are reported to.
func WithMetricsScope(scope tally.Scope) ContextOption {
	return func(c *MappingContext) {
		c.metrics = newContextMetrics(scope)
	}
}

// WithLogger sets the logger mapping events are logged to.
func WithLogger(logger *log.Entry) ContextOption {
	return func(c *MappingContext) {
		c.logger = logger
	}
}

// NewMappingContext returns an empty mapping context.
func NewMappingContext(opts ...ContextOption) *MappingContext {
	c := &MappingContext{
		entries:    make(map[reflect.Type]*entityEntry),
		generation: atomic.NewInt64(0),
		strategy:   DefaultNamingStrategy,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newContextMetrics(tally.NoopScope)
	}
	if c.logger == nil {
		c.logger = log.NewEntry(log.StandardLogger())
	}
	return c
}

func objectType(obj base.Object) (reflect.Type, error) {
	t := reflect.TypeOf(obj)
	if t == nil {
		return nil, &InvalidObjectError{Type: "<nil>", Reason: "nil storage object"}
	}
	if t.Kind() != reflect.Ptr {
		return nil, &InvalidObjectError{
			Type:   t.String(),
			Reason: "storage objects must be pointers to structs",
		}
	}
	return t.Elem(), nil
}

// entry returns the entry of t, creating it if needed. created is true for
// the caller which must resolve the entry.
func (c *MappingContext) entry(t reflect.Type) (e *entityEntry, created bool) {
	c.Lock()
	defer c.Unlock()
	if e, ok := c.entries[t]; ok {
		return e, false
	}
	e = &entityEntry{ready: make(chan struct{})}
	c.entries[t] = e
	return e, true
}

// Register scans obj and resolves its primary key. Registering a type again
// returns the cached entity, or the cached error, and ignores opts.
func (c *MappingContext) Register(obj base.Object, opts ...EntityOption) (*Entity, error) {
	t, err := objectType(obj)
	if err != nil {
		return nil, err
	}

	entry, created := c.entry(t)
	if !created {
		c.metrics.cacheHit.Inc(1)
		<-entry.ready
		return entry.entity, entry.err
	}
	defer close(entry.ready)

	cfg := entityConfig{strategy: c.strategy}
	for _, opt := range opts {
		opt(&cfg)
	}
	entry.entity, entry.err = resolveEntity(t, cfg)
	if entry.err != nil {
		c.metrics.resolveFail(entry.err)
		c.logger.WithFields(log.Fields{
			"type":  t.String(),
			"error": entry.err,
		}).Warn("failed to resolve storage object mapping")
		return nil, entry.err
	}
	c.metrics.resolveSuccess.Inc(1)
	c.logger.WithFields(log.Fields{
		"type":        t.String(),
		"table":       entry.entity.TableName(),
		"primary_key": entry.entity.PrimaryKey().String(),
		"generation":  c.generation.Load(),
	}).Debug("storage object mapping resolved")
	return entry.entity, nil
}

// resolveEntity turns a panic of a user strategy or TableOptions method into
// an error, so waiters never see an entry without entity and error.
func resolveEntity(t reflect.Type, cfg entityConfig) (e *Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = &InvalidObjectError{
				Type:   t.String(),
				Reason: fmt.Sprintf("panic while resolving mapping: %v", r),
			}
		}
	}()
	return newEntity(t, cfg)
}

// RegisterAll registers every object and returns all failures together.
func (c *MappingContext) RegisterAll(objs ...base.Object) error {
	var errs *multierror.Error
	for _, obj := range objs {
		if _, err := c.Register(obj); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Entity returns the entity of a registered storage object.
func (c *MappingContext) Entity(obj base.Object) (*Entity, error) {
	t, err := objectType(obj)
	if err != nil {
		return nil, err
	}
	return c.EntityOf(t)
}

// EntityOf returns the entity registered for the struct type t.
func (c *MappingContext) EntityOf(t reflect.Type) (*Entity, error) {
	c.Lock()
	entry, ok := c.entries[t]
	c.Unlock()
	if !ok {
		return nil, yarpcerrors.NotFoundErrorf(
			"Table not found for base: %q", t.Name())
	}
	// wait for a concurrent registration to finish
	<-entry.ready
	if entry.err != nil {
		return nil, errors.Wrapf(entry.err, "storage object %s", t.Name())
	}
	return entry.entity, nil
}

// Entities returns the successfully registered entities sorted by table
// name.
func (c *MappingContext) Entities() []*Entity {
	c.Lock()
	entries := make([]*entityEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.Unlock()

	var entities []*Entity
	for _, e := range entries {
		<-e.ready
		if e.err == nil && e.entity != nil {
			entities = append(entities, e.entity)
		}
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].TableName() < entities[j].TableName()
	})
	return entities
}

// Generation returns how many times the context has been reset.
func (c *MappingContext) Generation() int64 {
	return c.generation.Load()
}

// Reset drops all cached entities. Entities handed out before remain
// valid but are no longer returned by the context.
func (c *MappingContext) Reset() {
	c.Lock()
	c.entries = make(map[reflect.Type]*entityEntry)
	c.Unlock()
	gen := c.generation.Inc()
	c.metrics.reset.Inc(1)
	c.logger.WithField("generation", gen).Info("mapping context reset")
}
