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
	"time"

	"github.com/uber/cqlmapping/pkg/storage/orm"

	"github.com/gocql/gocql"
	"github.com/hashicorp/go-multierror"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"go.uber.org/yarpc/yarpcerrors"
)

const _verifyOperation = "verify_primary_key"

// Verifier checks declared primary keys against a live keyspace. It only
// reads system_schema and never changes the schema.
type Verifier struct {
	reader   PrimaryKeyReader
	keyspace string

	scope        tally.Scope
	successScope tally.Scope
	failScope    tally.Scope
}

// NewVerifier returns a verifier reading keys of keyspace through reader.
func NewVerifier(reader PrimaryKeyReader, keyspace string, scope tally.Scope) *Verifier {
	storeScope := scope.SubScope("cql").Tagged(
		map[string]string{"store": keyspace})
	return &Verifier{
		reader:   reader,
		keyspace: keyspace,
		scope:    storeScope,
		successScope: storeScope.Tagged(
			map[string]string{"result": "success"}),
		failScope: storeScope.Tagged(
			map[string]string{"result": "fail"}),
	}
}

// NewSessionVerifier creates a session for config and returns a verifier of
// its keyspace.
func NewSessionVerifier(config *Config, scope tally.Scope) (*Verifier, *gocql.Session, error) {
	session, err := CreateStoreSession(config.CassandraConn, config.StoreName)
	if err != nil {
		return nil, nil, err
	}
	return NewVerifier(NewPrimaryKeyReader(session), config.StoreName, scope), session, nil
}

// Verify checks that the live table has the declared key. forceQuote tells
// whether the table name is case sensitive.
func (v *Verifier) Verify(
	ctx context.Context,
	table orm.Identifier,
	forceQuote bool,
	key *orm.CompositeKey,
) (err error) {
	name := StoredName(table, forceQuote)

	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		span := opentracing.StartSpan(_verifyOperation,
			opentracing.ChildOf(parent.Context()))
		span.SetTag("keyspace", v.keyspace)
		span.SetTag("table", name)
		defer func() {
			if err != nil {
				ext.Error.Set(span, true)
				span.LogKV("error", err.Error())
			}
			span.Finish()
		}()
		ctx = opentracing.ContextWithSpan(ctx, span)
	}

	start := time.Now()
	remote, err := v.reader.ReadPrimaryKey(ctx, v.keyspace, name)
	if err == nil {
		err = ComparePrimaryKey(name, key, remote)
	}
	if err != nil {
		sendCounters(v.failScope, name, _verifyOperation, err)
		log.WithFields(log.Fields{
			"keyspace": v.keyspace,
			"table":    name,
			"error":    err,
		}).Warn("primary key verification failed")
		return err
	}

	sendLatency(v.scope, name, _verifyOperation, time.Since(start))
	sendCounters(v.successScope, name, _verifyOperation, nil)
	log.WithFields(log.Fields{
		"keyspace":    v.keyspace,
		"table":       name,
		"primary_key": key.String(),
	}).Debug("primary key verified")
	return nil
}

// VerifyEntity checks the key of a registered storage object.
func (v *Verifier) VerifyEntity(ctx context.Context, e *orm.Entity) error {
	return v.Verify(ctx, e.TableName(), e.ForceQuote(), e.PrimaryKey())
}

// VerifyTables checks every resolved table and returns all failures
// together.
func (v *Verifier) VerifyTables(ctx context.Context, tables []*orm.ResolvedTable) error {
	var errs *multierror.Error
	for _, t := range tables {
		if err := v.Verify(ctx, t.Name, t.ForceQuote, t.Key); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// getErrorTag gets a error tag for metrics based on the verification error
// We cannot just use err.Error() as a tag because it contains invalid
// characters like = : etc. which will be rejected by M3
func getErrorTag(err error) string {
	if IsSchemaMismatch(err) {
		return "schema_mismatch"
	}
	if yarpcerrors.IsNotFound(err) {
		return "not_found"
	}
	switch errors.Cause(err).(type) {
	case *gocql.RequestErrReadFailure:
		return "read_failure"
	case *gocql.RequestErrReadTimeout:
		return "read_timeout"
	case *gocql.RequestErrUnavailable:
		return "unavailable"
	case *gocql.RequestErrUnprepared:
		return "unprepared"
	}
	switch errors.Cause(err) {
	case gocql.ErrNoConnections:
		return "no_connections"
	case gocql.ErrTimeoutNoResponse:
		return "timeout"
	case context.Canceled, context.DeadlineExceeded:
		return "context"
	}
	return "unknown"
}

// helper function to record verification latency metrics
func sendLatency(
	scope tally.Scope,
	table, operation string,
	d time.Duration,
) {
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
	})
	s.Timer("execute_latency").Record(d)
}

// helper function to record verification success/failure metrics
func sendCounters(
	scope tally.Scope,
	table, operation string,
	err error,
) {
	errMsg := "none"
	if err != nil {
		errMsg = getErrorTag(err)
	}
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
		"error":     errMsg,
	})
	s.Counter("execute").Inc(1)
}
