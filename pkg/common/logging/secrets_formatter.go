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

package logging

import (
	"strings"

	"github.com/uber/cqlmapping/pkg/storage/connectors/cassandra"

	log "github.com/sirupsen/logrus"
)

// SecretsFormatter scrubs sensitive information from logs and formats logs into
// parsable json.
type SecretsFormatter struct {
	*log.JSONFormatter
}

const redactedStr = "REDACTED"

// secretFields are redacted whatever their value
var secretFields = []string{"password", "secret", "token"}

func isSecretField(k string) bool {
	k = strings.ToLower(k)
	for _, s := range secretFields {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func redactConn(conn *cassandra.CassandraConn) *cassandra.CassandraConn {
	if conn == nil || conn.Password == "" {
		return conn
	}
	c := *conn
	c.Password = redactedStr
	return &c
}

// Format is called by logrus and returns the formatted string.
// It looks for secrets in each entry and redacts them.
func (f *SecretsFormatter) Format(entry *log.Entry) ([]byte, error) {
	data := make(log.Fields, len(entry.Data))
	for k, v := range entry.Data {
		if isSecretField(k) {
			data[k] = redactedStr
			continue
		}
		switch v := v.(type) {
		case *cassandra.CassandraConn:
			// the config is shared, log a redacted copy
			data[k] = redactConn(v)
		case *cassandra.Config:
			if v != nil {
				c := *v
				c.CassandraConn = redactConn(v.CassandraConn)
				data[k] = &c
			} else {
				data[k] = v
			}
		default:
			data[k] = v
		}
	}
	e := *entry
	e.Data = data
	return f.JSONFormatter.Format(&e)
}
