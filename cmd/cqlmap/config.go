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

package main

import (
	"github.com/uber/cqlmapping/pkg/common/config"
	"github.com/uber/cqlmapping/pkg/storage/connectors/cassandra"
)

// Config holds all config to run cqlmap.
type Config struct {
	Cassandra cassandra.Config `yaml:"cassandra"`
	// Mappings are mapping files read in addition to the ones given on
	// the command line.
	Mappings []string `yaml:"mappings"`
}

// overrides are the command line values that take precedence over the
// config files.
type overrides struct {
	hosts   []string
	store   string
	port    int
	secrets *config.SecretsConfig
}

func (c *Config) apply(o overrides) {
	if c.Cassandra.CassandraConn == nil {
		c.Cassandra.CassandraConn = &cassandra.CassandraConn{}
	}
	conn := c.Cassandra.CassandraConn
	if len(o.hosts) > 0 {
		conn.ContactPoints = o.hosts
	}
	if o.store != "" {
		c.Cassandra.StoreName = o.store
	}
	if o.port != 0 {
		conn.Port = o.port
	}
	if o.secrets != nil {
		if o.secrets.CassandraUsername != "" {
			conn.Username = o.secrets.CassandraUsername
		}
		if o.secrets.CassandraPassword != "" {
			conn.Password = o.secrets.CassandraPassword
		}
	}
}
