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
	"context"
	"os"
	"time"

	"github.com/uber/cqlmapping/pkg/common"
	"github.com/uber/cqlmapping/pkg/common/config"
	"github.com/uber/cqlmapping/pkg/common/logging"
	"github.com/uber/cqlmapping/pkg/storage/connectors/cassandra"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	version string
	app     = kingpin.New("cqlmap", "Tool to resolve and verify Cassandra table mappings")

	debug = app.Flag(
		"debug", "enable debug mode").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	// Print the resolved key of every mapped table
	resolveCmd   = app.Command("resolve", "Resolve the primary keys of mapping files")
	resolveFiles = resolveCmd.Arg("mapping", "YAML mapping files").Required().ExistingFiles()

	// Check the resolved keys against a live keyspace
	verifyCmd   = app.Command("verify", "Verify mapping files against the Cassandra schema")
	configFiles = verifyCmd.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		Required().
		ExistingFiles()

	secretsFile = verifyCmd.Flag(
		"secrets", "YAML file holding the Cassandra credentials").
		Envar("CQLMAP_SECRETS").
		String()

	cassandraHosts = verifyCmd.Flag(
		"cassandra-hosts", "Cassandra hosts").
		Envar("CASSANDRA_HOSTS").
		Strings()

	cassandraStore = verifyCmd.Flag(
		"cassandra-store", "Cassandra store name").
		Default("").
		Envar("CASSANDRA_STORE").
		String()

	cassandraPort = verifyCmd.Flag(
		"cassandra-port", "Cassandra port to connect").
		Default("0").
		Envar("CASSANDRA_PORT").
		Int()

	verifyTimeout = verifyCmd.Flag(
		"timeout", "Timeout for the whole verification").
		Default("1m").
		Duration()

	verifyFiles = verifyCmd.Arg("mapping", "YAML mapping files").ExistingFiles()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(
		&logging.LogFieldFormatter{
			Formatter: &logging.SecretsFormatter{JSONFormatter: &log.JSONFormatter{}},
			Fields: log.Fields{
				common.AppLogField: app.Name,
			},
		},
	)

	// The resolved tables go to stdout, keep the logs out of it.
	log.SetOutput(os.Stderr)

	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)

	switch cmd {
	case resolveCmd.FullCommand():
		tables, err := loadTables(*resolveFiles)
		if err != nil {
			log.Fatalf("Could not resolve mapping files: %v", err)
		}
		if err := writeTables(os.Stdout, tables); err != nil {
			log.Fatalf("Could not write resolved tables: %v", err)
		}
	case verifyCmd.FullCommand():
		verify()
	}
}

func verify() {
	log.WithField("files", *configFiles).Debug("Loading cqlmap config")

	var cfg Config
	if err := config.Parse(&cfg, *configFiles...); err != nil {
		log.WithField("error", err).Fatal("Cannot parse yaml config")
	}

	o := overrides{
		hosts: *cassandraHosts,
		store: *cassandraStore,
		port:  *cassandraPort,
	}
	if *secretsFile != "" {
		secrets, err := config.ParseSecrets(*secretsFile)
		if err != nil {
			log.WithField("error", err).Fatal("Cannot parse secrets")
		}
		o.secrets = secrets
	}
	cfg.apply(o)

	log.WithField("config", &cfg.Cassandra).Debug("Loaded cqlmap config")

	tables, err := loadTables(append(cfg.Mappings, *verifyFiles...))
	if err != nil {
		log.Fatalf("Could not resolve mapping files: %v", err)
	}

	verifier, session, err := cassandra.NewSessionVerifier(&cfg.Cassandra, tally.NoopScope)
	if err != nil {
		log.Fatalf("Could not connect to Cassandra: %v", err)
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *verifyTimeout)
	defer cancel()

	start := time.Now()
	if err := verifier.VerifyTables(ctx, tables); err != nil {
		session.Close()
		log.Fatalf("Schema verification failed: %v", err)
	}
	log.WithFields(log.Fields{
		"tables":   len(tables),
		"keyspace": cfg.Cassandra.StoreName,
		"duration": time.Since(start),
	}).Info("Schema matches mapping files")
}
