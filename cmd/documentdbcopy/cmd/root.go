// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd implements the documentdbcopy commands.
package cmd

import (
	"flag"
	"fmt"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/spf13/cobra"
)

var (
	configPath        string
	logFormat         string
	query             string
	sourceCollections []string
	targetCollections []string

	cfg *Config

	// Root is the documentdbcopy command. Beam pipeline flags such as
	// --runner are accepted by every subcommand.
	Root = &cobra.Command{
		Use:               "documentdbcopy",
		Short:             "Copy, export and import DocumentDB collections with Apache Beam",
		SilenceUsage:      true,
		PersistentPreRunE: rootPreE,
	}
)

func init() {
	flags := Root.PersistentFlags()
	flags.AddGoFlagSet(flag.CommandLine)
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	flags.StringVar(&query, "query", "", "query selecting the source documents")
	flags.StringSliceVar(&sourceCollections, "source-collections", nil, "collections to read, overriding the configuration")
	flags.StringSliceVar(&targetCollections, "target-collections", nil, "collections to write, overriding the configuration")

	Root.AddCommand(copyCmd, exportCmd, importCmd)
}

func rootPreE(cmd *cobra.Command, _ []string) error {
	switch logFormat {
	case "text":
	case "json":
		log.SetLogger(&log.Structural{})
	default:
		return fmt.Errorf("unknown log format %q, want text or json", logFormat)
	}

	beam.Init()

	var err error
	if cfg, err = LoadConfig(configPath); err != nil {
		return err
	}
	cfg.applyEnvironment()
	if query != "" {
		cfg.Source.Query = query
	}
	if len(sourceCollections) > 0 {
		cfg.Source.Collections = sourceCollections
	}
	if len(targetCollections) > 0 {
		cfg.Target.Collections = targetCollections
	}
	return nil
}
