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

package cmd

import (
	"context"
	"reflect"
	"strings"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/io/textio"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/register"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/transforms/filter"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/transforms/stats"
	"github.com/beam-contrib/documentdb/pkg/beam/io/documentdbio"

	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/local"
)

func init() {
	register.Function1x1(isBlank)
	register.Function2x0(logWritten)
}

// buildCopy adds a pipeline reading the source collections and writing their
// documents to the target collections.
func buildCopy(s beam.Scope, cfg *Config) {
	docs := readSource(s, cfg)
	writeTarget(s, cfg, docs)
}

// buildExport adds a pipeline writing the source documents to output, one
// JSON document per line.
func buildExport(s beam.Scope, cfg *Config, output string) {
	docs := readSource(s, cfg)
	textio.Write(s, output, docs)
}

// buildImport adds a pipeline writing the JSON documents of the files
// matching input, one per line, to the target collections.
func buildImport(s beam.Scope, cfg *Config, input string) {
	lines := textio.Read(s, input)
	docs := filter.Exclude(s, lines, isBlank)
	writeTarget(s, cfg, docs)
}

func readSource(s beam.Scope, cfg *Config) beam.PCollection {
	return documentdbio.Read(
		s,
		cfg.Endpoint,
		cfg.Key,
		cfg.Database,
		cfg.Source.Collections,
		reflect.TypeOf(""),
		cfg.readOptions()...,
	)
}

func writeTarget(s beam.Scope, cfg *Config, docs beam.PCollection) {
	endpoint, key, database := cfg.target()
	ids := documentdbio.Write(s, endpoint, key, database, cfg.Target.Collections, docs, cfg.writeOptions()...)
	beam.ParDo0(s, logWritten, stats.CountElms(s, ids))
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func logWritten(ctx context.Context, n int) {
	log.Infof(ctx, "Wrote %d documents", n)
}
