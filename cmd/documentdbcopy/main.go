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

// documentdbcopy copies documents between DocumentDB collections and JSON
// line files with an Apache Beam pipeline.
//
//	documentdbcopy copy --config copy.yaml --runner=direct
//	documentdbcopy export --config export.yaml --output=/tmp/docs.jsonl
//	DOCUMENTDB_KEY=... documentdbcopy import --target-collections=a,b --input='/tmp/docs*.jsonl'
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/beam-contrib/documentdb/cmd/documentdbcopy/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := cmd.Root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
