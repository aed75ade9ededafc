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
	"io"
	"strings"
	"testing"

	"github.com/beam-contrib/documentdb/internal/environment"
)

func TestRoot_errors(t *testing.T) {
	t.Setenv(environment.Endpoint.Key(), "")
	t.Setenv(environment.Key.Key(), "")
	t.Setenv(environment.Database.Key(), "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "Error - unknown log format",
			args:    []string{"copy", "--log-format=xml"},
			wantErr: `unknown log format "xml"`,
		},
		{
			name:    "Error - copy without a connection",
			args:    []string{"copy", "--log-format=text", "--source-collections=a", "--target-collections=b"},
			wantErr: "source: missing endpoint",
		},
		{
			name:    "Error - export without an output",
			args:    []string{"export", "--log-format=text"},
			wantErr: `required flag(s) "output" not set`,
		},
		{
			name:    "Error - missing config file",
			args:    []string{"import", "--log-format=text", "--input=docs.jsonl", "--config=does-not-exist.yaml"},
			wantErr: "error reading config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Root.SetArgs(tt.args)
			Root.SetOut(io.Discard)
			Root.SetErr(io.Discard)
			t.Cleanup(func() { configPath = "" })

			err := Root.ExecuteContext(context.Background())

			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Execute() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
