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

package environment

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMissing(t *testing.T) {
	tests := []struct {
		name   string
		vars   []Variable
		values []string
		want   error
	}{
		{
			name: "{}",
		},
		{
			name:   "{A=}",
			vars:   []Variable{"A"},
			values: []string{""},
			want:   errors.New("variables empty but expected from environment: A="),
		},
		{
			name:   "{A=1}",
			vars:   []Variable{"A"},
			values: []string{"1"},
		},
		{
			name:   "{A=; B=}",
			vars:   []Variable{"A", "B"},
			values: []string{"", ""},
			want:   errors.New("variables empty but expected from environment: A=; B="),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got, want string
			for i, v := range tt.vars {
				t.Setenv(v.Key(), tt.values[i])
			}
			if err := Missing(tt.vars...); err != nil {
				got = err.Error()
			}
			if tt.want != nil {
				want = tt.want.Error()
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Missing() error returned unexpected difference in error messages (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVariable_Or(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback string
		want     string
	}{
		{
			name:     "environment variable not set",
			fallback: "db",
			want:     "db",
		},
		{
			name:     "environment variable overrides the fallback",
			value:    "other",
			fallback: "db",
			want:     "other",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(Database.Key(), tt.value)
			if got := Database.Or(tt.fallback); got != tt.want {
				t.Errorf("Or() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVariable_KeyValue(t *testing.T) {
	tests := []struct {
		name  string
		v     Variable
		value string
		want  string
	}{
		{
			name: "environment variable not set",
			v:    Endpoint,
			want: "DOCUMENTDB_ENDPOINT=",
		},
		{
			name:  "environment variable is set",
			v:     Endpoint,
			value: "https://localhost:8081",
			want:  "DOCUMENTDB_ENDPOINT=https://localhost:8081",
		},
		{
			name:  "master key is masked",
			v:     Key,
			value: "c2VjcmV0",
			want:  "DOCUMENTDB_KEY=****",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.v.Key(), tt.value)
			if got := tt.v.KeyValue(); got != tt.want {
				t.Errorf("KeyValue() = %s, want %s", got, tt.want)
			}
		})
	}
}
