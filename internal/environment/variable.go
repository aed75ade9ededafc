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

// Package environment reads DocumentDB connection settings from the system
// environment.
package environment

import (
	"fmt"
	"os"
	"strings"
)

var (
	// Endpoint is the DocumentDB account endpoint, such as
	// https://account.documents.azure.com:443/.
	Endpoint Variable = "DOCUMENTDB_ENDPOINT"

	// Key is the master key of the DocumentDB account.
	Key Variable = "DOCUMENTDB_KEY"

	// Database names the database used when none is configured.
	Database Variable = "DOCUMENTDB_DATABASE"

	// EmulatorImage is the container image of the DocumentDB emulator used
	// by integration tests.
	EmulatorImage Variable = "DOCUMENTDB_EMULATOR_IMAGE"
)

// Variable is the key of a system environment variable.
type Variable string

// Missing reports whether the system environment variable is an empty string.
func (v Variable) Missing() bool {
	return v.Value() == ""
}

// Key returns the system environment variable key.
func (v Variable) Key() string {
	return (string)(v)
}

// Value returns the system environment variable value.
func (v Variable) Value() string {
	return os.Getenv((string)(v))
}

// Or returns the value of the variable, or fallback when it is not set.
func (v Variable) Or(fallback string) string {
	if value := v.Value(); value != "" {
		return value
	}
	return fallback
}

// KeyValue returns <key>=<value>. The values of secret variables are masked.
func (v Variable) KeyValue() string {
	value := v.Value()
	if v == Key && value != "" {
		value = "****"
	}
	return fmt.Sprintf("%s=%s", (string)(v), value)
}

// Missing reports as an error listing all Variable among vars that are
// not assigned in the system environment.
func Missing(vars ...Variable) error {
	var missing []string
	for _, v := range vars {
		if v.Missing() {
			missing = append(missing, v.KeyValue())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("variables empty but expected from environment: %s", strings.Join(missing, "; "))
	}
	return nil
}
