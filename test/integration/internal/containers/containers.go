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

// Package containers runs the DocumentDB emulator in integration tests.
package containers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"testing"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// EmulatorPort is the gateway port of the emulator.
	EmulatorPort nat.Port = "8081/tcp"

	// EmulatorKey is the well-known master key of the emulator.
	EmulatorKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU9DE2nQ9nRLiQnUQ5IBpd4o/6+9JEgJsS7Xh/j5+cIhLe8qZnCgWz8ljd4QmLUyJXETd6/A=="

	startupTimeout = 3 * time.Minute
)

type ContainerOptionFn func(*testcontainers.ContainerRequest)

func WithEnv(env map[string]string) ContainerOptionFn {
	return func(option *testcontainers.ContainerRequest) {
		option.Env = env
	}
}

// Emulator is a running DocumentDB emulator.
type Emulator struct {
	Endpoint string
	Key      string
}

// HTTPClient returns a client accepting the self-signed certificate of the
// emulator.
func (e *Emulator) HTTPClient() *http.Client {
	return &http.Client{
		Timeout: time.Minute,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // emulator certificate
		},
	}
}

// NewEmulator starts the emulator image, waits until its gateway accepts
// requests and terminates it when the test ends.
func NewEmulator(
	ctx context.Context,
	t *testing.T,
	image string,
	maxRetries int,
	opts ...ContainerOptionFn,
) *Emulator {
	t.Helper()

	request := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{string(EmulatorPort)},
		Env: map[string]string{
			"AZURE_COSMOS_EMULATOR_PARTITION_COUNT":         "2",
			"AZURE_COSMOS_EMULATOR_ENABLE_DATA_PERSISTENCE": "false",
		},
		WaitingFor: wait.ForLog("Started").WithStartupTimeout(startupTimeout),
	}
	for _, opt := range opts {
		opt(&request)
	}

	genericRequest := testcontainers.GenericContainerRequest{
		ContainerRequest: request,
		Started:          true,
	}

	retryOpts := []retry.Option{
		retry.Attempts(uint(maxRetries)),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			if n == 0 {
				return time.Second
			}
			return retry.BackOffDelay(n, err, config)
		}),
	}

	var container testcontainers.Container
	var err error
	err = retry.Do(func() error {
		container, err = testcontainers.GenericContainer(ctx, genericRequest)
		return err
	}, retryOpts...)
	if err != nil {
		t.Fatalf("failed to start emulator with %v retries: %v", maxRetries, err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("error terminating container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("error getting container host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, EmulatorPort)
	if err != nil {
		t.Fatalf("error getting mapped port: %v", err)
	}

	return &Emulator{
		Endpoint: fmt.Sprintf("https://%s:%s/", host, mappedPort.Port()),
		Key:      EmulatorKey,
	}
}
