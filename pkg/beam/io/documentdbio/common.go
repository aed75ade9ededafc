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

// Package documentdbio contains transforms for reading from and writing to
// DocumentDB collections.
//
// Reads page through a SQL query per collection. Writes buffer documents and
// insert them in chunks through a bulk-import stored procedure that the
// transform registers on every target collection, rotating between the
// targets after each flush.
package documentdbio

import (
	"context"
	"fmt"

	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"github.com/beam-contrib/documentdb/pkg/documentdb/retry"
)

const (
	baseMetricPrefix = "documentdbio/"
)

// Service is the subset of the DocumentDB database API used by the readers
// and writers of this package. *documentdb.Database implements it.
type Service interface {
	QueryDocuments(
		ctx context.Context,
		collection string,
		q documentdb.Query,
		opts *documentdb.QueryOptions,
	) (*documentdb.DocumentPage, error)
	ReadCollection(ctx context.Context, name string) (*documentdb.Collection, error)
	CreateCollection(ctx context.Context, spec documentdb.CollectionSpec) (*documentdb.Collection, error)
	QueryStoredProcedures(
		ctx context.Context,
		collection string,
		q documentdb.Query,
	) ([]documentdb.StoredProcedure, error)
	CreateStoredProcedure(
		ctx context.Context,
		collection string,
		sp documentdb.StoredProcedure,
	) (*documentdb.StoredProcedure, error)
	DeleteStoredProcedure(ctx context.Context, collection, id string) error
	ExecuteStoredProcedure(ctx context.Context, collection, id string, args ...any) ([]byte, error)
}

var _ Service = (*documentdb.Database)(nil)

// Open connects to database and checks that it exists.
func Open(
	ctx context.Context,
	endpoint string,
	key string,
	database string,
	opts ...documentdb.ClientOption,
) (*documentdb.Database, error) {
	client, err := documentdb.NewClient(endpoint, key, opts...)
	if err != nil {
		return nil, err
	}

	db := client.Database(database)
	err = retry.Do(ctx, func(ctx context.Context) error {
		_, err := db.Read(ctx)
		return err
	})
	if err != nil {
		if documentdb.IsNotFound(err) {
			return nil, fmt.Errorf("database %s doesn't exist", database)
		}
		return nil, fmt.Errorf("error reading database %s: %w", database, err)
	}

	return db, nil
}

type documentDBFn struct {
	Endpoint         string
	Key              string
	Database         string
	UserAgentSuffix  string
	MaxRetryAttempts int
	service          Service
}

func (fn *documentDBFn) Setup(ctx context.Context) error {
	if fn.service != nil {
		return nil
	}

	var opts []documentdb.ClientOption
	if fn.UserAgentSuffix != "" {
		opts = append(opts, documentdb.WithUserAgentSuffix(fn.UserAgentSuffix))
	}

	db, err := Open(ctx, fn.Endpoint, fn.Key, fn.Database, opts...)
	if err != nil {
		return err
	}
	log.Infof(ctx, "Connected to DocumentDB database %s at %s", fn.Database, fn.Endpoint)

	fn.service = db
	return nil
}

func (fn *documentDBFn) retryOptions() []retry.Option {
	if fn.MaxRetryAttempts <= 0 {
		return nil
	}
	return []retry.Option{retry.WithMaxAttempts(fn.MaxRetryAttempts)}
}
