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

package documentdbio

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"github.com/beam-contrib/documentdb/pkg/documentdb/retry"
)

// BulkImportProcedureID is the id under which the bulk-import stored
// procedure is registered on every target collection.
const BulkImportProcedureID = "BeamBulkImportSprocV1"

//go:embed bulkimport.js
var bulkImportScript string

// ProcedureOption configures a ProcedureManager.
type ProcedureOption func(*ProcedureManager)

// WithProcedureRetryOptions sets the options of the retry policy wrapped
// around every procedure management request.
func WithProcedureRetryOptions(opts ...retry.Option) ProcedureOption {
	return func(m *ProcedureManager) {
		m.retryOpts = opts
	}
}

// ProcedureManager makes sure the bulk-import stored procedure exists on the
// target collections.
type ProcedureManager struct {
	svc       Service
	id        string
	body      string
	retryOpts []retry.Option
}

// NewProcedureManager returns a ProcedureManager managing the bulk-import
// procedure through svc.
func NewProcedureManager(svc Service, opts ...ProcedureOption) *ProcedureManager {
	m := &ProcedureManager{
		svc:  svc,
		id:   BulkImportProcedureID,
		body: bulkImportScript,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure returns the bulk-import procedure of collection, creating it if it
// does not exist. It is safe to call concurrently for the same collection,
// from this process or others.
func (m *ProcedureManager) Ensure(ctx context.Context, collection string) (*documentdb.StoredProcedure, error) {
	sp, err := m.find(ctx, collection)
	if err != nil || sp != nil {
		return sp, err
	}

	created, err := retry.DoValue(ctx, func(ctx context.Context) (*documentdb.StoredProcedure, error) {
		return m.svc.CreateStoredProcedure(ctx, collection, documentdb.StoredProcedure{
			Resource: documentdb.Resource{ID: m.id},
			Body:     m.body,
		})
	}, m.retryOpts...)
	switch {
	case err == nil:
		log.Infof(ctx, "Created stored procedure %s on collection %s", m.id, collection)
		return created, nil
	case !documentdb.IsConflict(err):
		return nil, fmt.Errorf("error creating stored procedure %s on collection %s: %w", m.id, collection, err)
	}

	// Another writer created it in the meantime.
	sp, err = m.find(ctx, collection)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, fmt.Errorf("stored procedure %s on collection %s conflicts but cannot be found", m.id, collection)
	}
	return sp, nil
}

// Recreate deletes stale, the procedure the service refused to execute, and
// registers the procedure again. Failing to delete is not an error.
func (m *ProcedureManager) Recreate(
	ctx context.Context,
	collection string,
	stale *documentdb.StoredProcedure,
) (*documentdb.StoredProcedure, error) {
	id := m.id
	if stale != nil && stale.ID != "" {
		id = stale.ID
	}

	err := retry.Do(ctx, func(ctx context.Context) error {
		return m.svc.DeleteStoredProcedure(ctx, collection, id)
	}, m.retryOpts...)
	if err != nil && !documentdb.IsNotFound(err) {
		log.Warnf(ctx, "Failed to delete stored procedure %s on collection %s: %v", id, collection, err)
	}

	return m.Ensure(ctx, collection)
}

func (m *ProcedureManager) find(ctx context.Context, collection string) (*documentdb.StoredProcedure, error) {
	q := documentdb.Query{
		Text:       "SELECT * FROM root r WHERE r.id = @id",
		Parameters: []documentdb.Parameter{{Name: "@id", Value: m.id}},
	}

	sps, err := retry.DoValue(ctx, func(ctx context.Context) ([]documentdb.StoredProcedure, error) {
		return m.svc.QueryStoredProcedures(ctx, collection, q)
	}, m.retryOpts...)
	if err != nil {
		return nil, fmt.Errorf("error querying stored procedures of collection %s: %w", collection, err)
	}

	for i := range sps {
		if sps[i].ID == m.id {
			return &sps[i], nil
		}
	}
	return nil, nil
}
