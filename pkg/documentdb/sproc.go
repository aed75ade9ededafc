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

package documentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// StoredProcedure is a server-side JavaScript procedure registered on a
// collection.
type StoredProcedure struct {
	Resource
	Body string `json:"body"`
}

// QueryStoredProcedures returns every stored procedure of collection matching
// q, following continuation tokens until the last page.
func (d *Database) QueryStoredProcedures(
	ctx context.Context,
	collection string,
	q Query,
) ([]StoredProcedure, error) {
	var (
		all  []StoredProcedure
		opts QueryOptions
	)
	for {
		resp, err := d.query(ctx, resourceTypeStoredProc, collection, q, &opts)
		if err != nil {
			return nil, err
		}

		var feed struct {
			StoredProcedures []StoredProcedure `json:"StoredProcedures"`
		}
		if err := unmarshalJSON(resp.body, &feed); err != nil {
			return nil, fmt.Errorf("documentdb: error decoding stored procedures of %s: %w", collection, err)
		}
		all = append(all, feed.StoredProcedures...)

		opts.Continuation = resp.header.Get(headerContinuation)
		if opts.Continuation == "" {
			return all, nil
		}
	}
}

// CreateStoredProcedure registers sp on collection.
func (d *Database) CreateStoredProcedure(
	ctx context.Context,
	collection string,
	sp StoredProcedure,
) (*StoredProcedure, error) {
	if sp.ID == "" {
		return nil, fmt.Errorf("documentdb: stored procedure id must be set")
	}

	parent := d.collectionLink(collection)
	resp, err := d.client.do(ctx, &request{
		method:       http.MethodPost,
		resourceType: resourceTypeStoredProc,
		resourceLink: link(parent...),
		segments:     append(parent, resourceTypeStoredProc),
		body:         StoredProcedure{Resource: Resource{ID: sp.ID}, Body: sp.Body},
	})
	if err != nil {
		return nil, err
	}
	var created StoredProcedure
	if err := unmarshalJSON(resp.body, &created); err != nil {
		return nil, fmt.Errorf("documentdb: error decoding stored procedure %s: %w", sp.ID, err)
	}
	return &created, nil
}

// DeleteStoredProcedure removes the stored procedure id from collection.
func (d *Database) DeleteStoredProcedure(ctx context.Context, collection, id string) error {
	segments := append(d.collectionLink(collection), resourceTypeStoredProc, id)
	_, err := d.client.do(ctx, &request{
		method:       http.MethodDelete,
		resourceType: resourceTypeStoredProc,
		resourceLink: link(segments...),
		segments:     segments,
	})
	return err
}

// ExecuteStoredProcedure runs the stored procedure id of collection with the
// given positional arguments and returns the raw response body set by the
// procedure.
func (d *Database) ExecuteStoredProcedure(
	ctx context.Context,
	collection string,
	id string,
	args ...any,
) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("documentdb: error encoding arguments of %s: %w", id, err)
	}

	segments := append(d.collectionLink(collection), resourceTypeStoredProc, id)
	resp, err := d.client.do(ctx, &request{
		method:       http.MethodPost,
		resourceType: resourceTypeStoredProc,
		resourceLink: link(segments...),
		segments:     segments,
		rawBody:      body,
	})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}
