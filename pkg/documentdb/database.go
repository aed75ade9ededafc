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
	"strconv"
)

// Database is a handle to a database of the account. Collections are
// addressed by name.
type Database struct {
	client *Client
	name   string
}

// Name returns the database id.
func (d *Database) Name() string {
	return d.name
}

// Resource holds the system properties common to every service resource.
type Resource struct {
	ID         string `json:"id"`
	ResourceID string `json:"_rid,omitempty"`
	SelfLink   string `json:"_self,omitempty"`
	ETag       string `json:"_etag,omitempty"`
}

// Query is a SQL query with optional named parameters.
type Query struct {
	Text       string      `json:"query"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Parameter is a named query parameter, e.g. "@id".
type Parameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// QueryOptions controls the paging of a query.
type QueryOptions struct {
	// PageSize is the maximum number of items returned per page. Zero lets
	// the service choose.
	PageSize int
	// Continuation is the token returned with the previous page, empty for
	// the first page.
	Continuation string
}

// DocumentPage is one page of query results.
type DocumentPage struct {
	Documents []Document
	// Continuation is the token to request the next page. It is empty on the
	// last page.
	Continuation string
	// RequestCharge is the cost of the request in request units.
	RequestCharge float64
}

// Read checks that the database exists.
func (d *Database) Read(ctx context.Context) (*Resource, error) {
	resp, err := d.client.do(ctx, &request{
		method:       http.MethodGet,
		resourceType: resourceTypeDatabase,
		resourceLink: link("dbs", d.name),
		segments:     []string{"dbs", d.name},
	})
	if err != nil {
		return nil, err
	}
	var res Resource
	if err := unmarshalJSON(resp.body, &res); err != nil {
		return nil, fmt.Errorf("documentdb: error decoding database %s: %w", d.name, err)
	}
	return &res, nil
}

func (d *Database) collectionLink(collection string) []string {
	return []string{"dbs", d.name, "colls", collection}
}

func (d *Database) query(
	ctx context.Context,
	resourceType string,
	collection string,
	q Query,
	opts *QueryOptions,
) (*response, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("documentdb: query text must not be empty")
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("documentdb: error encoding query: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", contentTypeQueryJSON)
	header.Set(headerIsQuery, "True")
	header.Set(headerEnableCrossPart, "True")
	if opts != nil {
		if opts.PageSize > 0 {
			header.Set(headerMaxItemCount, strconv.Itoa(opts.PageSize))
		}
		if opts.Continuation != "" {
			header.Set(headerContinuation, opts.Continuation)
		}
	}

	parent := d.collectionLink(collection)
	return d.client.do(ctx, &request{
		method:       http.MethodPost,
		resourceType: resourceType,
		resourceLink: link(parent...),
		segments:     append(parent, resourceType),
		header:       header,
		rawBody:      body,
	})
}

// QueryDocuments fetches one page of the documents of collection matching q.
func (d *Database) QueryDocuments(
	ctx context.Context,
	collection string,
	q Query,
	opts *QueryOptions,
) (*DocumentPage, error) {
	resp, err := d.query(ctx, resourceTypeDocument, collection, q, opts)
	if err != nil {
		return nil, err
	}

	var feed struct {
		Documents []Document `json:"Documents"`
	}
	if err := unmarshalJSON(resp.body, &feed); err != nil {
		return nil, fmt.Errorf("documentdb: error decoding query results of %s: %w", collection, err)
	}

	return &DocumentPage{
		Documents:     feed.Documents,
		Continuation:  resp.header.Get(headerContinuation),
		RequestCharge: requestCharge(resp.header),
	}, nil
}

// DocumentOptions controls document creation.
type DocumentOptions struct {
	// Upsert replaces an existing document with the same id instead of
	// failing with a conflict.
	Upsert bool
}

// CreateDocument creates doc in collection and returns the stored document.
func (d *Database) CreateDocument(
	ctx context.Context,
	collection string,
	doc Document,
	opts *DocumentOptions,
) (Document, error) {
	body, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if opts != nil && opts.Upsert {
		header.Set(headerIsUpsert, "True")
	}

	parent := d.collectionLink(collection)
	resp, err := d.client.do(ctx, &request{
		method:       http.MethodPost,
		resourceType: resourceTypeDocument,
		resourceLink: link(parent...),
		segments:     append(parent, resourceTypeDocument),
		header:       header,
		rawBody:      body,
	})
	if err != nil {
		return nil, err
	}
	return ParseDocument(resp.body)
}

// CreateDatabase creates the named database and returns a handle to it.
func (c *Client) CreateDatabase(ctx context.Context, name string) (*Database, error) {
	if name == "" {
		return nil, fmt.Errorf("documentdb: database id must be set")
	}
	if _, err := c.do(ctx, &request{
		method:       http.MethodPost,
		resourceType: resourceTypeDatabase,
		resourceLink: "",
		segments:     []string{resourceTypeDatabase},
		body:         Resource{ID: name},
	}); err != nil {
		return nil, err
	}
	return c.Database(name), nil
}
