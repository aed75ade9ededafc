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
	"fmt"
	"net/http"
)

// DefaultOfferType is the performance level given to collections created
// without an explicit offer type.
const DefaultOfferType = "S3"

// Collection is a document collection resource.
type Collection struct {
	Resource
	IndexingPolicy *IndexingPolicy `json:"indexingPolicy,omitempty"`
}

// IndexingPolicy is the indexing policy of a collection.
type IndexingPolicy struct {
	Automatic     bool           `json:"automatic"`
	IndexingMode  string         `json:"indexingMode,omitempty"`
	IncludedPaths []IncludedPath `json:"includedPaths,omitempty"`
}

// IncludedPath lists the indexes maintained for a document path.
type IncludedPath struct {
	Path    string  `json:"path"`
	Indexes []Index `json:"indexes,omitempty"`
}

// Index is a single index of an included path.
type Index struct {
	Kind      string `json:"kind"`
	DataType  string `json:"dataType"`
	Precision int    `json:"precision"`
}

// RangeIndexingPolicy returns a consistent policy indexing every path with
// range indexes: strings with the given precision (-1 for maximum precision)
// and numbers with maximum precision.
func RangeIndexingPolicy(stringPrecision int) *IndexingPolicy {
	return &IndexingPolicy{
		Automatic:    true,
		IndexingMode: "consistent",
		IncludedPaths: []IncludedPath{
			{
				Path: "/*",
				Indexes: []Index{
					{Kind: "Range", DataType: "String", Precision: stringPrecision},
					{Kind: "Range", DataType: "Number", Precision: -1},
				},
			},
		},
	}
}

// CollectionSpec describes a collection to create.
type CollectionSpec struct {
	ID             string
	IndexingPolicy *IndexingPolicy
	// OfferType is the performance level of the collection, e.g. "S1". Empty
	// means the account default.
	OfferType string
}

// ReadCollection returns the named collection.
func (d *Database) ReadCollection(ctx context.Context, name string) (*Collection, error) {
	segments := d.collectionLink(name)
	resp, err := d.client.do(ctx, &request{
		method:       http.MethodGet,
		resourceType: resourceTypeCollection,
		resourceLink: link(segments...),
		segments:     segments,
	})
	if err != nil {
		return nil, err
	}
	var coll Collection
	if err := unmarshalJSON(resp.body, &coll); err != nil {
		return nil, fmt.Errorf("documentdb: error decoding collection %s: %w", name, err)
	}
	return &coll, nil
}

// CreateCollection creates a collection in the database.
func (d *Database) CreateCollection(ctx context.Context, spec CollectionSpec) (*Collection, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("documentdb: collection id must be set")
	}

	header := http.Header{}
	if spec.OfferType != "" {
		header.Set(headerOfferType, spec.OfferType)
	}

	resp, err := d.client.do(ctx, &request{
		method:       http.MethodPost,
		resourceType: resourceTypeCollection,
		resourceLink: link("dbs", d.name),
		segments:     []string{"dbs", d.name, resourceTypeCollection},
		header:       header,
		body: Collection{
			Resource:       Resource{ID: spec.ID},
			IndexingPolicy: spec.IndexingPolicy,
		},
	})
	if err != nil {
		return nil, err
	}
	var coll Collection
	if err := unmarshalJSON(resp.body, &coll); err != nil {
		return nil, fmt.Errorf("documentdb: error decoding collection %s: %w", spec.ID, err)
	}
	return &coll, nil
}
