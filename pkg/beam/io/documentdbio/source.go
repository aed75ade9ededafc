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
	"fmt"
	"time"

	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"github.com/beam-contrib/documentdb/pkg/documentdb/retry"
	"google.golang.org/api/iterator"
)

const (
	defaultPageSize      = 700
	defaultQuery         = "SELECT * FROM root"
	readProgressInterval = 100
)

// PartitionDescriptor is the unit of read work: the documents of one
// collection matching an optional query.
type PartitionDescriptor struct {
	Endpoint   string `json:"endpoint"`
	Key        string `json:"key"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
	// Query filters the documents of the collection. Empty means all
	// documents.
	Query string `json:"query,omitempty"`
	// PageSize is the number of documents fetched per request. Zero means
	// 700.
	PageSize int `json:"pageSize,omitempty"`
}

// SourceOption configures a DocumentSource.
type SourceOption func(*DocumentSource)

// WithSourceRetryOptions sets the options of the retry policy wrapped around
// every page request.
func WithSourceRetryOptions(opts ...retry.Option) SourceOption {
	return func(s *DocumentSource) {
		s.retryOpts = opts
	}
}

// WithPageObserver registers a function called after every fetched page with
// the time the request took, retries included.
func WithPageObserver(observe func(page *documentdb.DocumentPage, latency time.Duration)) SourceOption {
	return func(s *DocumentSource) {
		s.observe = observe
	}
}

// DocumentSource iterates over the documents of a partition. The query is
// sent lazily on the first call to HasNext or Next and results are fetched
// page by page. Throttled page requests are retried transparently.
//
// A DocumentSource cannot be restarted: once exhausted, HasNext keeps
// returning false.
type DocumentSource struct {
	svc       Service
	partition PartitionDescriptor
	retryOpts []retry.Option
	observe   func(page *documentdb.DocumentPage, latency time.Duration)

	page         []documentdb.Document
	pos          int
	continuation string
	started      bool
	exhausted    bool
	processed    int64
}

// NewDocumentSource returns a source reading partition through svc.
func NewDocumentSource(svc Service, partition PartitionDescriptor, opts ...SourceOption) *DocumentSource {
	if partition.Query == "" {
		partition.Query = defaultQuery
	}
	if partition.PageSize <= 0 {
		partition.PageSize = defaultPageSize
	}

	s := &DocumentSource{
		svc:       svc,
		partition: partition,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasNext reports whether Next will return a document, fetching the next
// page if the current one is consumed.
func (s *DocumentSource) HasNext(ctx context.Context) (bool, error) {
	for s.pos >= len(s.page) {
		if s.exhausted {
			return false, nil
		}
		if err := s.fetch(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Next returns the next document, or iterator.Done when the partition is
// exhausted.
func (s *DocumentSource) Next(ctx context.Context) (documentdb.Document, error) {
	ok, err := s.HasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, iterator.Done
	}

	doc := s.page[s.pos]
	s.page[s.pos] = nil
	s.pos++

	s.processed++
	if s.processed%readProgressInterval == 0 {
		log.Infof(ctx, "Read %d documents from collection %s", s.processed, s.partition.Collection)
	}
	return doc, nil
}

// Processed returns the number of documents returned by Next so far.
func (s *DocumentSource) Processed() int64 {
	return s.processed
}

func (s *DocumentSource) fetch(ctx context.Context) error {
	if s.started && s.continuation == "" {
		s.exhausted = true
		log.Infof(ctx, "Finished reading %d documents from collection %s", s.processed, s.partition.Collection)
		return nil
	}

	opts := &documentdb.QueryOptions{
		PageSize:     s.partition.PageSize,
		Continuation: s.continuation,
	}
	q := documentdb.Query{Text: s.partition.Query}

	start := time.Now()
	page, err := retry.DoValue(ctx, func(ctx context.Context) (*documentdb.DocumentPage, error) {
		return s.svc.QueryDocuments(ctx, s.partition.Collection, q, opts)
	}, s.retryOpts...)
	if err != nil {
		return fmt.Errorf("error querying collection %s: %w", s.partition.Collection, err)
	}
	if s.observe != nil {
		s.observe(page, time.Since(start))
	}

	s.started = true
	s.page = page.Documents
	s.pos = 0
	s.continuation = page.Continuation
	return nil
}
