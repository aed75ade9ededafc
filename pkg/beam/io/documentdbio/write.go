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
	"encoding/json"
	"fmt"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/register"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"github.com/google/uuid"
)

const (
	documentsWrittenCounterName     = baseMetricPrefix + "documents_written"
	chunksExecutedCounterName       = baseMetricPrefix + "chunks_executed"
	procedureRecreationsCounterName = baseMetricPrefix + "procedure_recreations"
	throttledRequestsCounterName    = baseMetricPrefix + "throttled_requests"
)

func init() {
	register.DoFn3x1[context.Context, beam.Y, func(string, string), error](
		&toDocumentFn{},
	)
	register.Emitter2[string, string]()

	register.DoFn4x1[context.Context, string, string, func(string), error](
		&writeFn{},
	)
	register.Emitter1[string]()
}

// Write writes a PCollection<T> of a type T to DocumentDB collections and returns a
// PCollection<string> of the ids of the written documents. T is either string, holding the JSON
// encoding of a document, or a struct with exported fields that should have a "json" tag. A
// document without an "id" property is given a random one before it is written.
//
// Documents are buffered per worker and written in chunks through a bulk-import stored procedure
// that the transform registers on every collection. Each flush of the buffer goes to the next
// collection in turn.
//
// The Write transform has the required parameters:
//   - s: the scope of the pipeline
//   - endpoint: the URL of the DocumentDB account
//   - key: the base64 master key of the account
//   - database: the database to write to
//   - collections: the collections to write to
//   - col: the PCollection to write to DocumentDB
//
// The Write transform takes a variadic number of WriteOptionFn which can set the WriteOption
// fields:
//   - Upsert: whether to replace documents that already exist. Defaults to true
//   - FlushSize: the number of buffered documents that triggers a flush. Defaults to 500
//   - ChunkDocuments: the maximum number of documents per procedure execution. Defaults to 50
//   - ChunkBytes: the maximum encoded size of the documents of a procedure execution. Defaults
//     to 50000
//   - CreateCollections: whether to create missing collections. Defaults to false
//   - StringPrecision, OfferType: the string index precision and the offer type of created
//     collections. Default to -1 and "S3"
//   - UserAgentSuffix: a suffix appended to the user agent of every request
//   - MaxRetryAttempts: the number of retries of a throttled request before failing. Defaults to
//     unbounded
func Write(
	s beam.Scope,
	endpoint string,
	key string,
	database string,
	collections []string,
	col beam.PCollection,
	opts ...WriteOptionFn,
) beam.PCollection {
	s = s.Scope("documentdbio.Write")

	if len(collections) == 0 {
		panic("documentdbio.Write: no collections provided")
	}

	option := &WriteOption{
		Upsert:          true,
		FlushSize:       defaultMaxDocumentsPerFlush,
		ChunkDocuments:  defaultMaxDocumentsPerChunk,
		ChunkBytes:      defaultMaxChunkBytes,
		StringPrecision: defaultStringPrecision,
		OfferType:       documentdb.DefaultOfferType,
	}

	for _, opt := range opts {
		if err := opt(option); err != nil {
			panic(fmt.Sprintf("documentdbio.Write: invalid option: %v", err))
		}
	}

	return write(s, col, newWriteFn(endpoint, key, database, collections, option))
}

// write is the entry point for tests, which provide a writeFn with a fake service.
func write(s beam.Scope, col beam.PCollection, fn *writeFn) beam.PCollection {
	pre := beam.ParDo(s, &toDocumentFn{}, col)
	keyed := beam.Reshuffle(s, pre)

	return beam.ParDo(s, fn, keyed)
}

// toDocumentFn encodes elements as JSON documents keyed by their id. Ids are
// assigned before the reshuffle so that a retried write sends the same id.
type toDocumentFn struct{}

func (fn *toDocumentFn) ProcessElement(
	_ context.Context,
	elem beam.Y,
	emit func(string, string),
) error {
	var (
		data []byte
		err  error
	)

	switch v := elem.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		if data, err = json.Marshal(v); err != nil {
			return fmt.Errorf("error encoding element: %w", err)
		}
	}

	doc, err := documentdb.ParseDocument(data)
	if err != nil {
		return err
	}

	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
		doc.SetID(id)
		if data, err = doc.Marshal(); err != nil {
			return err
		}
	}

	emit(id, string(data))
	return nil
}

type writeFn struct {
	documentDBFn
	Collections       []string
	Upsert            bool
	FlushSize         int
	ChunkDocuments    int
	ChunkBytes        int
	CreateCollections bool
	StringPrecision   int
	OfferType         string

	writer   *BulkWriter
	reported WriterStats

	documentsWritten     beam.Counter
	chunksExecuted       beam.Counter
	procedureRecreations beam.Counter
	throttledRequests    beam.Counter
}

func newWriteFn(
	endpoint string,
	key string,
	database string,
	collections []string,
	option *WriteOption,
) *writeFn {
	return &writeFn{
		documentDBFn: documentDBFn{
			Endpoint:         endpoint,
			Key:              key,
			Database:         database,
			UserAgentSuffix:  option.UserAgentSuffix,
			MaxRetryAttempts: option.MaxRetryAttempts,
		},
		Collections:       collections,
		Upsert:            option.Upsert,
		FlushSize:         option.FlushSize,
		ChunkDocuments:    option.ChunkDocuments,
		ChunkBytes:        option.ChunkBytes,
		CreateCollections: option.CreateCollections,
		StringPrecision:   option.StringPrecision,
		OfferType:         option.OfferType,
	}
}

func (fn *writeFn) String() string {
	return "writeFn"
}

func (fn *writeFn) Setup(ctx context.Context) error {
	if err := fn.documentDBFn.Setup(ctx); err != nil {
		return err
	}

	fn.documentsWritten = beam.NewCounter(fn.String(), documentsWrittenCounterName)
	fn.chunksExecuted = beam.NewCounter(fn.String(), chunksExecutedCounterName)
	fn.procedureRecreations = beam.NewCounter(fn.String(), procedureRecreationsCounterName)
	fn.throttledRequests = beam.NewCounter(fn.String(), throttledRequestsCounterName)

	writer, err := NewBulkWriter(ctx, fn.service, nil, BulkWriterConfig{
		Collections:          fn.Collections,
		Upsert:               fn.Upsert,
		MaxDocumentsPerFlush: fn.FlushSize,
		MaxDocumentsPerChunk: fn.ChunkDocuments,
		MaxChunkBytes:        fn.ChunkBytes,
		CreateCollections:    fn.CreateCollections,
		StringPrecision:      fn.StringPrecision,
		OfferType:            fn.OfferType,
		RetryOptions:         fn.retryOptions(),
	})
	if err != nil {
		return err
	}

	fn.writer = writer
	return nil
}

func (fn *writeFn) StartBundle(_ context.Context, _ func(string)) {
	// Leftovers of a failed bundle are replayed by the runner.
	fn.writer.Reset()
}

func (fn *writeFn) ProcessElement(
	ctx context.Context,
	id string,
	data string,
	emit func(string),
) error {
	doc, err := documentdb.ParseDocument([]byte(data))
	if err != nil {
		return fmt.Errorf("error decoding document %q: %w", id, err)
	}

	err = fn.writer.Write(ctx, doc)
	fn.report(ctx)
	if err != nil {
		return err
	}

	emit(id)
	return nil
}

func (fn *writeFn) FinishBundle(ctx context.Context, _ func(string)) error {
	err := fn.writer.Flush(ctx)
	fn.report(ctx)
	return err
}

func (fn *writeFn) Teardown(ctx context.Context) error {
	if fn.writer == nil {
		return nil
	}

	err := fn.writer.Close(ctx)
	stats := fn.writer.Stats()
	log.Infof(ctx, "Wrote %d documents in %d chunks, recreated the stored procedure %d times",
		stats.Committed, stats.Chunks, stats.Recreations)
	return err
}

// report adds the progress of the writer since the last call to the counters.
func (fn *writeFn) report(ctx context.Context) {
	stats := fn.writer.Stats()

	fn.documentsWritten.Inc(ctx, stats.Committed-fn.reported.Committed)
	fn.chunksExecuted.Inc(ctx, stats.Chunks-fn.reported.Chunks)
	fn.procedureRecreations.Inc(ctx, stats.Recreations-fn.reported.Recreations)
	fn.throttledRequests.Inc(ctx, stats.Throttles-fn.reported.Throttles)

	fn.reported = stats
}
