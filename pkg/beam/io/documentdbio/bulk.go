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
	"errors"
	"fmt"
	"time"

	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"github.com/beam-contrib/documentdb/pkg/documentdb/retry"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxDocumentsPerFlush = 500
	defaultMaxDocumentsPerChunk = 50
	defaultMaxChunkBytes        = 50000
	defaultStringPrecision      = -1
)

// ErrWriterClosed is returned by Write after Close.
var ErrWriterClosed = errors.New("bulk writer is closed")

// BulkWriterConfig configures a BulkWriter.
type BulkWriterConfig struct {
	// Collections are the target collections, written to in turn.
	Collections []string
	// Upsert replaces existing documents with the same id. When false a
	// document that already exists fails the write.
	Upsert bool
	// MaxDocumentsPerFlush is the number of buffered documents that triggers
	// a flush. Defaults to 500.
	MaxDocumentsPerFlush int
	// MaxDocumentsPerChunk bounds the number of documents sent in a single
	// procedure execution. Defaults to 50.
	MaxDocumentsPerChunk int
	// MaxChunkBytes bounds the encoded size of the documents sent in a single
	// procedure execution, unless the chunk holds a single document. Defaults
	// to 50000.
	MaxChunkBytes int
	// CreateCollections creates missing target collections with a range
	// indexing policy.
	CreateCollections bool
	// StringPrecision is the precision of the string range indexes of created
	// collections. Defaults to -1, the maximum precision.
	StringPrecision int
	// OfferType is the performance level of created collections. Defaults to
	// "S3".
	OfferType string
	// RetryOptions configure the retry policy of every request.
	RetryOptions []retry.Option
}

// DefaultBulkWriterConfig returns a configuration upserting into collections
// with the default limits.
func DefaultBulkWriterConfig(collections ...string) BulkWriterConfig {
	return BulkWriterConfig{
		Collections:          collections,
		Upsert:               true,
		MaxDocumentsPerFlush: defaultMaxDocumentsPerFlush,
		MaxDocumentsPerChunk: defaultMaxDocumentsPerChunk,
		MaxChunkBytes:        defaultMaxChunkBytes,
		StringPrecision:      defaultStringPrecision,
		OfferType:            documentdb.DefaultOfferType,
	}
}

func (c *BulkWriterConfig) validate() error {
	if len(c.Collections) == 0 {
		return errors.New("at least one target collection is required")
	}
	for _, coll := range c.Collections {
		if coll == "" {
			return errors.New("target collection names must not be empty")
		}
	}
	if c.MaxDocumentsPerFlush == 0 {
		c.MaxDocumentsPerFlush = defaultMaxDocumentsPerFlush
	}
	if c.MaxDocumentsPerChunk == 0 {
		c.MaxDocumentsPerChunk = defaultMaxDocumentsPerChunk
	}
	if c.MaxChunkBytes == 0 {
		c.MaxChunkBytes = defaultMaxChunkBytes
	}
	if c.StringPrecision == 0 {
		c.StringPrecision = defaultStringPrecision
	}
	if c.OfferType == "" {
		c.OfferType = documentdb.DefaultOfferType
	}
	switch {
	case c.MaxDocumentsPerFlush < 0:
		return fmt.Errorf("max documents per flush must be greater than 0, got %d", c.MaxDocumentsPerFlush)
	case c.MaxDocumentsPerChunk < 0:
		return fmt.Errorf("max documents per chunk must be greater than 0, got %d", c.MaxDocumentsPerChunk)
	case c.MaxChunkBytes < 0:
		return fmt.Errorf("max chunk bytes must be greater than 0, got %d", c.MaxChunkBytes)
	case c.StringPrecision < -1:
		return fmt.Errorf("string precision must be -1 or greater than 0, got %d", c.StringPrecision)
	}
	return nil
}

// WriterStats counts the work done by a BulkWriter.
type WriterStats struct {
	// Documents is the number of documents passed to Write.
	Documents int64
	// Flushes is the number of non-empty flushes.
	Flushes int64
	// Chunks is the number of successful procedure executions.
	Chunks int64
	// Committed is the number of documents the procedure reported committed.
	Committed int64
	// Recreations is the number of times the procedure was recreated after
	// the service refused to execute it.
	Recreations int64
	// Throttles is the number of throttled requests that were retried.
	Throttles int64
}

// BulkWriter buffers documents and writes them in chunks through the
// bulk-import procedure, sending each flushed batch to the next target
// collection in turn.
//
// A BulkWriter is not safe for concurrent use.
type BulkWriter struct {
	svc       Service
	procs     *ProcedureManager
	cfg       BulkWriterConfig
	retryOpts []retry.Option
	targets   *targetSet

	pending []string
	stats   WriterStats
	closed  bool
}

// NewBulkWriter prepares the target collections of cfg: it creates them if
// configured to, and makes sure each one has the bulk-import procedure. If
// procs is nil, a ProcedureManager is created from svc.
func NewBulkWriter(
	ctx context.Context,
	svc Service,
	procs *ProcedureManager,
	cfg BulkWriterConfig,
) (*BulkWriter, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid bulk writer config: %w", err)
	}

	w := &BulkWriter{
		svc:     svc,
		procs:   procs,
		cfg:     cfg,
		targets: newTargetSet(cfg.Collections),
		pending: make([]string, 0, cfg.MaxDocumentsPerFlush),
	}
	w.retryOpts = append(append([]retry.Option(nil), cfg.RetryOptions...),
		retry.WithNotify(func(int, time.Duration, error) {
			w.stats.Throttles++
		}))
	if w.procs == nil {
		w.procs = NewProcedureManager(svc, WithProcedureRetryOptions(cfg.RetryOptions...))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range w.targets.targets {
		t := t
		g.Go(func() error {
			if cfg.CreateCollections {
				if err := w.ensureCollection(gctx, t.collection); err != nil {
					return err
				}
			}
			sp, err := w.procs.Ensure(gctx, t.collection)
			if err != nil {
				return err
			}
			t.procedure = sp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Infof(ctx, "Writing to %d collections, flushing every %d documents in chunks of up to %d documents and %s",
		len(cfg.Collections), cfg.MaxDocumentsPerFlush, cfg.MaxDocumentsPerChunk,
		humanize.Bytes(uint64(cfg.MaxChunkBytes)))
	return w, nil
}

func (w *BulkWriter) ensureCollection(ctx context.Context, collection string) error {
	err := retry.Do(ctx, func(ctx context.Context) error {
		_, err := w.svc.ReadCollection(ctx, collection)
		return err
	}, w.cfg.RetryOptions...)
	if err == nil {
		return nil
	}
	if !documentdb.IsNotFound(err) {
		return fmt.Errorf("error reading collection %s: %w", collection, err)
	}

	spec := documentdb.CollectionSpec{
		ID:             collection,
		IndexingPolicy: documentdb.RangeIndexingPolicy(w.cfg.StringPrecision),
		OfferType:      w.cfg.OfferType,
	}
	err = retry.Do(ctx, func(ctx context.Context) error {
		_, err := w.svc.CreateCollection(ctx, spec)
		return err
	}, w.cfg.RetryOptions...)
	switch {
	case err == nil:
		log.Infof(ctx, "Created collection %s with offer %s", collection, spec.OfferType)
	case documentdb.IsConflict(err):
	default:
		return fmt.Errorf("error creating collection %s: %w", collection, err)
	}
	return nil
}

// Write buffers doc, assigning it a random id if it has none, and flushes
// when the buffer is full. The document is encoded once, so a retried
// chunk resends exactly the same content.
func (w *BulkWriter) Write(ctx context.Context, doc documentdb.Document) error {
	if w.closed {
		return ErrWriterClosed
	}

	if doc.ID() == "" {
		doc.SetID(uuid.NewString())
	}
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	w.pending = append(w.pending, string(data))
	w.stats.Documents++

	if len(w.pending) >= w.cfg.MaxDocumentsPerFlush {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered documents to the current target collection and
// moves on to the next target, also when the flush fails. After a failure the
// buffer holds the documents that were not committed.
func (w *BulkWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	t := w.targets.next()
	defer w.targets.advance()
	w.stats.Flushes++

	docs := w.pending
	for len(docs) > 0 {
		n := chunkLen(docs, w.cfg.MaxDocumentsPerChunk, w.cfg.MaxChunkBytes)

		committed, err := w.execute(ctx, t, docs[:n])
		if err != nil {
			w.pending = append(w.pending[:0], docs...)
			return err
		}
		if committed == 0 {
			log.Warnf(ctx, "Bulk import on collection %s committed none of %d documents, resending", t.collection, n)
		}
		docs = docs[committed:]
	}

	w.pending = w.pending[:0]
	return nil
}

func (w *BulkWriter) execute(ctx context.Context, t *target, chunk []string) (int, error) {
	for {
		body, err := retry.DoValue(ctx, func(ctx context.Context) ([]byte, error) {
			return w.svc.ExecuteStoredProcedure(ctx, t.collection, t.procedure.ID, chunk, w.cfg.Upsert)
		}, w.retryOpts...)
		if err == nil {
			committed, err := parseCommitted(body, len(chunk))
			if err != nil {
				return 0, fmt.Errorf("error executing stored procedure %s on collection %s: %w",
					t.procedure.ID, t.collection, err)
			}
			w.stats.Chunks++
			w.stats.Committed += int64(committed)
			return committed, nil
		}
		if !documentdb.IsProcedureInvalid(err) {
			return 0, fmt.Errorf("error executing stored procedure %s on collection %s: %w",
				t.procedure.ID, t.collection, err)
		}

		log.Warnf(ctx, "Stored procedure %s on collection %s can no longer be executed, recreating it: %v",
			t.procedure.ID, t.collection, err)
		sp, err := w.procs.Recreate(ctx, t.collection, t.procedure)
		if err != nil {
			return 0, err
		}
		t.procedure = sp
		w.stats.Recreations++
	}
}

// Close flushes the buffered documents. Later calls do nothing.
func (w *BulkWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.Flush(ctx)
}

// Reset discards the buffered documents.
func (w *BulkWriter) Reset() {
	w.pending = w.pending[:0]
}

// Pending returns the number of buffered documents.
func (w *BulkWriter) Pending() int {
	return len(w.pending)
}

// Stats returns the counters of the writer.
func (w *BulkWriter) Stats() WriterStats {
	return w.stats
}
