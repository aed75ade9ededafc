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
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/register"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"google.golang.org/api/iterator"
)

const (
	documentsReadCounterName = baseMetricPrefix + "documents_read"
	readLatencyName          = baseMetricPrefix + "read_latency_ms"
)

func init() {
	beam.RegisterType(reflect.TypeOf((*PartitionDescriptor)(nil)).Elem())

	register.DoFn3x1[context.Context, PartitionDescriptor, func(beam.Y), error](
		&readFn{},
	)
	register.Emitter1[beam.Y]()
}

// Read reads the documents of DocumentDB collections and returns a PCollection<T> for a given
// type T. T is either string, in which case every element is the JSON encoding of a document, or
// a struct with exported fields that should have a "json" tag, into which every document is
// decoded. Each collection is read by a single worker, page by page.
//
// The Read transform has the required parameters:
//   - s: the scope of the pipeline
//   - endpoint: the URL of the DocumentDB account, e.g. https://myaccount.documents.azure.com:443/
//   - key: the base64 master key of the account
//   - database: the database to read from
//   - collections: the collections to read from
//   - t: the type of the elements in the collections
//
// The Read transform takes a variadic number of ReadOptionFn which can set the ReadOption fields:
//   - Query: the SQL query selecting the documents. Defaults to "SELECT * FROM root"
//   - PageSize: the number of documents fetched per request. Defaults to 700
//   - UserAgentSuffix: a suffix appended to the user agent of every request
//   - MaxRetryAttempts: the number of retries of a throttled request before failing. Defaults to
//     unbounded
func Read(
	s beam.Scope,
	endpoint string,
	key string,
	database string,
	collections []string,
	t reflect.Type,
	opts ...ReadOptionFn,
) beam.PCollection {
	s = s.Scope("documentdbio.Read")

	if len(collections) == 0 {
		panic("documentdbio.Read: no collections provided")
	}

	option := &ReadOption{
		Query:    defaultQuery,
		PageSize: defaultPageSize,
	}

	for _, opt := range opts {
		if err := opt(option); err != nil {
			panic(fmt.Sprintf("documentdbio.Read: invalid option: %v", err))
		}
	}

	partitions := make([]PartitionDescriptor, len(collections))
	for i, c := range collections {
		partitions[i] = PartitionDescriptor{
			Endpoint:   endpoint,
			Key:        key,
			Database:   database,
			Collection: c,
			Query:      option.Query,
			PageSize:   option.PageSize,
		}
	}

	fn := newReadFn(endpoint, key, database, t, option)
	return read(s, partitions, fn)
}

// read is the entry point for tests, which provide a readFn with a fake service.
func read(s beam.Scope, partitions []PartitionDescriptor, fn *readFn) beam.PCollection {
	col := beam.CreateList(s, partitions)
	col = beam.Reshuffle(s, col)

	return beam.ParDo(
		s,
		fn,
		col,
		beam.TypeDefinition{Var: beam.YType, T: fn.Type.T},
	)
}

type readFn struct {
	documentDBFn
	Type          beam.EncodedType
	documentsRead beam.Counter
	latencyMs     beam.Distribution
}

func newReadFn(
	endpoint string,
	key string,
	database string,
	t reflect.Type,
	option *ReadOption,
) *readFn {
	return &readFn{
		documentDBFn: documentDBFn{
			Endpoint:         endpoint,
			Key:              key,
			Database:         database,
			UserAgentSuffix:  option.UserAgentSuffix,
			MaxRetryAttempts: option.MaxRetryAttempts,
		},
		Type: beam.EncodedType{T: t},
	}
}

func (fn *readFn) String() string {
	return "readFn"
}

func (fn *readFn) Setup(ctx context.Context) error {
	if err := fn.documentDBFn.Setup(ctx); err != nil {
		return err
	}

	fn.documentsRead = beam.NewCounter(fn.String(), documentsReadCounterName)
	fn.latencyMs = beam.NewDistribution(fn.String(), readLatencyName)
	return nil
}

func (fn *readFn) ProcessElement(
	ctx context.Context,
	partition PartitionDescriptor,
	emit func(beam.Y),
) error {
	src := NewDocumentSource(
		fn.service,
		partition,
		WithSourceRetryOptions(fn.retryOptions()...),
		WithPageObserver(func(_ *documentdb.DocumentPage, latency time.Duration) {
			fn.latencyMs.Update(ctx, latency.Milliseconds())
		}),
	)

	for {
		doc, err := src.Next(ctx)
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}

		elem, err := fn.decode(doc)
		if err != nil {
			return fmt.Errorf("error decoding document %q of collection %s: %w", doc.ID(), partition.Collection, err)
		}

		emit(elem)
		fn.documentsRead.Inc(ctx, 1)
	}
}

func (fn *readFn) decode(doc documentdb.Document) (any, error) {
	data, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	if fn.Type.T.Kind() == reflect.String {
		return reflect.ValueOf(string(data)).Convert(fn.Type.T).Interface(), nil
	}

	val := reflect.New(fn.Type.T) // val : *T
	if err := json.Unmarshal(data, val.Interface()); err != nil {
		return nil, err
	}
	return val.Elem().Interface(), nil
}
