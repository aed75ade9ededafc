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
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/beam-contrib/documentdb/pkg/documentdb"
)

// execution records one call to ExecuteStoredProcedure.
type execution struct {
	Collection string
	Procedure  string
	Docs       []string
	Upsert     bool
}

type fakeCollection struct {
	docs       map[string]documentdb.Document
	order      []string
	procedures map[string]documentdb.StoredProcedure
}

// fakeService is an in-memory Service. The fake* hooks replace the in-memory
// behavior of a method when set; they are called with the lock released.
type fakeService struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	executions  []execution
	created     []string
	deleted     []string
	nextRID     int

	// maxCommit bounds the number of documents committed per execution.
	// Zero commits every document.
	maxCommit int

	fakeQueryDocuments func(collection string, opts *documentdb.QueryOptions) (*documentdb.DocumentPage, error)
	fakeExecute        func(collection, id string, docs []string) ([]byte, error)
	fakeCreateProc     func(collection string) error
}

func newFakeService(collections ...string) *fakeService {
	svc := &fakeService{collections: make(map[string]*fakeCollection)}
	for _, c := range collections {
		svc.addCollection(c)
	}
	return svc
}

func (f *fakeService) addCollection(name string) *fakeCollection {
	c := &fakeCollection{
		docs:       make(map[string]documentdb.Document),
		procedures: make(map[string]documentdb.StoredProcedure),
	}
	f.collections[name] = c
	return c
}

func (f *fakeService) insert(collection string, docs ...documentdb.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.collections[collection]
	for _, d := range docs {
		if _, ok := c.docs[d.ID()]; !ok {
			c.order = append(c.order, d.ID())
		}
		c.docs[d.ID()] = d
	}
}

func (f *fakeService) ids(collection string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := append([]string(nil), f.collections[collection].order...)
	sort.Strings(ids)
	return ids
}

func (f *fakeService) chunkSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var sizes []int
	for _, e := range f.executions {
		sizes = append(sizes, len(e.Docs))
	}
	return sizes
}

func (f *fakeService) collection(name string) (*fakeCollection, error) {
	c, ok := f.collections[name]
	if !ok {
		return nil, &documentdb.Error{StatusCode: http.StatusNotFound, Message: "collection " + name + " not found"}
	}
	return c, nil
}

func (f *fakeService) QueryDocuments(
	_ context.Context,
	collection string,
	_ documentdb.Query,
	opts *documentdb.QueryOptions,
) (*documentdb.DocumentPage, error) {
	if f.fakeQueryDocuments != nil {
		return f.fakeQueryDocuments(collection, opts)
	}
	return f.queryDocuments(collection, opts)
}

// queryDocuments pages through the documents of collection in insertion
// order. The continuation token is the offset of the next page.
func (f *fakeService) queryDocuments(collection string, opts *documentdb.QueryOptions) (*documentdb.DocumentPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.collection(collection)
	if err != nil {
		return nil, err
	}

	start := 0
	if opts.Continuation != "" {
		if start, err = strconv.Atoi(opts.Continuation); err != nil {
			return nil, &documentdb.Error{StatusCode: http.StatusBadRequest, Message: "bad continuation"}
		}
	}
	end := len(c.order)
	if opts.PageSize > 0 && start+opts.PageSize < end {
		end = start + opts.PageSize
	}

	page := &documentdb.DocumentPage{}
	for _, id := range c.order[start:end] {
		page.Documents = append(page.Documents, c.docs[id])
	}
	if end < len(c.order) {
		page.Continuation = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeService) ReadCollection(_ context.Context, name string) (*documentdb.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.collection(name); err != nil {
		return nil, err
	}
	return &documentdb.Collection{Resource: documentdb.Resource{ID: name}}, nil
}

func (f *fakeService) CreateCollection(_ context.Context, spec documentdb.CollectionSpec) (*documentdb.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.collections[spec.ID]; ok {
		return nil, &documentdb.Error{StatusCode: http.StatusConflict}
	}
	f.addCollection(spec.ID)
	return &documentdb.Collection{Resource: documentdb.Resource{ID: spec.ID}, IndexingPolicy: spec.IndexingPolicy}, nil
}

func (f *fakeService) QueryStoredProcedures(
	_ context.Context,
	collection string,
	q documentdb.Query,
) ([]documentdb.StoredProcedure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.collection(collection)
	if err != nil {
		return nil, err
	}

	var sps []documentdb.StoredProcedure
	for _, p := range q.Parameters {
		if sp, ok := c.procedures[fmt.Sprint(p.Value)]; ok {
			sps = append(sps, sp)
		}
	}
	return sps, nil
}

func (f *fakeService) CreateStoredProcedure(
	_ context.Context,
	collection string,
	sp documentdb.StoredProcedure,
) (*documentdb.StoredProcedure, error) {
	if f.fakeCreateProc != nil {
		if err := f.fakeCreateProc(collection); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.collection(collection)
	if err != nil {
		return nil, err
	}
	if _, ok := c.procedures[sp.ID]; ok {
		return nil, &documentdb.Error{StatusCode: http.StatusConflict}
	}

	f.nextRID++
	sp.ResourceID = strconv.Itoa(f.nextRID)
	c.procedures[sp.ID] = sp
	f.created = append(f.created, collection)
	return &sp, nil
}

func (f *fakeService) DeleteStoredProcedure(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := c.procedures[id]; !ok {
		return &documentdb.Error{StatusCode: http.StatusNotFound}
	}
	delete(c.procedures, id)
	f.deleted = append(f.deleted, collection)
	return nil
}

func (f *fakeService) ExecuteStoredProcedure(
	_ context.Context,
	collection string,
	id string,
	args ...any,
) ([]byte, error) {
	docs := args[0].([]string)
	upsert := args[1].(bool)

	f.mu.Lock()
	f.executions = append(f.executions, execution{
		Collection: collection,
		Procedure:  id,
		Docs:       append([]string(nil), docs...),
		Upsert:     upsert,
	})
	f.mu.Unlock()

	if f.fakeExecute != nil {
		return f.fakeExecute(collection, id, docs)
	}
	return f.execute(collection, id, docs, upsert)
}

// execute stores docs like the bulk-import procedure, committing at most
// maxCommit documents.
func (f *fakeService) execute(collection, id string, docs []string, upsert bool) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.collection(collection)
	if err != nil {
		return nil, err
	}
	if _, ok := c.procedures[id]; !ok {
		return nil, &documentdb.Error{StatusCode: http.StatusNotFound, Message: "procedure " + id + " not found"}
	}

	n := len(docs)
	if f.maxCommit > 0 && n > f.maxCommit {
		n = f.maxCommit
	}
	for _, data := range docs[:n] {
		doc, err := documentdb.ParseDocument([]byte(data))
		if err != nil {
			return nil, &documentdb.Error{StatusCode: http.StatusBadRequest, Message: err.Error()}
		}
		if _, ok := c.docs[doc.ID()]; ok && !upsert {
			return nil, &documentdb.Error{StatusCode: http.StatusConflict}
		}
		if _, ok := c.docs[doc.ID()]; !ok {
			c.order = append(c.order, doc.ID())
		}
		c.docs[doc.ID()] = doc
	}
	return []byte(strconv.Itoa(n)), nil
}

func throttledError(retryAfterMs int) error {
	return &documentdb.Error{
		StatusCode: documentdb.StatusTooManyRequests,
		RetryAfter: time.Duration(retryAfterMs) * time.Millisecond,
	}
}

func noSleep(context.Context, time.Duration) error {
	return nil
}
