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
	"testing"

	"github.com/beam-contrib/documentdb/internal/environment"
	"github.com/beam-contrib/documentdb/pkg/beam/io/documentdbio"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"github.com/beam-contrib/documentdb/test/integration/internal/containers"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/iterator"
)

const maxRetries = 5

func setUpDatabase(ctx context.Context, t *testing.T) *documentdb.Database {
	t.Helper()

	if environment.EmulatorImage.Missing() {
		t.Skipf("%s not set", environment.EmulatorImage.Key())
	}

	emulator := containers.NewEmulator(
		ctx,
		t,
		environment.EmulatorImage.Value(),
		maxRetries,
		containers.WithEnv(map[string]string{"AZURE_COSMOS_EMULATOR_PARTITION_COUNT": "4"}),
	)

	client, err := documentdb.NewClient(emulator.Endpoint, emulator.Key, documentdb.WithHTTPClient(emulator.HTTPClient()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	db, err := client.CreateDatabase(ctx, "beam")
	if err != nil {
		t.Fatalf("CreateDatabase() error = %v", err)
	}
	return db
}

func readAll(ctx context.Context, t *testing.T, db *documentdb.Database, collection string) []string {
	t.Helper()

	src := documentdbio.NewDocumentSource(db, documentdbio.PartitionDescriptor{Collection: collection, PageSize: 7})

	var ids []string
	for {
		doc, err := src.Next(ctx)
		if err == iterator.Done {
			return ids
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		ids = append(ids, doc.ID())
	}
}

func TestBulkWriter_roundTrip(t *testing.T) {
	ctx := context.Background()
	db := setUpDatabase(ctx, t)

	cfg := documentdbio.DefaultBulkWriterConfig("a", "b")
	cfg.CreateCollections = true
	cfg.MaxDocumentsPerFlush = 40
	cfg.MaxDocumentsPerChunk = 15

	w, err := documentdbio.NewBulkWriter(ctx, db, nil, cfg)
	if err != nil {
		t.Fatalf("NewBulkWriter() error = %v", err)
	}

	want := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("doc-%03d", i)
		want[id] = true
		if err := w.Write(ctx, documentdb.Document{"id": id, "n": i}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := make(map[string]bool)
	for _, collection := range []string{"a", "b"} {
		for _, id := range readAll(ctx, t, db, collection) {
			got[id] = true
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stored documents mismatch (-want +got):\n%s", diff)
	}

	stats := w.Stats()
	if stats.Committed != 100 {
		t.Errorf("Stats().Committed = %v, want 100", stats.Committed)
	}
}

func TestProcedureManager_recreate(t *testing.T) {
	ctx := context.Background()
	db := setUpDatabase(ctx, t)

	cfg := documentdbio.DefaultBulkWriterConfig("coll")
	cfg.CreateCollections = true
	w, err := documentdbio.NewBulkWriter(ctx, db, nil, cfg)
	if err != nil {
		t.Fatalf("NewBulkWriter() error = %v", err)
	}

	if err := db.DeleteStoredProcedure(ctx, "coll", documentdbio.BulkImportProcedureID); err != nil {
		t.Fatalf("DeleteStoredProcedure() error = %v", err)
	}

	if err := w.Write(ctx, documentdb.Document{"id": "a"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := w.Stats().Recreations; got != 1 {
		t.Errorf("Stats().Recreations = %v, want 1", got)
	}
	if got := readAll(ctx, t, db, "coll"); len(got) != 1 || got[0] != "a" {
		t.Errorf("stored ids = %v, want [a]", got)
	}
}
