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
	"github.com/beam-contrib/documentdb/pkg/documentdb"
)

type target struct {
	collection string
	procedure  *documentdb.StoredProcedure
}

// targetSet rotates between the target collections of a writer, one target
// per flush.
type targetSet struct {
	targets []*target
	current int
}

func newTargetSet(collections []string) *targetSet {
	ts := &targetSet{targets: make([]*target, len(collections))}
	for i, c := range collections {
		ts.targets[i] = &target{collection: c}
	}
	return ts
}

func (ts *targetSet) next() *target {
	return ts.targets[ts.current]
}

func (ts *targetSet) advance() {
	ts.current = (ts.current + 1) % len(ts.targets)
}
