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
	"fmt"
	"strconv"
	"strings"
)

// chunkLen returns the number of documents at the head of docs that form the
// next chunk: at most maxDocs documents whose encodings add up to at most
// maxBytes. The first document is always part of the chunk, even when it
// alone is larger than maxBytes.
func chunkLen(docs []string, maxDocs int, maxBytes int) int {
	if len(docs) == 0 {
		return 0
	}

	n, size := 1, len(docs[0])
	for n < len(docs) && n < maxDocs {
		if size+len(docs[n]) > maxBytes {
			break
		}
		size += len(docs[n])
		n++
	}
	return n
}

// parseCommitted parses the response of the bulk-import procedure, the number
// of documents of a chunk of size n that were committed.
func parseCommitted(body []byte, n int) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(body)), `"`)
	committed, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bulk import response %q: %w", body, err)
	}
	if committed < 0 || committed > n {
		return 0, fmt.Errorf("bulk import reported %d documents committed out of %d", committed, n)
	}
	return committed, nil
}
