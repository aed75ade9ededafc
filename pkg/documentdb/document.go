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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const idKey = "id"

// Document is a schemaless JSON document. Numbers are kept as json.Number so
// that values read from the service are written back without loss of
// precision.
type Document map[string]any

// ParseDocument decodes a single JSON object.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := unmarshalJSON(data, &doc); err != nil {
		return nil, fmt.Errorf("error decoding document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("error decoding document: not a JSON object")
	}
	return doc, nil
}

// ID returns the id of the document, or "" if it has none. Ids that are not
// strings are treated as missing.
func (d Document) ID() string {
	id, _ := d[idKey].(string)
	return id
}

// SetID sets the id of the document.
func (d Document) SetID(id string) {
	d[idKey] = id
}

// Marshal returns the JSON encoding of the document.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("error encoding document %q: %w", d.ID(), err)
	}
	return data, nil
}

func unmarshalJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after top-level value")
	}
	return nil
}
