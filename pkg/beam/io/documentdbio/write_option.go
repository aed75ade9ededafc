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
	"errors"
)

// WriteOption represents options for writing to DocumentDB.
type WriteOption struct {
	Upsert            bool
	FlushSize         int
	ChunkDocuments    int
	ChunkBytes        int
	CreateCollections bool
	StringPrecision   int
	OfferType         string
	UserAgentSuffix   string
	MaxRetryAttempts  int
}

// WriteOptionFn is a function that configures a WriteOption.
type WriteOptionFn func(option *WriteOption) error

// WithWriteUpsert configures the WriteOption whether to replace documents that already exist. When
// disabled, writing a document whose id already exists fails the pipeline.
func WithWriteUpsert(upsert bool) WriteOptionFn {
	return func(o *WriteOption) error {
		o.Upsert = upsert
		return nil
	}
}

// WithWriteFlushSize configures the WriteOption to flush buffered documents once the given number
// of documents is reached.
func WithWriteFlushSize(flushSize int) WriteOptionFn {
	return func(o *WriteOption) error {
		if flushSize <= 0 {
			return errors.New("flush size must be greater than 0")
		}

		o.FlushSize = flushSize
		return nil
	}
}

// WithWriteChunkDocuments configures the WriteOption to send at most the given number of documents
// per stored procedure execution.
func WithWriteChunkDocuments(documents int) WriteOptionFn {
	return func(o *WriteOption) error {
		if documents <= 0 {
			return errors.New("chunk documents must be greater than 0")
		}

		o.ChunkDocuments = documents
		return nil
	}
}

// WithWriteChunkBytes configures the WriteOption to send at most the given number of encoded bytes
// per stored procedure execution. A single document larger than the limit is still sent on its own.
func WithWriteChunkBytes(bytes int) WriteOptionFn {
	return func(o *WriteOption) error {
		if bytes <= 0 {
			return errors.New("chunk bytes must be greater than 0")
		}

		o.ChunkBytes = bytes
		return nil
	}
}

// WithWriteCreateCollections configures the WriteOption to create missing target collections with
// a range indexing policy of the given string precision (-1 for maximum precision) and the given
// offer type. An empty offer type means "S3".
func WithWriteCreateCollections(stringPrecision int, offerType string) WriteOptionFn {
	return func(o *WriteOption) error {
		if stringPrecision == 0 || stringPrecision < -1 {
			return errors.New("string precision must be -1 or greater than 0")
		}

		o.CreateCollections = true
		o.StringPrecision = stringPrecision
		if offerType != "" {
			o.OfferType = offerType
		}
		return nil
	}
}

// WithWriteUserAgentSuffix configures the WriteOption to append the suffix to the user agent of
// every request.
func WithWriteUserAgentSuffix(suffix string) WriteOptionFn {
	return func(o *WriteOption) error {
		o.UserAgentSuffix = suffix
		return nil
	}
}

// WithWriteMaxRetryAttempts configures the WriteOption to give up on a throttled request after the
// given number of retries. By default throttled requests are retried until they succeed.
func WithWriteMaxRetryAttempts(attempts int) WriteOptionFn {
	return func(o *WriteOption) error {
		if attempts <= 0 {
			return errors.New("max retry attempts must be greater than 0")
		}

		o.MaxRetryAttempts = attempts
		return nil
	}
}
