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
	"strings"
)

// ReadOption represents options for reading from DocumentDB.
type ReadOption struct {
	Query            string
	PageSize         int
	UserAgentSuffix  string
	MaxRetryAttempts int
}

// ReadOptionFn is a function that configures a ReadOption.
type ReadOptionFn func(option *ReadOption) error

// WithReadQuery configures the ReadOption to read only the documents matching the SQL query, e.g.
// "SELECT * FROM root r WHERE r.type = 'order'".
func WithReadQuery(query string) ReadOptionFn {
	return func(o *ReadOption) error {
		if strings.TrimSpace(query) == "" {
			return errors.New("query must not be empty")
		}

		o.Query = query
		return nil
	}
}

// WithReadPageSize configures the ReadOption to fetch the given number of documents per request.
func WithReadPageSize(pageSize int) ReadOptionFn {
	return func(o *ReadOption) error {
		if pageSize <= 0 {
			return errors.New("page size must be greater than 0")
		}

		o.PageSize = pageSize
		return nil
	}
}

// WithReadUserAgentSuffix configures the ReadOption to append the suffix to the user agent of
// every request.
func WithReadUserAgentSuffix(suffix string) ReadOptionFn {
	return func(o *ReadOption) error {
		o.UserAgentSuffix = suffix
		return nil
	}
}

// WithReadMaxRetryAttempts configures the ReadOption to give up on a throttled request after the
// given number of retries. By default throttled requests are retried until they succeed.
func WithReadMaxRetryAttempts(attempts int) ReadOptionFn {
	return func(o *ReadOption) error {
		if attempts <= 0 {
			return errors.New("max retry attempts must be greater than 0")
		}

		o.MaxRetryAttempts = attempts
		return nil
	}
}
