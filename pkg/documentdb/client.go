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

// Package documentdb is a client for the REST (SQL) API of the DocumentDB
// document database service. It covers what a bulk transfer needs: paged
// document queries, document creation, collection management and server-side
// stored procedures.
//
// Every non-2xx response is returned as an *Error, which carries the status
// code and, for throttled requests, the delay suggested by the service. The
// client itself never retries; see package retry.
package documentdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Version of the client, reported in the User-Agent header.
const Version = "0.1.0"

const (
	// DefaultAPIVersion is the REST API version sent with every request.
	DefaultAPIVersion = "2018-12-31"

	userAgentPrefix = "beam-documentdb/" + Version

	headerActivityID         = "x-ms-activity-id"
	headerAPIVersion         = "x-ms-version"
	headerConsistencyLevel   = "x-ms-consistency-level"
	headerContinuation       = "x-ms-continuation"
	headerDate               = "x-ms-date"
	headerEnableCrossPart    = "x-ms-documentdb-query-enablecrosspartition"
	headerIsQuery            = "x-ms-documentdb-isquery"
	headerIsUpsert           = "x-ms-documentdb-is-upsert"
	headerMaxItemCount       = "x-ms-max-item-count"
	headerOfferType          = "x-ms-offer-type"
	headerRequestCharge      = "x-ms-request-charge"
	headerRetryAfterMs       = "x-ms-retry-after-ms"
	headerSubStatus          = "x-ms-substatus"
	contentTypeJSON          = "application/json"
	contentTypeQueryJSON     = "application/query+json"
	resourceTypeDatabase     = "dbs"
	resourceTypeCollection   = "colls"
	resourceTypeDocument     = "docs"
	resourceTypeStoredProc   = "sprocs"
	maxErrorBodyBytes        = 64 * 1024
	defaultHTTPClientTimeout = 5 * time.Minute
)

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithUserAgentSuffix appends suffix to the User-Agent header, to identify
// the application in the service diagnostics.
func WithUserAgentSuffix(suffix string) ClientOption {
	return func(c *Client) error {
		c.userAgent = userAgentPrefix
		if suffix = strings.TrimSpace(suffix); suffix != "" {
			c.userAgent += " " + suffix
		}
		return nil
	}
}

// WithConsistencyLevel overrides the account consistency level for every
// request, e.g. "Session" or "Eventual".
func WithConsistencyLevel(level string) ClientOption {
	return func(c *Client) error {
		c.consistencyLevel = level
		return nil
	}
}

// WithAPIVersion overrides DefaultAPIVersion.
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) error {
		if version == "" {
			return fmt.Errorf("api version must not be empty")
		}
		c.apiVersion = version
		return nil
	}
}

// Client is a DocumentDB account client. It is safe for concurrent use.
type Client struct {
	endpoint         *url.URL
	auth             *masterKeyAuthorizer
	httpClient       *http.Client
	userAgent        string
	apiVersion       string
	consistencyLevel string
	now              func() time.Time
}

// NewClient returns a client for the account at endpoint, authenticated with
// its master key.
func NewClient(endpoint, key string, opts ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("documentdb: endpoint must be set")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("documentdb: invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("documentdb: endpoint %q must be an http(s) URL", endpoint)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	auth, err := newMasterKeyAuthorizer(key)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:   u,
		auth:       auth,
		httpClient: &http.Client{Timeout: defaultHTTPClientTimeout},
		userAgent:  userAgentPrefix,
		apiVersion: DefaultAPIVersion,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("documentdb: invalid option: %w", err)
		}
	}
	return c, nil
}

// Database returns a handle to the named database. No request is sent.
func (c *Client) Database(name string) *Database {
	return &Database{client: c, name: name}
}

type request struct {
	method       string
	resourceType string
	// resourceLink is the name based link used for signing.
	resourceLink string
	// segments of the URL path relative to the endpoint, unescaped.
	segments []string
	header   http.Header
	body     any
	rawBody  []byte
}

type response struct {
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, req *request) (*response, error) {
	var body io.Reader
	switch {
	case req.rawBody != nil:
		body = bytes.NewReader(req.rawBody)
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("documentdb: error encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := *c.endpoint
	u.Path = c.endpoint.Path + "/" + strings.Join(req.segments, "/")
	u.RawPath = c.endpoint.EscapedPath() + "/" + escapedPath(req.segments...)

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("documentdb: error creating request: %w", err)
	}

	date := c.now().UTC().Format(http.TimeFormat)
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(headerDate, date)
	httpReq.Header.Set(headerAPIVersion, c.apiVersion)
	httpReq.Header.Set("Authorization", c.auth.authorization(req.method, req.resourceType, req.resourceLink, date))
	if c.consistencyLevel != "" {
		httpReq.Header.Set(headerConsistencyLevel, c.consistencyLevel)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("documentdb: %s %s: %w", req.method, req.resourceLink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, newResponseError(resp, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("documentdb: error reading response of %s %s: %w", req.method, req.resourceLink, err)
	}
	return &response{header: resp.Header, body: data}, nil
}

func requestCharge(h http.Header) float64 {
	charge, _ := strconv.ParseFloat(h.Get(headerRequestCharge), 64)
	return charge
}

func link(segments ...string) string {
	return strings.Join(segments, "/")
}

func escapedPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
