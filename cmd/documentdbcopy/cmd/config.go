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

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beam-contrib/documentdb/internal/environment"
	"github.com/beam-contrib/documentdb/pkg/beam/io/documentdbio"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config configures a documentdbcopy pipeline. It is read from a YAML file
// and completed from the environment and the command line.
type Config struct {
	Endpoint         string `yaml:"endpoint"`
	Key              string `yaml:"key"`
	Database         string `yaml:"database"`
	UserAgentSuffix  string `yaml:"user_agent_suffix"`
	MaxRetryAttempts int    `yaml:"max_retry_attempts"`

	Source SourceConfig `yaml:"source"`
	Target TargetConfig `yaml:"target"`
}

// SourceConfig selects the documents to read.
type SourceConfig struct {
	Collections []string `yaml:"collections"`
	Query       string   `yaml:"query"`
	PageSize    int      `yaml:"page_size"`
}

// TargetConfig describes where and how documents are written. Endpoint, Key
// and Database default to the top-level connection.
type TargetConfig struct {
	Endpoint          string   `yaml:"endpoint"`
	Key               string   `yaml:"key"`
	Database          string   `yaml:"database"`
	Collections       []string `yaml:"collections"`
	Upsert            *bool    `yaml:"upsert"`
	FlushSize         int      `yaml:"flush_size"`
	ChunkDocuments    int      `yaml:"chunk_documents"`
	MaxChunkBytes     ByteSize `yaml:"max_chunk_bytes"`
	CreateCollections bool     `yaml:"create_collections"`
	StringPrecision   int      `yaml:"string_precision"`
	OfferType         string   `yaml:"offer_type"`
}

// ByteSize is a size in bytes written in YAML either as a number or in a
// human readable form such as 50KB or 1 MiB.
type ByteSize int

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid byte size %q: %w", node.Line, s, err)
	}
	*b = ByteSize(n)
	return nil
}

// String returns the size in SI units.
func (b ByteSize) String() string {
	return humanize.Bytes(uint64(b))
}

// LoadConfig reads the YAML file at path. An empty path yields an empty
// Config. Unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironment fills the connection settings missing from the file.
func (c *Config) applyEnvironment() {
	if c.Endpoint == "" {
		c.Endpoint = environment.Endpoint.Value()
	}
	if c.Key == "" {
		c.Key = environment.Key.Value()
	}
	if c.Database == "" {
		c.Database = environment.Database.Value()
	}
}

// target returns the connection of the written account.
func (c *Config) target() (endpoint, key, database string) {
	endpoint, key, database = c.Target.Endpoint, c.Target.Key, c.Target.Database
	if endpoint == "" {
		endpoint = c.Endpoint
	}
	if key == "" {
		key = c.Key
	}
	if database == "" {
		database = c.Database
	}
	return endpoint, key, database
}

func (c *Config) validateSource() error {
	var errs []error
	errs = append(errs, validateConnection("source", c.Endpoint, c.Key, c.Database))
	if len(c.Source.Collections) == 0 {
		errs = append(errs, errors.New("source: at least one collection is required"))
	}
	if c.Source.PageSize < 0 {
		errs = append(errs, fmt.Errorf("source: page_size must not be negative, got %d", c.Source.PageSize))
	}
	return errors.Join(errs...)
}

func (c *Config) validateTarget() error {
	var errs []error
	endpoint, key, database := c.target()
	errs = append(errs, validateConnection("target", endpoint, key, database))
	if len(c.Target.Collections) == 0 {
		errs = append(errs, errors.New("target: at least one collection is required"))
	}
	if c.Target.StringPrecision < -1 || (c.Target.CreateCollections && c.Target.StringPrecision == 0) {
		errs = append(errs, fmt.Errorf("target: string_precision must be -1 or greater than 0, got %d", c.Target.StringPrecision))
	}
	for name, v := range map[string]int{
		"flush_size":      c.Target.FlushSize,
		"chunk_documents": c.Target.ChunkDocuments,
		"max_chunk_bytes": int(c.Target.MaxChunkBytes),
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("target: %s must not be negative, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}

func validateConnection(side, endpoint, key, database string) error {
	var missing []string
	if endpoint == "" {
		missing = append(missing, "endpoint ("+environment.Endpoint.Key()+")")
	}
	if key == "" {
		missing = append(missing, "key ("+environment.Key.Key()+")")
	}
	if database == "" {
		missing = append(missing, "database ("+environment.Database.Key()+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing %s", side, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) readOptions() []documentdbio.ReadOptionFn {
	var opts []documentdbio.ReadOptionFn
	if c.Source.Query != "" {
		opts = append(opts, documentdbio.WithReadQuery(c.Source.Query))
	}
	if c.Source.PageSize > 0 {
		opts = append(opts, documentdbio.WithReadPageSize(c.Source.PageSize))
	}
	if c.UserAgentSuffix != "" {
		opts = append(opts, documentdbio.WithReadUserAgentSuffix(c.UserAgentSuffix))
	}
	if c.MaxRetryAttempts > 0 {
		opts = append(opts, documentdbio.WithReadMaxRetryAttempts(c.MaxRetryAttempts))
	}
	return opts
}

func (c *Config) writeOptions() []documentdbio.WriteOptionFn {
	t := c.Target
	var opts []documentdbio.WriteOptionFn
	if t.Upsert != nil {
		opts = append(opts, documentdbio.WithWriteUpsert(*t.Upsert))
	}
	if t.FlushSize > 0 {
		opts = append(opts, documentdbio.WithWriteFlushSize(t.FlushSize))
	}
	if t.ChunkDocuments > 0 {
		opts = append(opts, documentdbio.WithWriteChunkDocuments(t.ChunkDocuments))
	}
	if t.MaxChunkBytes > 0 {
		opts = append(opts, documentdbio.WithWriteChunkBytes(int(t.MaxChunkBytes)))
	}
	if t.CreateCollections {
		precision := t.StringPrecision
		if precision == 0 {
			precision = -1
		}
		opts = append(opts, documentdbio.WithWriteCreateCollections(precision, t.OfferType))
	}
	if c.UserAgentSuffix != "" {
		opts = append(opts, documentdbio.WithWriteUserAgentSuffix(c.UserAgentSuffix))
	}
	if c.MaxRetryAttempts > 0 {
		opts = append(opts, documentdbio.WithWriteMaxRetryAttempts(c.MaxRetryAttempts))
	}
	return opts
}
