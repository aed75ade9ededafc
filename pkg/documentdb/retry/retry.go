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

// Package retry implements the backoff policy wrapped around every call to
// the DocumentDB service.
//
// Only throttled requests (status 429) are retried. The delay before the next
// attempt is the delay suggested by the service plus a step that grows
// linearly with the attempt count. Every other error is returned immediately.
//
// By default a Policy never gives up: a sustained throttling condition blocks
// the caller until the service grants capacity or the context is cancelled.
// WithMaxAttempts and WithMaxWait bound the loop when that is not acceptable.
//
// A Policy holds the state of one logical operation and must not be reused
// for another one or shared between goroutines. Do and DoValue create a fresh
// Policy per call.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/beam-contrib/documentdb/pkg/documentdb"
)

const (
	// DefaultStep is added to the suggested delay once per attempt.
	DefaultStep = 500 * time.Millisecond
	// DefaultDelay is used when a throttled response carries no delay.
	DefaultDelay = 3 * time.Second
)

// NotRetriableError wraps an error the policy does not retry.
type NotRetriableError struct {
	Err error
}

func (e *NotRetriableError) Error() string {
	return "not retriable: " + e.Err.Error()
}

func (e *NotRetriableError) Unwrap() error {
	return e.Err
}

// ExhaustedError wraps the last throttling error once a configured bound on
// attempts or total wait time is reached.
type ExhaustedError struct {
	Attempts int
	Waited   time.Duration
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts and %v: %v", e.Attempts, e.Waited, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Option configures a Policy.
type Option func(*Policy)

// WithStep sets the linear backoff step added per attempt.
func WithStep(step time.Duration) Option {
	return func(p *Policy) {
		p.step = step
	}
}

// WithDefaultDelay sets the delay used when the service suggests none.
func WithDefaultDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.defaultDelay = d
	}
}

// WithMaxAttempts bounds the number of retries. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.maxAttempts = n
	}
}

// WithMaxWait bounds the total time spent sleeping. Zero means unbounded.
func WithMaxWait(d time.Duration) Option {
	return func(p *Policy) {
		p.maxWait = d
	}
}

// WithNotify registers a function called before every sleep.
func WithNotify(notify func(attempt int, delay time.Duration, err error)) Option {
	return func(p *Policy) {
		p.notify = notify
	}
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) {
		p.sleep = sleep
	}
}

// Policy is the retry state of one logical operation.
type Policy struct {
	step         time.Duration
	defaultDelay time.Duration
	maxAttempts  int
	maxWait      time.Duration
	notify       func(attempt int, delay time.Duration, err error)
	sleep        func(ctx context.Context, d time.Duration) error

	attempt   int
	delay     time.Duration
	waited    time.Duration
	exhausted bool
}

// New returns a Policy in its initial state.
func New(opts ...Option) *Policy {
	p := &Policy{
		step:         DefaultStep,
		defaultDelay: DefaultDelay,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldRetry reports whether the caller should attempt the operation
// (again). It is always true unless a bound was configured and reached.
func (p *Policy) ShouldRetry() bool {
	return !p.exhausted
}

// Attempt returns the number of retries so far.
func (p *Policy) Attempt() int {
	return p.attempt
}

// Delay returns the last computed delay.
func (p *Policy) Delay() time.Duration {
	return p.delay
}

// ErrorOccurred reports a failed attempt. If err is a throttling error it
// blocks for the computed delay and returns nil, and the caller should try
// again. Otherwise it returns a *NotRetriableError wrapping err without
// sleeping.
func (p *Policy) ErrorOccurred(ctx context.Context, err error) error {
	retryAfter, throttled := documentdb.IsThrottled(err)
	if !throttled {
		return &NotRetriableError{Err: err}
	}

	p.attempt++
	p.delay = retryAfter + time.Duration(p.attempt)*p.step
	if retryAfter == 0 {
		p.delay = p.defaultDelay
	}

	if (p.maxAttempts > 0 && p.attempt > p.maxAttempts) ||
		(p.maxWait > 0 && p.waited+p.delay > p.maxWait) {
		p.exhausted = true
		return &ExhaustedError{Attempts: p.attempt - 1, Waited: p.waited, Err: err}
	}

	log.Infof(ctx, "Request throttled, attempt %d, retrying after %v", p.attempt, p.delay)
	if p.notify != nil {
		p.notify(p.attempt, p.delay, err)
	}

	if err := p.sleep(ctx, p.delay); err != nil {
		return err
	}
	p.waited += p.delay
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls fn until it succeeds or fails with an error that is not retried.
func Do(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	_, err := DoValue(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// DoValue is Do for functions returning a value.
func DoValue[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var zero T

	p := New(opts...)
	for p.ShouldRetry() {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if err := p.ErrorOccurred(ctx, err); err != nil {
			return zero, err
		}
	}
	// Not reached: ShouldRetry only turns false together with an
	// ExhaustedError from ErrorOccurred.
	return zero, fmt.Errorf("retry loop ended after %d attempts", p.attempt)
}
