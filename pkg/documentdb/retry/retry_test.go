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

package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/beam-contrib/documentdb/pkg/documentdb"
	"github.com/google/go-cmp/cmp"
)

func throttled(retryAfter time.Duration) error {
	return &documentdb.Error{StatusCode: http.StatusTooManyRequests, RetryAfter: retryAfter}
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDoValue_throttledThenSuccess(t *testing.T) {
	var sleeper recordingSleeper
	calls := 0

	got, err := DoValue(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", throttled(100 * time.Millisecond)
		}
		return "ok", nil
	}, WithSleep(sleeper.sleep), WithStep(500*time.Millisecond))

	if err != nil {
		t.Fatalf("DoValue() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("DoValue() = %v, want ok", got)
	}
	if calls != 2 {
		t.Errorf("calls = %v, want 2", calls)
	}
	if diff := cmp.Diff([]time.Duration{600 * time.Millisecond}, sleeper.delays); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicy_ErrorOccurred(t *testing.T) {
	tests := []struct {
		name       string
		errs       []error
		wantDelays []time.Duration
	}{
		{
			name: "Delay grows linearly with the attempt count",
			errs: []error{
				throttled(100 * time.Millisecond),
				throttled(100 * time.Millisecond),
				throttled(100 * time.Millisecond),
			},
			wantDelays: []time.Duration{
				600 * time.Millisecond,
				1100 * time.Millisecond,
				1600 * time.Millisecond,
			},
		},
		{
			name:       "Default delay when the service suggests none",
			errs:       []error{throttled(0)},
			wantDelays: []time.Duration{DefaultDelay},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sleeper recordingSleeper
			p := New(WithSleep(sleeper.sleep))

			for _, err := range tt.errs {
				if !p.ShouldRetry() {
					t.Fatalf("ShouldRetry() = false, want true")
				}
				if err := p.ErrorOccurred(context.Background(), err); err != nil {
					t.Fatalf("ErrorOccurred() error = %v", err)
				}
			}

			if diff := cmp.Diff(tt.wantDelays, sleeper.delays); diff != "" {
				t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
			}
			if got := p.Attempt(); got != len(tt.errs) {
				t.Errorf("Attempt() = %v, want %v", got, len(tt.errs))
			}
		})
	}
}

func TestPolicy_freshInstanceResets(t *testing.T) {
	var sleeper recordingSleeper

	first := New(WithSleep(sleeper.sleep))
	for i := 0; i < 3; i++ {
		if err := first.ErrorOccurred(context.Background(), throttled(100*time.Millisecond)); err != nil {
			t.Fatalf("ErrorOccurred() error = %v", err)
		}
	}

	second := New(WithSleep(sleeper.sleep))
	if err := second.ErrorOccurred(context.Background(), throttled(100*time.Millisecond)); err != nil {
		t.Fatalf("ErrorOccurred() error = %v", err)
	}

	if got, want := second.Delay(), 600*time.Millisecond; got != want {
		t.Errorf("Delay() = %v, want %v", got, want)
	}
}

func TestPolicy_ErrorOccurred_notRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "Plain error", err: errors.New("connection reset")},
		{name: "Service error", err: &documentdb.Error{StatusCode: http.StatusBadRequest}},
		{name: "Procedure invalidated", err: &documentdb.Error{StatusCode: http.StatusForbidden}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sleeper recordingSleeper
			p := New(WithSleep(sleeper.sleep))

			err := p.ErrorOccurred(context.Background(), tt.err)

			var notRetriable *NotRetriableError
			if !errors.As(err, &notRetriable) {
				t.Fatalf("ErrorOccurred() error = %v, want *NotRetriableError", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("ErrorOccurred() error does not wrap %v", tt.err)
			}
			if len(sleeper.delays) != 0 {
				t.Errorf("slept %v, want no sleep", sleeper.delays)
			}
		})
	}
}

func TestDo_maxAttempts(t *testing.T) {
	var sleeper recordingSleeper
	calls := 0

	err := Do(context.Background(), func(context.Context) error {
		calls++
		return throttled(time.Millisecond)
	}, WithSleep(sleeper.sleep), WithMaxAttempts(2))

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Do() error = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 2 {
		t.Errorf("ExhaustedError.Attempts = %v, want 2", exhausted.Attempts)
	}
	if calls != 3 {
		t.Errorf("calls = %v, want 3", calls)
	}
	if _, ok := documentdb.IsThrottled(err); !ok {
		t.Errorf("Do() error does not wrap the throttling error")
	}
}

func TestDo_maxWait(t *testing.T) {
	var sleeper recordingSleeper

	err := Do(context.Background(), func(context.Context) error {
		return throttled(100 * time.Millisecond)
	}, WithSleep(sleeper.sleep), WithMaxWait(time.Second))

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Do() error = %v, want *ExhaustedError", err)
	}
	// 600ms fits, 600ms+1100ms does not.
	if diff := cmp.Diff([]time.Duration{600 * time.Millisecond}, sleeper.delays); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestDo_contextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(context.Context) error {
		return throttled(time.Hour)
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want %v", err, context.Canceled)
	}
}

func TestDo_notify(t *testing.T) {
	var (
		sleeper  recordingSleeper
		attempts []int
	)
	calls := 0

	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return throttled(time.Millisecond)
		}
		return nil
	}, WithSleep(sleeper.sleep), WithNotify(func(attempt int, _ time.Duration, _ error) {
		attempts = append(attempts, attempt)
	}))

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, attempts); diff != "" {
		t.Errorf("notified attempts mismatch (-want +got):\n%s", diff)
	}
}
