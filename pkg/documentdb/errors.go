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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// StatusTooManyRequests is the status the service returns when the request
// rate of the account exceeds its provisioned throughput.
const StatusTooManyRequests = http.StatusTooManyRequests

// Error is returned for every response of the service with a non-2xx status.
type Error struct {
	StatusCode int
	SubStatus  int
	Code       string
	Message    string
	ActivityID string
	// RetryAfter is the delay suggested by the service before the request
	// should be sent again. It is only set on throttled responses.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("documentdb: status %d", e.StatusCode)
	if e.SubStatus != 0 {
		msg += fmt.Sprintf(".%d", e.SubStatus)
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.ActivityID != "" {
		msg += " [activity " + e.ActivityID + "]"
	}
	return msg
}

func newResponseError(resp *http.Response, body []byte) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		ActivityID: resp.Header.Get(headerActivityID),
	}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := unmarshalJSON(body, &payload); err == nil {
		e.Code = payload.Code
		e.Message = payload.Message
	} else if len(body) > 0 {
		e.Message = string(body)
	}

	if v := resp.Header.Get(headerSubStatus); v != "" {
		if sub, err := strconv.Atoi(v); err == nil {
			e.SubStatus = sub
		}
	}

	if v := resp.Header.Get(headerRetryAfterMs); v != "" {
		// The header is documented as an integer but has been observed with a
		// fractional part.
		if ms, err := strconv.ParseFloat(v, 64); err == nil && ms > 0 {
			e.RetryAfter = time.Duration(ms * float64(time.Millisecond))
		}
	}

	return e
}

// StatusCode returns the status code carried by err, or 0 if err does not
// wrap an *Error.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsThrottled reports whether err signals that the service is rate limiting
// the caller, and returns the delay the service asked for.
func IsThrottled(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.StatusCode == StatusTooManyRequests {
		return e.RetryAfter, true
	}
	return 0, false
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is a 409 response, returned when a resource
// with the same id already exists.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsProcedureInvalid reports whether err, returned from a stored procedure
// execution, means the cached procedure can no longer be used: it was
// deleted, or the service blacklisted it after repeated budget violations.
func IsProcedureInvalid(err error) bool {
	switch StatusCode(err) {
	case http.StatusNotFound, http.StatusForbidden:
		return true
	}
	return false
}
