// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// A Code classifies a service error. Codes are stable and wire-visible;
// raw backend errors never leak into response bodies.
type Code int

// The error taxonomy. Internal is the zero value so that unclassified
// errors default to a 500 response.
const (
	Internal Code = iota
	NotFound
	AlreadyExists
	InvalidArgument
	Unauthenticated
	NotAllowed
	InvalidPredicate
	NotImplemented
)

// HTTPStatus returns the response status for the code.
func (c Code) HTTPStatus() int {
	switch c {
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case InvalidArgument, InvalidPredicate:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case NotAllowed:
		return http.StatusForbidden
	case NotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// String returns the wire error_code, e.g. "404 Not Found".
func (c Code) String() string {
	status := c.HTTPStatus()
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

// codedError attaches a Code to a causal chain.
type codedError struct {
	code  Code
	cause error
}

func (e *codedError) Error() string { return e.cause.Error() }
func (e *codedError) Unwrap() error { return e.cause }

// Coded wraps an error with a classification. A nil error remains nil.
func Coded(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, cause: err}
}

// Codef constructs a classified error from a format string.
func Codef(code Code, format string, args ...any) error {
	return &codedError{code: code, cause: errors.Errorf(format, args...)}
}

// CodeOf walks the causal chain for a classification, defaulting to
// Internal.
func CodeOf(err error) Code {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return Internal
}

// IsNotFound is a convenience predicate used by idempotent cleanup
// paths.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == NotFound
}
