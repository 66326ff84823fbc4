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
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeMapping(t *testing.T) {
	tcs := []struct {
		code   Code
		status int
	}{
		{Internal, http.StatusInternalServerError},
		{NotFound, http.StatusNotFound},
		{AlreadyExists, http.StatusConflict},
		{InvalidArgument, http.StatusBadRequest},
		{Unauthenticated, http.StatusUnauthorized},
		{NotAllowed, http.StatusForbidden},
		{InvalidPredicate, http.StatusBadRequest},
		{NotImplemented, http.StatusNotImplemented},
	}
	for _, tc := range tcs {
		t.Run(tc.code.String(), func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.status, tc.code.HTTPStatus())
			a.Contains(tc.code.String(), http.StatusText(tc.status))
		})
	}
}

func TestCodeOf(t *testing.T) {
	a := assert.New(t)

	a.Equal(Internal, CodeOf(nil))
	a.Equal(Internal, CodeOf(errors.New("boom")))

	err := Codef(NotFound, "no table %q", "prod.sales.orders")
	a.Equal(NotFound, CodeOf(err))
	a.True(IsNotFound(err))
	a.Contains(err.Error(), "prod.sales.orders")

	// The classification survives wrapping.
	a.Equal(NotFound, CodeOf(errors.Wrap(err, "outer")))

	a.Nil(Coded(AlreadyExists, nil))
	a.Equal(AlreadyExists, CodeOf(Coded(AlreadyExists, errors.New("dup"))))
	a.False(IsNotFound(nil))
}
