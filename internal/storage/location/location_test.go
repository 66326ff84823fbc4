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

package location

import (
	"testing"

	"github.com/openlake/catalogd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tcs := []struct {
		raw      string
		scheme   Scheme
		location string
		root     string
	}{
		{"s3://bucket/prefix/table", S3, "s3://bucket/prefix/table", "s3://bucket/"},
		{"s3://bucket", S3, "s3://bucket/", "s3://bucket/"},
		{"gs://bucket/t", GS, "gs://bucket/t", "gs://bucket/"},
		{"az://container/t", Azure, "az://container/t", "az://container/"},
		{"abfss://container/t", Azure, "az://container/t", "az://container/"},
		{"file:///data/tables/t", File, "file:///data/tables/t", "file:///"},
		{"memory://unit/t", Memory, "memory://unit/t", "memory://unit/"},
		{"azurite://container/t", Azurite, "azurite://container/t", "azurite://container/"},
		{
			"http://localhost:10000/devstoreaccount1/container/t",
			Azurite, "azurite://container/t", "azurite://container/",
		},
		{"https://example.com/path", HTTP, "https://example.com/path", "https://example.com/"},
	}
	for _, tc := range tcs {
		t.Run(tc.raw, func(t *testing.T) {
			r := require.New(t)

			u, err := Parse(tc.raw)
			r.NoError(err)
			r.Equal(tc.scheme, u.Scheme)
			r.Equal(tc.location, u.Location.String())
			r.Equal(tc.root, u.StoreRoot.String())

			// Parsing is idempotent over the canonical form.
			again, err := Parse(u.String())
			r.NoError(err)
			r.Equal(u.Location.String(), again.Location.String())
			r.Equal(u.StoreRoot.String(), again.StoreRoot.String())
		})
	}
}

func TestParseRejects(t *testing.T) {
	tcs := []string{
		"ftp://host/path",
		"azurite:///no-container",
		"http://localhost:10000/devstoreaccount1",
	}
	for _, tc := range tcs {
		t.Run(tc, func(t *testing.T) {
			a := assert.New(t)
			_, err := Parse(tc)
			a.Error(err)
			a.Equal(types.InvalidArgument, types.CodeOf(err))
		})
	}
}

func TestIsPrefixOf(t *testing.T) {
	a := assert.New(t)

	parse := func(raw string) *URL {
		u, err := Parse(raw)
		a.NoError(err)
		return u
	}

	grant := parse("s3://bucket/warehouse")
	a.True(grant.IsPrefixOf(parse("s3://bucket/warehouse/sales/orders")))
	a.True(grant.IsPrefixOf(parse("s3://bucket/warehouse")))
	a.False(grant.IsPrefixOf(parse("s3://bucket/staging/orders")))
	a.False(grant.IsPrefixOf(parse("s3://other/warehouse/orders")))

	// The two emulator spellings normalize to the same identity.
	emulator := parse("azurite://container/tables")
	a.True(emulator.IsPrefixOf(
		parse("http://localhost:10000/devstoreaccount1/container/tables/t1")))
}
