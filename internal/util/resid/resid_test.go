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

package resid

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	a := assert.New(t)

	a.True(NewName().Empty())
	a.False(NewName("prod").Empty())

	n := NewName("prod", "sales")
	a.Equal("prod.sales", n.String())
	a.Equal(2, n.Len())
	a.Equal("sales", n.Segment(1))
	a.Equal("", n.Segment(5))

	a.Equal(n, ParseName("prod.sales"))
	a.Equal("prod.sales.orders", n.Append("orders").String())
	// Append must not alias the receiver's backing array.
	a.Equal("prod.sales", n.String())
}

func TestNamePrefix(t *testing.T) {
	a := assert.New(t)

	parent := NewName("prod")
	a.True(NewName("prod", "sales").HasPrefix(parent))
	a.True(parent.HasPrefix(NewName()))
	a.False(parent.HasPrefix(NewName("prod", "sales")))
	a.False(NewName("production").HasPrefix(parent))
}

func TestNameCompare(t *testing.T) {
	a := assert.New(t)

	a.Zero(Compare(NewName("a", "b"), NewName("a", "b")))
	a.Negative(Compare(NewName("a"), NewName("a", "b")))
	a.Positive(Compare(NewName("b"), NewName("a", "z")))
}

func TestNameJSON(t *testing.T) {
	tcs := []string{"", "prod", "prod.sales.orders"}
	for _, tc := range tcs {
		t.Run(tc, func(t *testing.T) {
			a := assert.New(t)

			n := ParseName(tc)
			data, err := json.Marshal(n)
			a.NoError(err)

			var n2 Name
			a.NoError(json.Unmarshal(data, &n2))
			a.True(n.Equal(n2))
		})
	}
}

func TestRef(t *testing.T) {
	a := assert.New(t)

	a.True(Undefined().IsUndefined())

	id := uuid.New()
	ref := UUIDRef(id)
	got, ok := ref.UUID()
	a.True(ok)
	a.Equal(id, got)
	_, ok = ref.Name()
	a.False(ok)

	ref = NameRef(NewName("prod", "sales"))
	name, ok := ref.Name()
	a.True(ok)
	a.Equal("prod.sales", name.String())
	_, ok = ref.UUID()
	a.False(ok)
}

func TestIdentString(t *testing.T) {
	a := assert.New(t)

	ident := LabelTable.Ident(NameRef(NewName("prod", "sales", "orders")))
	a.Contains(ident.String(), "prod.sales.orders")
	a.Equal(LabelTable, ident.Label)
}
