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

// Package store contains shared behaviors for the resource-store
// backends.
package store

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// DefaultPageSize caps listings when the client does not send
// max_results.
const DefaultPageSize = 100

// MaxPageSize is the server-chosen cap on a single page.
const MaxPageSize = 1000

// A Cursor is the decoded form of a page token. It records the
// last-seen (name, id) pair; listings resume strictly after it.
type Cursor struct {
	Name string    `json:"n"`
	ID   uuid.UUID `json:"i"`
}

// EncodeCursor produces an opaque page token. Clients must not rely on
// the format; it may rotate without notice.
func EncodeCursor(name resid.Name, id uuid.UUID) string {
	data, _ := json.Marshal(&Cursor{Name: name.String(), ID: id})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor rejects malformed tokens with InvalidArgument.
func DecodeCursor(token string) (*Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, types.Codef(types.InvalidArgument, "malformed page token")
	}
	c := &Cursor{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, types.Codef(types.InvalidArgument, "malformed page token")
	}
	return c, nil
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
