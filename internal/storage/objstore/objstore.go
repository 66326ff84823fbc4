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

// Package objstore abstracts the object stores the sharing engine
// reads Delta logs from. Only the read surface is modeled; the service
// has no write path into table storage.
package objstore

import (
	"context"
	"time"
)

// ObjectMeta describes one stored object.
type ObjectMeta struct {
	// Path is relative to the store root, without a leading slash.
	Path         string
	Size         int64
	LastModified time.Time
}

// A Store reads objects below a single root (bucket, container, or
// directory). Implementations must be safe for concurrent use.
type Store interface {
	// List returns objects under the prefix in lexicographic path
	// order.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Get returns the full contents of one object, failing with
	// NotFound when absent.
	Get(ctx context.Context, path string) ([]byte, error)
}
