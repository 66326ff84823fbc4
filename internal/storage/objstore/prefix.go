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

package objstore

import (
	"context"
	"strings"
)

// prefixed re-roots a store below a path prefix, so a bucket-rooted
// store can be addressed relative to one table.
type prefixed struct {
	delegate Store
	prefix   string
}

var _ Store = (*prefixed)(nil)

// WithPrefix re-roots the store at the prefix. An empty prefix returns
// the store unchanged.
func WithPrefix(delegate Store, prefix string) Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return delegate
	}
	return &prefixed{delegate: delegate, prefix: prefix + "/"}
}

// List implements [Store].
func (p *prefixed) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	objs, err := p.delegate.List(ctx, p.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i := range objs {
		objs[i].Path = strings.TrimPrefix(objs[i].Path, p.prefix)
	}
	return objs, nil
}

// Get implements [Store].
func (p *prefixed) Get(ctx context.Context, path string) ([]byte, error) {
	return p.delegate.Get(ctx, p.prefix+path)
}
