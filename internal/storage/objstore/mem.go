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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openlake/catalogd/internal/types"
)

// Memory is an in-memory Store used by tests to serve canned Delta
// logs.
type Memory struct {
	mu struct {
		sync.RWMutex
		objects map[string][]byte
		stamps  map[string]time.Time
	}
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	m := &Memory{}
	m.mu.objects = make(map[string][]byte)
	m.mu.stamps = make(map[string]time.Time)
	return m
}

// Put stores an object, replacing any previous contents.
func (m *Memory) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.objects[path] = append([]byte(nil), data...)
	m.mu.stamps[path] = time.Now().UTC()
}

// List implements [Store].
func (m *Memory) List(_ context.Context, prefix string) ([]ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ret []ObjectMeta
	for path, data := range m.mu.objects {
		if strings.HasPrefix(path, prefix) {
			ret = append(ret, ObjectMeta{
				Path:         path,
				Size:         int64(len(data)),
				LastModified: m.mu.stamps[path],
			})
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Path < ret[j].Path })
	return ret, nil
}

// Get implements [Store].
func (m *Memory) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.mu.objects[path]
	if !ok {
		return nil, types.Codef(types.NotFound, "no object at %q", path)
	}
	return append([]byte(nil), data...), nil
}
