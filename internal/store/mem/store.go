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

// Package mem contains an in-memory resource store for tests and
// single-node development.
package mem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openlake/catalogd/internal/store"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// key is the primary index: (label, dotted name).
type key struct {
	label resid.Label
	name  string
}

// Store keeps all objects behind a single mutex. Reads and writes see
// a consistent snapshot; mutations on a single resource are
// linearizable.
type Store struct {
	mu struct {
		sync.RWMutex
		byKey map[key]*types.Object
		byID  map[uuid.UUID]key
	}
}

var _ types.ResourceStore = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	s := &Store{}
	s.mu.byKey = make(map[key]*types.Object)
	s.mu.byID = make(map[uuid.UUID]key)
	return s
}

// Create implements [types.ResourceStore].
func (s *Store) Create(_ context.Context, obj *types.Object) (*types.Object, error) {
	if obj.Label == resid.LabelUnknown || obj.Name.Empty() {
		return nil, types.Codef(types.InvalidArgument, "object requires a label and a name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{obj.Label, obj.Name.String()}
	if _, collision := s.mu.byKey[k]; collision {
		return nil, types.Codef(types.AlreadyExists, "%s %q already exists", obj.Label, obj.Name)
	}

	next := obj.Clone()
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	now := time.Now().UTC()
	next.CreatedAt = now
	next.UpdatedAt = now

	s.mu.byKey[k] = next
	s.mu.byID[next.ID] = k
	return next.Clone(), nil
}

// Get implements [types.ResourceStore].
func (s *Store) Get(_ context.Context, ident resid.Ident) (*types.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, err := s.resolveLocked(ident)
	if err != nil {
		return nil, err
	}
	return found.Clone(), nil
}

// Update implements [types.ResourceStore]. The id and created_at of
// the current record are preserved; the name may change (rename).
func (s *Store) Update(
	_ context.Context, ident resid.Ident, obj *types.Object,
) (*types.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.resolveLocked(ident)
	if err != nil {
		return nil, err
	}

	next := obj.Clone()
	next.ID = current.ID
	next.Label = current.Label
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	if next.UpdatedAt.Before(current.UpdatedAt) {
		next.UpdatedAt = current.UpdatedAt
	}
	if next.Name.Empty() {
		next.Name = current.Name
	}

	oldKey := key{current.Label, current.Name.String()}
	newKey := key{next.Label, next.Name.String()}
	if oldKey != newKey {
		if _, collision := s.mu.byKey[newKey]; collision {
			return nil, types.Codef(types.AlreadyExists, "%s %q already exists", next.Label, next.Name)
		}
		delete(s.mu.byKey, oldKey)
	}
	s.mu.byKey[newKey] = next
	s.mu.byID[next.ID] = newKey
	return next.Clone(), nil
}

// Delete implements [types.ResourceStore].
func (s *Store) Delete(_ context.Context, ident resid.Ident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.resolveLocked(ident)
	if err != nil {
		return err
	}
	delete(s.mu.byKey, key{current.Label, current.Name.String()})
	delete(s.mu.byID, current.ID)
	return nil
}

// List implements [types.ResourceStore].
func (s *Store) List(_ context.Context, req *types.ListRequest) (*types.ListResult, error) {
	limit := store.ClampLimit(req.Limit)
	var cursor *store.Cursor
	if req.PageToken != "" {
		var err error
		if cursor, err = store.DecodeCursor(req.PageToken); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	matched := make([]*types.Object, 0, 16)
	for k, obj := range s.mu.byKey {
		if k.label != req.Label {
			continue
		}
		if !req.Parent.Empty() && !obj.Name.HasPrefix(req.Parent) {
			continue
		}
		matched = append(matched, obj)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if c := resid.Compare(matched[i].Name, matched[j].Name); c != 0 {
			return c < 0
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	// Resume strictly after the cursor position. The cursor must be
	// compared segment-wise, like the sort above: comparing the dotted
	// strings disagrees with it when one segment is a prefix of
	// another.
	if cursor != nil {
		after := resid.ParseName(cursor.Name)
		idx := sort.Search(len(matched), func(i int) bool {
			if c := resid.Compare(matched[i].Name, after); c != 0 {
				return c > 0
			}
			return strings.Compare(matched[i].ID.String(), cursor.ID.String()) > 0
		})
		matched = matched[idx:]
	}

	ret := &types.ListResult{}
	if len(matched) > limit {
		matched = matched[:limit]
		last := matched[len(matched)-1]
		ret.NextPageToken = store.EncodeCursor(last.Name, last.ID)
	}
	ret.Objects = make([]*types.Object, len(matched))
	for i, obj := range matched {
		ret.Objects[i] = obj.Clone()
	}
	return ret, nil
}

// resolveLocked requires at least a read lock.
func (s *Store) resolveLocked(ident resid.Ident) (*types.Object, error) {
	if id, byID := ident.Ref.UUID(); byID {
		k, ok := s.mu.byID[id]
		if !ok {
			return nil, types.Codef(types.NotFound, "no resource with id %s", id)
		}
		// The secondary index may only point at a live record.
		return s.mu.byKey[k], nil
	}
	if name, byName := ident.Ref.Name(); byName {
		found, ok := s.mu.byKey[key{ident.Label, name.String()}]
		if !ok {
			return nil, types.Codef(types.NotFound, "%s %q not found", ident.Label, name)
		}
		return found, nil
	}
	return nil, types.Codef(types.InvalidArgument, "undefined reference cannot address a resource")
}
