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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openlake/catalogd/internal/types"
	"github.com/pkg/errors"
)

// Local serves file:// table locations, mainly for development and
// acceptance testing.
type Local struct {
	root string
}

var _ Store = (*Local)(nil)

// NewLocal roots a store at a directory.
func NewLocal(root string) *Local {
	return &Local{root: filepath.Clean(root)}
}

// List implements [Store].
func (l *Local) List(_ context.Context, prefix string) ([]ObjectMeta, error) {
	var ret []ObjectMeta
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ret = append(ret, ObjectMeta{
			Path:         rel,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list %q", l.root)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Path < ret[j].Path })
	return ret, nil
}

// Get implements [Store].
func (l *Local) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.Codef(types.NotFound, "no object at %q", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %q", path)
	}
	return data, nil
}
