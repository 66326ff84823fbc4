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

package mem

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	"github.com/stretchr/testify/require"
)

func TestCRUD(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s := New()
	obj := &types.Object{
		Label:      resid.LabelCatalog,
		Name:       resid.NewName("prod"),
		Properties: json.RawMessage(`{"name":"prod"}`),
	}

	created, err := s.Create(ctx, obj)
	r.NoError(err)
	r.NotEqual(created.ID.String(), "00000000-0000-0000-0000-000000000000")
	r.False(created.CreatedAt.IsZero())

	// The same (label, name) pair collides, a different label does not.
	_, err = s.Create(ctx, obj)
	r.Equal(types.AlreadyExists, types.CodeOf(err))
	_, err = s.Create(ctx, &types.Object{
		Label: resid.LabelShare,
		Name:  resid.NewName("prod"),
	})
	r.NoError(err)

	byName, err := s.Get(ctx, resid.LabelCatalog.Ident(resid.NameRef(resid.NewName("prod"))))
	r.NoError(err)
	r.Equal(created.ID, byName.ID)

	byID, err := s.Get(ctx, resid.LabelCatalog.Ident(resid.UUIDRef(created.ID)))
	r.NoError(err)
	r.Equal(created.ID, byID.ID)

	// Rename keeps the id and creation time.
	next := created.Clone()
	next.Name = resid.NewName("production")
	updated, err := s.Update(ctx,
		resid.LabelCatalog.Ident(resid.UUIDRef(created.ID)), next)
	r.NoError(err)
	r.Equal(created.ID, updated.ID)
	r.Equal(created.CreatedAt, updated.CreatedAt)
	r.False(updated.UpdatedAt.Before(created.UpdatedAt))

	_, err = s.Get(ctx, resid.LabelCatalog.Ident(resid.NameRef(resid.NewName("prod"))))
	r.True(types.IsNotFound(err))

	r.NoError(s.Delete(ctx,
		resid.LabelCatalog.Ident(resid.NameRef(resid.NewName("production")))))
	r.True(types.IsNotFound(s.Delete(ctx,
		resid.LabelCatalog.Ident(resid.NameRef(resid.NewName("production"))))))
}

func TestRenameCollision(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s := New()
	for _, name := range []string{"a", "b"} {
		_, err := s.Create(ctx, &types.Object{
			Label: resid.LabelCatalog,
			Name:  resid.NewName(name),
		})
		r.NoError(err)
	}

	obj, err := s.Get(ctx, resid.LabelCatalog.Ident(resid.NameRef(resid.NewName("a"))))
	r.NoError(err)
	next := obj.Clone()
	next.Name = resid.NewName("b")
	_, err = s.Update(ctx, obj.Ident(), next)
	r.Equal(types.AlreadyExists, types.CodeOf(err))
}

func TestListPagination(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s := New()
	const total = 25
	for i := 0; i < total; i++ {
		_, err := s.Create(ctx, &types.Object{
			Label: resid.LabelSchema,
			Name:  resid.NewName("prod", fmt.Sprintf("schema%02d", i)),
		})
		r.NoError(err)
	}
	// A sibling under another parent must not leak into the listing.
	_, err := s.Create(ctx, &types.Object{
		Label: resid.LabelSchema,
		Name:  resid.NewName("dev", "schema00"),
	})
	r.NoError(err)

	var seen []string
	token := ""
	pages := 0
	for {
		page, err := s.List(ctx, &types.ListRequest{
			Label:     resid.LabelSchema,
			Parent:    resid.NewName("prod"),
			Limit:     10,
			PageToken: token,
		})
		r.NoError(err)
		pages++
		for _, obj := range page.Objects {
			seen = append(seen, obj.Name.String())
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	r.Equal(3, pages)
	r.Len(seen, total)
	for i := 1; i < len(seen); i++ {
		r.Less(seen[i-1], seen[i])
	}
}

// Names whose first segment is a prefix of another sort differently
// segment-wise than as dotted strings ("a.b" vs "a-x.b"). The cursor
// resume must honor the segment-wise order or pages drop objects.
func TestListPaginationSegmentOrder(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s := New()
	for _, segs := range [][]string{{"a", "b"}, {"a-x", "b"}, {"a", "z"}} {
		_, err := s.Create(ctx, &types.Object{
			Label: resid.LabelSchema,
			Name:  resid.NewName(segs...),
		})
		r.NoError(err)
	}

	var seen []string
	token := ""
	for {
		page, err := s.List(ctx, &types.ListRequest{
			Label:     resid.LabelSchema,
			Limit:     1,
			PageToken: token,
		})
		r.NoError(err)
		for _, obj := range page.Objects {
			seen = append(seen, obj.Name.String())
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	r.Len(seen, 3)
	r.ElementsMatch([]string{"a.b", "a.z", "a-x.b"}, seen)
}

func TestListBadToken(t *testing.T) {
	r := require.New(t)

	s := New()
	_, err := s.List(context.Background(), &types.ListRequest{
		Label:     resid.LabelSchema,
		PageToken: "not-a-cursor",
	})
	r.Error(err)
	r.Equal(types.InvalidArgument, types.CodeOf(err))
}
