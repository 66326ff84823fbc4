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

package api

import (
	"context"
	"time"

	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// DataObjectUpdateAction selects how one update entry is applied.
type DataObjectUpdateAction string

// The update actions.
const (
	ActionAdd    DataObjectUpdateAction = "ADD"
	ActionRemove DataObjectUpdateAction = "REMOVE"
	ActionUpdate DataObjectUpdateAction = "UPDATE"
)

// A DataObjectUpdate is one entry of a share update.
type DataObjectUpdate struct {
	Action     DataObjectUpdateAction `json:"action"`
	DataObject DataObject             `json:"data_object"`
}

// CreateShareRequest registers an empty share.
type CreateShareRequest struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateShareRequest) Resource() resid.Ident {
	return resid.LabelShare.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateShareRequest) Permission() policy.Permission { return policy.Create }

// GetShareRequest fetches a share, optionally with its data objects.
type GetShareRequest struct {
	Name              string
	IncludeSharedData bool
}

// Resource implements [policy.SecuredAction].
func (r *GetShareRequest) Resource() resid.Ident {
	return resid.LabelShare.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *GetShareRequest) Permission() policy.Permission { return policy.Read }

// ListSharesRequest pages through all shares.
type ListSharesRequest struct {
	MaxResults int
	PageToken  string
}

// Resource implements [policy.SecuredAction].
func (r *ListSharesRequest) Resource() resid.Ident {
	return resid.LabelShare.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListSharesRequest) Permission() policy.Permission { return policy.Read }

// ListSharesResponse is one page of shares.
type ListSharesResponse struct {
	Shares        []ShareInfo `json:"shares"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// UpdateShareRequest mutates a share and applies a batch of data
// object updates. The batch is atomic: if any entry fails validation,
// no entry is applied.
type UpdateShareRequest struct {
	Name    string             `json:"-"`
	NewName string             `json:"new_name,omitempty"`
	Comment *string            `json:"comment,omitempty"`
	Owner   string             `json:"owner,omitempty"`
	Updates []DataObjectUpdate `json:"updates,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateShareRequest) Resource() resid.Ident {
	return resid.LabelShare.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateShareRequest) Permission() policy.Permission { return policy.Manage }

// DeleteShareRequest removes a share.
type DeleteShareRequest struct {
	Name string
}

// Resource implements [policy.SecuredAction].
func (r *DeleteShareRequest) Resource() resid.Ident {
	return resid.LabelShare.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteShareRequest) Permission() policy.Permission { return policy.Manage }

// CreateShare persists an empty share.
func (s *Service) CreateShare(
	ctx context.Context, recipient *types.Recipient, req *CreateShareRequest,
) (*ShareInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, types.Codef(types.InvalidArgument, "share name is required")
	}
	info := &ShareInfo{
		Name:    req.Name,
		Comment: req.Comment,
		Owner:   ownerOf(recipient),
	}
	obj, err := toObject(resid.LabelShare, resid.NewName(req.Name), info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}
	return shareFromObject(created, true)
}

// GetShare returns the share; data objects are elided unless
// requested.
func (s *Service) GetShare(
	ctx context.Context, recipient *types.Recipient, req *GetShareRequest,
) (*ShareInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	obj, err := s.Store.Get(ctx, req.Resource())
	if err != nil {
		return nil, err
	}
	return shareFromObject(obj, req.IncludeSharedData)
}

// ListShares returns a policy-filtered page without data objects.
func (s *Service) ListShares(
	ctx context.Context, recipient *types.Recipient, req *ListSharesRequest,
) (*ListSharesResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelShare,
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListSharesResponse{
		Shares:        make([]ShareInfo, 0, len(page.Objects)),
		NextPageToken: page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := shareFromObject(obj, false)
		if err != nil {
			return nil, err
		}
		ret.Shares = append(ret.Shares, *info)
	}
	return ret, nil
}

// UpdateShare folds the update batch over the current data objects
// and persists the result in one write. Add of a present object fails
// with AlreadyExists, Update of an absent one with NotFound, while
// Remove of an absent object is a no-op.
func (s *Service) UpdateShare(
	ctx context.Context, recipient *types.Recipient, req *UpdateShareRequest,
) (*ShareInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[ShareInfo](obj, resid.LabelShare)
	if err != nil {
		return nil, err
	}

	if req.NewName != "" {
		current.Name = req.NewName
	}
	if req.Comment != nil {
		current.Comment = *req.Comment
	}
	if req.Owner != "" {
		current.Owner = req.Owner
	}
	folded, err := s.foldDataObjects(ctx, recipient, current.DataObjects, req.Updates)
	if err != nil {
		return nil, err
	}
	current.DataObjects = folded

	next, err := toObject(resid.LabelShare, resid.NewName(current.Name), current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	return shareFromObject(updated, true)
}

// DeleteShare removes the record.
func (s *Service) DeleteShare(
	ctx context.Context, recipient *types.Recipient, req *DeleteShareRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	return s.Store.Delete(ctx, req.Resource())
}

// GetSharePermissions is not yet supported; grants are managed by the
// external policy engine.
func (s *Service) GetSharePermissions(
	ctx context.Context, recipient *types.Recipient, name string,
) error {
	return types.Codef(types.NotImplemented, "share permissions are not supported")
}

// UpdateSharePermissions is not yet supported.
func (s *Service) UpdateSharePermissions(
	ctx context.Context, recipient *types.Recipient, name string,
) error {
	return types.Codef(types.NotImplemented, "share permissions are not supported")
}

// foldDataObjects applies updates in order against a copy of the
// current set, validating every entry before anything is committed.
func (s *Service) foldDataObjects(
	ctx context.Context,
	recipient *types.Recipient,
	current []DataObject,
	updates []DataObjectUpdate,
) ([]DataObject, error) {
	byName := make(map[string]int, len(current))
	next := append([]DataObject(nil), current...)
	for i, d := range next {
		byName[d.Name] = i
	}
	for _, u := range updates {
		d := u.DataObject
		if d.Name == "" {
			return nil, types.Codef(types.InvalidArgument, "data object name is required")
		}
		switch u.Action {
		case ActionAdd:
			if _, ok := byName[d.Name]; ok {
				return nil, types.Codef(types.AlreadyExists,
					"data object %q is already part of the share", d.Name)
			}
			if err := s.checkSharedTable(ctx, recipient, d.Name); err != nil {
				return nil, err
			}
			if d.DataObjectType == "" {
				d.DataObjectType = DataObjectTable
			}
			if d.SharedAs == "" {
				name := resid.ParseName(d.Name)
				// Drop the catalog segment: recipients see
				// schema.table.
				d.SharedAs = resid.NewName(name.Segment(1), name.Segment(2)).String()
			}
			d.AddedAt = time.Now().UnixMilli()
			d.AddedBy = ownerOf(recipient)
			byName[d.Name] = len(next)
			next = append(next, d)
		case ActionRemove:
			i, ok := byName[d.Name]
			if !ok {
				continue
			}
			next = append(next[:i], next[i+1:]...)
			delete(byName, d.Name)
			for j := i; j < len(next); j++ {
				byName[next[j].Name] = j
			}
		case ActionUpdate:
			i, ok := byName[d.Name]
			if !ok {
				return nil, types.Codef(types.NotFound,
					"data object %q is not part of the share", d.Name)
			}
			prior := next[i]
			if d.SharedAs == "" {
				d.SharedAs = prior.SharedAs
			}
			if d.DataObjectType == "" {
				d.DataObjectType = prior.DataObjectType
			}
			d.AddedAt, d.AddedBy = prior.AddedAt, prior.AddedBy
			next[i] = d
		default:
			return nil, types.Codef(types.InvalidArgument,
				"unknown data object action %q", u.Action)
		}
	}
	return next, nil
}

// checkSharedTable verifies that the referenced table exists and that
// the caller may read it before exporting it through a share.
func (s *Service) checkSharedTable(
	ctx context.Context, recipient *types.Recipient, fullName string,
) error {
	name := resid.ParseName(fullName)
	if name.Len() != 3 {
		return types.Codef(types.InvalidArgument,
			"invalid data object name %q - expected <catalog>.<schema>.<table>", fullName)
	}
	ident := resid.LabelTable.Ident(resid.NameRef(name))
	if err := policy.CheckRequired(ctx, s.Policy, recipient, policy.Secured(ident, policy.Read)); err != nil {
		return err
	}
	_, err := s.Store.Get(ctx, ident)
	return err
}

func shareFromObject(obj *types.Object, includeData bool) (*ShareInfo, error) {
	info, err := payload[ShareInfo](obj, resid.LabelShare)
	if err != nil {
		return nil, err
	}
	info.ID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	if !includeData {
		info.DataObjects = nil
	}
	return info, nil
}
