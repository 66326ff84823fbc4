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

	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// CreateCatalogRequest creates a new catalog.
type CreateCatalogRequest struct {
	Name         string            `json:"name"`
	Comment      string            `json:"comment,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
	StorageRoot  string            `json:"storage_root,omitempty"`
	ProviderName string            `json:"provider_name,omitempty"`
	ShareName    string            `json:"share_name,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateCatalogRequest) Resource() resid.Ident {
	return resid.LabelCatalog.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateCatalogRequest) Permission() policy.Permission { return policy.Create }

// GetCatalogRequest fetches one catalog.
type GetCatalogRequest struct {
	Name          string
	IncludeBrowse bool
}

// Resource implements [policy.SecuredAction].
func (r *GetCatalogRequest) Resource() resid.Ident {
	return resid.LabelCatalog.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *GetCatalogRequest) Permission() policy.Permission { return policy.Read }

// ListCatalogsRequest pages through all catalogs.
type ListCatalogsRequest struct {
	MaxResults int
	PageToken  string
}

// Resource implements [policy.SecuredAction].
func (r *ListCatalogsRequest) Resource() resid.Ident {
	return resid.LabelCatalog.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListCatalogsRequest) Permission() policy.Permission { return policy.Read }

// ListCatalogsResponse is one page of catalogs.
type ListCatalogsResponse struct {
	Catalogs      []CatalogInfo `json:"catalogs"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

// UpdateCatalogRequest mutates a catalog. Omitted fields keep their
// current values; a non-nil Properties map replaces the stored map
// wholesale.
type UpdateCatalogRequest struct {
	Name       string            `json:"-"`
	NewName    string            `json:"new_name,omitempty"`
	Comment    *string           `json:"comment,omitempty"`
	Owner      string            `json:"owner,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateCatalogRequest) Resource() resid.Ident {
	return resid.LabelCatalog.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateCatalogRequest) Permission() policy.Permission { return policy.Manage }

// DeleteCatalogRequest removes a catalog.
type DeleteCatalogRequest struct {
	Name  string
	Force bool
}

// Resource implements [policy.SecuredAction].
func (r *DeleteCatalogRequest) Resource() resid.Ident {
	return resid.LabelCatalog.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteCatalogRequest) Permission() policy.Permission { return policy.Manage }

// CreateCatalog assigns server-managed fields and persists the new
// catalog.
func (s *Service) CreateCatalog(
	ctx context.Context, recipient *types.Recipient, req *CreateCatalogRequest,
) (*CatalogInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, types.Codef(types.InvalidArgument, "catalog name is required")
	}
	info := &CatalogInfo{
		Name:         req.Name,
		Comment:      req.Comment,
		Properties:   req.Properties,
		StorageRoot:  req.StorageRoot,
		ProviderName: req.ProviderName,
		ShareName:    req.ShareName,
		Owner:        ownerOf(recipient),
		CreatedBy:    ownerOf(recipient),
	}
	obj, err := toObject(resid.LabelCatalog, resid.NewName(req.Name), info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}
	return catalogFromObject(created)
}

// GetCatalog returns the full record.
func (s *Service) GetCatalog(
	ctx context.Context, recipient *types.Recipient, req *GetCatalogRequest,
) (*CatalogInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	obj, err := s.Store.Get(ctx, req.Resource())
	if err != nil {
		return nil, err
	}
	return catalogFromObject(obj)
}

// ListCatalogs returns a policy-filtered page.
func (s *Service) ListCatalogs(
	ctx context.Context, recipient *types.Recipient, req *ListCatalogsRequest,
) (*ListCatalogsResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelCatalog,
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListCatalogsResponse{
		Catalogs:      make([]CatalogInfo, 0, len(page.Objects)),
		NextPageToken: page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := catalogFromObject(obj)
		if err != nil {
			return nil, err
		}
		ret.Catalogs = append(ret.Catalogs, *info)
	}
	return ret, nil
}

// UpdateCatalog performs a read-modify-write against the store.
func (s *Service) UpdateCatalog(
	ctx context.Context, recipient *types.Recipient, req *UpdateCatalogRequest,
) (*CatalogInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[CatalogInfo](obj, resid.LabelCatalog)
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
	if req.Properties != nil {
		// The provided map replaces the stored one wholesale; clients
		// merge on their side.
		current.Properties = req.Properties
	}
	current.UpdatedBy = ownerOf(recipient)

	next, err := toObject(resid.LabelCatalog, resid.NewName(current.Name), current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	return catalogFromObject(updated)
}

// DeleteCatalog honors the force flag: without it the delete fails if
// schemas exist under the catalog.
func (s *Service) DeleteCatalog(
	ctx context.Context, recipient *types.Recipient, req *DeleteCatalogRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	return s.guardedDelete(ctx, resid.LabelCatalog, resid.NewName(req.Name), req.Force)
}

func catalogFromObject(obj *types.Object) (*CatalogInfo, error) {
	info, err := payload[CatalogInfo](obj, resid.LabelCatalog)
	if err != nil {
		return nil, err
	}
	info.ID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	return info, nil
}
