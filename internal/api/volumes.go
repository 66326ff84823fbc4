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
	"github.com/openlake/catalogd/internal/storage/location"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// CreateVolumeRequest registers a volume inside a schema. External
// volumes must name a storage location.
type CreateVolumeRequest struct {
	Name            string     `json:"name"`
	CatalogName     string     `json:"catalog_name"`
	SchemaName      string     `json:"schema_name"`
	VolumeType      VolumeType `json:"volume_type"`
	StorageLocation string     `json:"storage_location,omitempty"`
	Comment         string     `json:"comment,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateVolumeRequest) Resource() resid.Ident {
	return resid.LabelVolume.Ident(resid.NameRef(
		resid.NewName(r.CatalogName, r.SchemaName, r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateVolumeRequest) Permission() policy.Permission { return policy.Create }

// GetVolumeRequest addresses a volume by its dotted full name.
type GetVolumeRequest struct {
	FullName string
}

// Resource implements [policy.SecuredAction].
func (r *GetVolumeRequest) Resource() resid.Ident {
	return resid.LabelVolume.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *GetVolumeRequest) Permission() policy.Permission { return policy.Read }

// ListVolumesRequest pages through the volumes of one schema.
type ListVolumesRequest struct {
	CatalogName string
	SchemaName  string
	MaxResults  int
	PageToken   string
}

// Resource implements [policy.SecuredAction].
func (r *ListVolumesRequest) Resource() resid.Ident {
	return resid.LabelVolume.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListVolumesRequest) Permission() policy.Permission { return policy.Read }

// ListVolumesResponse is one page of volumes.
type ListVolumesResponse struct {
	Volumes       []VolumeInfo `json:"volumes"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// UpdateVolumeRequest mutates a volume addressed by full name.
type UpdateVolumeRequest struct {
	FullName string  `json:"-"`
	NewName  string  `json:"new_name,omitempty"`
	Comment  *string `json:"comment,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateVolumeRequest) Resource() resid.Ident {
	return resid.LabelVolume.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateVolumeRequest) Permission() policy.Permission { return policy.Manage }

// DeleteVolumeRequest removes a volume.
type DeleteVolumeRequest struct {
	FullName string
}

// Resource implements [policy.SecuredAction].
func (r *DeleteVolumeRequest) Resource() resid.Ident {
	return resid.LabelVolume.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteVolumeRequest) Permission() policy.Permission { return policy.Manage }

// CreateVolume validates the parent schema and the storage location
// before persisting.
func (s *Service) CreateVolume(
	ctx context.Context, recipient *types.Recipient, req *CreateVolumeRequest,
) (*VolumeInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" || req.CatalogName == "" || req.SchemaName == "" {
		return nil, types.Codef(types.InvalidArgument,
			"volume, schema, and catalog names are required")
	}
	if req.VolumeType == VolumeTypeExternal && req.StorageLocation == "" {
		return nil, types.Codef(types.InvalidArgument,
			"external volumes require a storage_location")
	}
	if req.StorageLocation != "" {
		if _, err := location.Parse(req.StorageLocation); err != nil {
			return nil, err
		}
	}
	parent := resid.LabelSchema.Ident(resid.NameRef(
		resid.NewName(req.CatalogName, req.SchemaName)))
	if _, err := s.Store.Get(ctx, parent); err != nil {
		return nil, err
	}

	name := resid.NewName(req.CatalogName, req.SchemaName, req.Name)
	info := &VolumeInfo{
		Name:            req.Name,
		CatalogName:     req.CatalogName,
		SchemaName:      req.SchemaName,
		FullName:        name.String(),
		VolumeType:      req.VolumeType,
		StorageLocation: req.StorageLocation,
		Comment:         req.Comment,
		Owner:           ownerOf(recipient),
	}
	obj, err := toObject(resid.LabelVolume, name, info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}
	return volumeFromObject(created)
}

// GetVolume returns the full record.
func (s *Service) GetVolume(
	ctx context.Context, recipient *types.Recipient, req *GetVolumeRequest,
) (*VolumeInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	obj, err := s.Store.Get(ctx, req.Resource())
	if err != nil {
		return nil, err
	}
	return volumeFromObject(obj)
}

// ListVolumes returns a policy-filtered page scoped to one schema.
func (s *Service) ListVolumes(
	ctx context.Context, recipient *types.Recipient, req *ListVolumesRequest,
) (*ListVolumesResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.CatalogName == "" || req.SchemaName == "" {
		return nil, types.Codef(types.InvalidArgument,
			"catalog_name and schema_name are required")
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelVolume,
		Parent:    resid.NewName(req.CatalogName, req.SchemaName),
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListVolumesResponse{
		Volumes:       make([]VolumeInfo, 0, len(page.Objects)),
		NextPageToken: page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := volumeFromObject(obj)
		if err != nil {
			return nil, err
		}
		ret.Volumes = append(ret.Volumes, *info)
	}
	return ret, nil
}

// UpdateVolume performs a read-modify-write. The volume type and the
// storage location are immutable.
func (s *Service) UpdateVolume(
	ctx context.Context, recipient *types.Recipient, req *UpdateVolumeRequest,
) (*VolumeInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	name := resid.ParseName(req.FullName)
	if name.Len() != 3 {
		return nil, types.Codef(types.InvalidArgument,
			"invalid volume name %q - expected <catalog>.<schema>.<volume>", req.FullName)
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[VolumeInfo](obj, resid.LabelVolume)
	if err != nil {
		return nil, err
	}

	if req.NewName != "" {
		current.Name = req.NewName
	}
	if req.Comment != nil {
		current.Comment = *req.Comment
	}
	nextName := resid.NewName(current.CatalogName, current.SchemaName, current.Name)
	current.FullName = nextName.String()

	next, err := toObject(resid.LabelVolume, nextName, current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	return volumeFromObject(updated)
}

// DeleteVolume removes the record.
func (s *Service) DeleteVolume(
	ctx context.Context, recipient *types.Recipient, req *DeleteVolumeRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	return s.Store.Delete(ctx, req.Resource())
}

func volumeFromObject(obj *types.Object) (*VolumeInfo, error) {
	info, err := payload[VolumeInfo](obj, resid.LabelVolume)
	if err != nil {
		return nil, err
	}
	info.VolumeID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	return info, nil
}
