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

// CreateExternalLocationRequest binds a storage URL prefix to a
// credential.
type CreateExternalLocationRequest struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	CredentialName string `json:"credential_name"`
	ReadOnly       bool   `json:"read_only,omitempty"`
	Comment        string `json:"comment,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateExternalLocationRequest) Resource() resid.Ident {
	return resid.LabelExternalLocation.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateExternalLocationRequest) Permission() policy.Permission { return policy.Create }

// GetExternalLocationRequest fetches a location by name.
type GetExternalLocationRequest struct {
	Name string
}

// Resource implements [policy.SecuredAction].
func (r *GetExternalLocationRequest) Resource() resid.Ident {
	return resid.LabelExternalLocation.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *GetExternalLocationRequest) Permission() policy.Permission { return policy.Read }

// ListExternalLocationsRequest pages through all locations.
type ListExternalLocationsRequest struct {
	MaxResults int
	PageToken  string
}

// Resource implements [policy.SecuredAction].
func (r *ListExternalLocationsRequest) Resource() resid.Ident {
	return resid.LabelExternalLocation.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListExternalLocationsRequest) Permission() policy.Permission { return policy.Read }

// ListExternalLocationsResponse is one page of locations.
type ListExternalLocationsResponse struct {
	ExternalLocations []ExternalLocationInfo `json:"external_locations"`
	NextPageToken     string                 `json:"next_page_token,omitempty"`
}

// UpdateExternalLocationRequest mutates a location. Force permits
// changing the URL even though resolved tables may shift to another
// location as a result.
type UpdateExternalLocationRequest struct {
	Name           string  `json:"-"`
	NewName        string  `json:"new_name,omitempty"`
	URL            string  `json:"url,omitempty"`
	CredentialName string  `json:"credential_name,omitempty"`
	ReadOnly       *bool   `json:"read_only,omitempty"`
	Comment        *string `json:"comment,omitempty"`
	Force          bool    `json:"force,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateExternalLocationRequest) Resource() resid.Ident {
	return resid.LabelExternalLocation.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateExternalLocationRequest) Permission() policy.Permission { return policy.Manage }

// DeleteExternalLocationRequest removes a location.
type DeleteExternalLocationRequest struct {
	Name  string
	Force bool
}

// Resource implements [policy.SecuredAction].
func (r *DeleteExternalLocationRequest) Resource() resid.Ident {
	return resid.LabelExternalLocation.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteExternalLocationRequest) Permission() policy.Permission { return policy.Manage }

// CreateExternalLocation validates the URL and the referenced
// credential before persisting.
func (s *Service) CreateExternalLocation(
	ctx context.Context, recipient *types.Recipient, req *CreateExternalLocationRequest,
) (*ExternalLocationInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, types.Codef(types.InvalidArgument, "external location name is required")
	}
	if err := s.validateLocation(ctx, req.URL, req.CredentialName); err != nil {
		return nil, err
	}

	name := resid.NewName(req.Name)
	info := &ExternalLocationInfo{
		Name:           req.Name,
		URL:            req.URL,
		CredentialName: req.CredentialName,
		ReadOnly:       req.ReadOnly,
		Comment:        req.Comment,
		Owner:          ownerOf(recipient),
	}
	obj, err := toObject(resid.LabelExternalLocation, name, info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}
	return externalLocationFromObject(created)
}

// GetExternalLocation returns the full record.
func (s *Service) GetExternalLocation(
	ctx context.Context, recipient *types.Recipient, req *GetExternalLocationRequest,
) (*ExternalLocationInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	obj, err := s.Store.Get(ctx, req.Resource())
	if err != nil {
		return nil, err
	}
	return externalLocationFromObject(obj)
}

// ListExternalLocations returns a policy-filtered page.
func (s *Service) ListExternalLocations(
	ctx context.Context, recipient *types.Recipient, req *ListExternalLocationsRequest,
) (*ListExternalLocationsResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelExternalLocation,
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListExternalLocationsResponse{
		ExternalLocations: make([]ExternalLocationInfo, 0, len(page.Objects)),
		NextPageToken:     page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := externalLocationFromObject(obj)
		if err != nil {
			return nil, err
		}
		ret.ExternalLocations = append(ret.ExternalLocations, *info)
	}
	return ret, nil
}

// UpdateExternalLocation performs a read-modify-write. Changing the
// URL requires the force flag.
func (s *Service) UpdateExternalLocation(
	ctx context.Context, recipient *types.Recipient, req *UpdateExternalLocationRequest,
) (*ExternalLocationInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[ExternalLocationInfo](obj, resid.LabelExternalLocation)
	if err != nil {
		return nil, err
	}

	if req.URL != "" && req.URL != current.URL {
		if !req.Force {
			return nil, types.Codef(types.InvalidArgument,
				"changing the url of %q affects resolved tables; pass force to confirm",
				req.Name)
		}
		current.URL = req.URL
	}
	if req.NewName != "" {
		current.Name = req.NewName
	}
	if req.CredentialName != "" {
		current.CredentialName = req.CredentialName
	}
	if req.ReadOnly != nil {
		current.ReadOnly = *req.ReadOnly
	}
	if req.Comment != nil {
		current.Comment = *req.Comment
	}
	if err := s.validateLocation(ctx, current.URL, current.CredentialName); err != nil {
		return nil, err
	}

	next, err := toObject(resid.LabelExternalLocation, resid.NewName(current.Name), current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	return externalLocationFromObject(updated)
}

// DeleteExternalLocation removes the record.
func (s *Service) DeleteExternalLocation(
	ctx context.Context, recipient *types.Recipient, req *DeleteExternalLocationRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	return s.Store.Delete(ctx, req.Resource())
}

// validateLocation checks that the URL parses to a supported scheme
// and that the named storage credential exists.
func (s *Service) validateLocation(ctx context.Context, url, credential string) error {
	if url == "" {
		return types.Codef(types.InvalidArgument, "a storage url is required")
	}
	if _, err := location.Parse(url); err != nil {
		return err
	}
	if credential == "" {
		return types.Codef(types.InvalidArgument, "a credential_name is required")
	}
	ident := resid.LabelCredential.Ident(resid.NameRef(resid.NewName(credential)))
	if _, err := s.Store.Get(ctx, ident); err != nil {
		return err
	}
	return nil
}

func externalLocationFromObject(obj *types.Object) (*ExternalLocationInfo, error) {
	info, err := payload[ExternalLocationInfo](obj, resid.LabelExternalLocation)
	if err != nil {
		return nil, err
	}
	info.ExternalLocationID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	return info, nil
}
