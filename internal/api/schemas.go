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

// CreateSchemaRequest creates a schema inside a catalog.
type CreateSchemaRequest struct {
	Name        string            `json:"name"`
	CatalogName string            `json:"catalog_name"`
	Comment     string            `json:"comment,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateSchemaRequest) Resource() resid.Ident {
	return resid.LabelSchema.Ident(resid.NameRef(resid.NewName(r.CatalogName, r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateSchemaRequest) Permission() policy.Permission { return policy.Create }

// GetSchemaRequest addresses a schema by its dotted full name.
type GetSchemaRequest struct {
	FullName string
}

// Resource implements [policy.SecuredAction].
func (r *GetSchemaRequest) Resource() resid.Ident {
	return resid.LabelSchema.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *GetSchemaRequest) Permission() policy.Permission { return policy.Read }

// ListSchemasRequest pages through the schemas of one catalog.
type ListSchemasRequest struct {
	CatalogName string
	MaxResults  int
	PageToken   string
}

// Resource implements [policy.SecuredAction].
func (r *ListSchemasRequest) Resource() resid.Ident {
	return resid.LabelSchema.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListSchemasRequest) Permission() policy.Permission { return policy.Read }

// ListSchemasResponse is one page of schemas.
type ListSchemasResponse struct {
	Schemas       []SchemaInfo `json:"schemas"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// UpdateSchemaRequest mutates a schema addressed by full name.
type UpdateSchemaRequest struct {
	FullName   string            `json:"-"`
	NewName    string            `json:"new_name,omitempty"`
	Comment    *string           `json:"comment,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateSchemaRequest) Resource() resid.Ident {
	return resid.LabelSchema.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateSchemaRequest) Permission() policy.Permission { return policy.Manage }

// DeleteSchemaRequest removes a schema.
type DeleteSchemaRequest struct {
	FullName string
	Force    bool
}

// Resource implements [policy.SecuredAction].
func (r *DeleteSchemaRequest) Resource() resid.Ident {
	return resid.LabelSchema.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteSchemaRequest) Permission() policy.Permission { return policy.Manage }

// CreateSchema derives full_name server-side; clients may not set it.
func (s *Service) CreateSchema(
	ctx context.Context, recipient *types.Recipient, req *CreateSchemaRequest,
) (*SchemaInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" || req.CatalogName == "" {
		return nil, types.Codef(types.InvalidArgument, "schema and catalog names are required")
	}
	// The parent catalog must exist.
	parent := resid.LabelCatalog.Ident(resid.NameRef(resid.NewName(req.CatalogName)))
	if _, err := s.Store.Get(ctx, parent); err != nil {
		return nil, err
	}
	name := resid.NewName(req.CatalogName, req.Name)
	info := &SchemaInfo{
		Name:        req.Name,
		CatalogName: req.CatalogName,
		FullName:    name.String(),
		Comment:     req.Comment,
		Properties:  req.Properties,
		Owner:       ownerOf(recipient),
	}
	obj, err := toObject(resid.LabelSchema, name, info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}
	return schemaFromObject(created)
}

// GetSchema returns the full record.
func (s *Service) GetSchema(
	ctx context.Context, recipient *types.Recipient, req *GetSchemaRequest,
) (*SchemaInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	obj, err := s.Store.Get(ctx, req.Resource())
	if err != nil {
		return nil, err
	}
	return schemaFromObject(obj)
}

// ListSchemas returns a policy-filtered page scoped to one catalog.
func (s *Service) ListSchemas(
	ctx context.Context, recipient *types.Recipient, req *ListSchemasRequest,
) (*ListSchemasResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.CatalogName == "" {
		return nil, types.Codef(types.InvalidArgument, "catalog_name is required")
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelSchema,
		Parent:    resid.NewName(req.CatalogName),
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListSchemasResponse{
		Schemas:       make([]SchemaInfo, 0, len(page.Objects)),
		NextPageToken: page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := schemaFromObject(obj)
		if err != nil {
			return nil, err
		}
		ret.Schemas = append(ret.Schemas, *info)
	}
	return ret, nil
}

// UpdateSchema re-derives full_name when the schema is renamed.
// Renaming does not cascade into the denormalized full names of
// tables or volumes below the schema.
func (s *Service) UpdateSchema(
	ctx context.Context, recipient *types.Recipient, req *UpdateSchemaRequest,
) (*SchemaInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	name := resid.ParseName(req.FullName)
	if name.Len() != 2 {
		return nil, types.Codef(types.InvalidArgument,
			"invalid schema name %q - expected <catalog>.<schema>", req.FullName)
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[SchemaInfo](obj, resid.LabelSchema)
	if err != nil {
		return nil, err
	}

	if req.NewName != "" {
		current.Name = req.NewName
	}
	if req.Comment != nil {
		current.Comment = *req.Comment
	}
	if req.Properties != nil {
		current.Properties = req.Properties
	}
	nextName := resid.NewName(current.CatalogName, current.Name)
	current.FullName = nextName.String()

	next, err := toObject(resid.LabelSchema, nextName, current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	return schemaFromObject(updated)
}

// DeleteSchema honors the force flag for contained tables and
// volumes.
func (s *Service) DeleteSchema(
	ctx context.Context, recipient *types.Recipient, req *DeleteSchemaRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	name := resid.ParseName(req.FullName)
	if name.Len() != 2 {
		return types.Codef(types.InvalidArgument,
			"invalid schema name %q - expected <catalog>.<schema>", req.FullName)
	}
	return s.guardedDelete(ctx, resid.LabelSchema, name, req.Force)
}

func schemaFromObject(obj *types.Object) (*SchemaInfo, error) {
	info, err := payload[SchemaInfo](obj, resid.LabelSchema)
	if err != nil {
		return nil, err
	}
	info.SchemaID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	return info, nil
}
