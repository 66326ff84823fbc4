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

	"github.com/google/uuid"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/storage/location"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// CreateTableRequest registers a table inside a schema.
type CreateTableRequest struct {
	Name             string            `json:"name"`
	CatalogName      string            `json:"catalog_name"`
	SchemaName       string            `json:"schema_name"`
	TableType        TableType         `json:"table_type"`
	DataSourceFormat DataSourceFormat  `json:"data_source_format"`
	Columns          []ColumnInfo      `json:"columns,omitempty"`
	StorageLocation  string            `json:"storage_location,omitempty"`
	Comment          string            `json:"comment,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateTableRequest) Resource() resid.Ident {
	return resid.LabelTable.Ident(resid.NameRef(
		resid.NewName(r.CatalogName, r.SchemaName, r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateTableRequest) Permission() policy.Permission { return policy.Create }

// GetTableRequest addresses a table by its dotted full name.
type GetTableRequest struct {
	FullName      string
	IncludeBrowse bool
}

// Resource implements [policy.SecuredAction].
func (r *GetTableRequest) Resource() resid.Ident {
	return resid.LabelTable.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *GetTableRequest) Permission() policy.Permission { return policy.Read }

// ListTablesRequest pages through the tables of one schema.
type ListTablesRequest struct {
	CatalogName string
	SchemaName  string
	MaxResults  int
	PageToken   string
}

// Resource implements [policy.SecuredAction].
func (r *ListTablesRequest) Resource() resid.Ident {
	return resid.LabelTable.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListTablesRequest) Permission() policy.Permission { return policy.Read }

// ListTablesResponse is one page of tables.
type ListTablesResponse struct {
	Tables        []TableInfo `json:"tables"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// UpdateTableRequest mutates a table addressed by full name.
type UpdateTableRequest struct {
	FullName   string            `json:"-"`
	NewName    string            `json:"new_name,omitempty"`
	Comment    *string           `json:"comment,omitempty"`
	Columns    []ColumnInfo      `json:"columns,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateTableRequest) Resource() resid.Ident {
	return resid.LabelTable.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateTableRequest) Permission() policy.Permission { return policy.Manage }

// DeleteTableRequest removes a table.
type DeleteTableRequest struct {
	FullName string
}

// Resource implements [policy.SecuredAction].
func (r *DeleteTableRequest) Resource() resid.Ident {
	return resid.LabelTable.Ident(resid.NameRef(resid.ParseName(r.FullName)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteTableRequest) Permission() policy.Permission { return policy.Manage }

// CreateTable validates the storage location and parent schema before
// persisting.
func (s *Service) CreateTable(
	ctx context.Context, recipient *types.Recipient, req *CreateTableRequest,
) (*TableInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" || req.CatalogName == "" || req.SchemaName == "" {
		return nil, types.Codef(types.InvalidArgument,
			"table, schema, and catalog names are required")
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
	info := &TableInfo{
		Name:             req.Name,
		CatalogName:      req.CatalogName,
		SchemaName:       req.SchemaName,
		FullName:         name.String(),
		TableType:        req.TableType,
		DataSourceFormat: req.DataSourceFormat,
		Columns:          req.Columns,
		StorageLocation:  req.StorageLocation,
		Comment:          req.Comment,
		Properties:       req.Properties,
		Owner:            ownerOf(recipient),
	}
	obj, err := toObject(resid.LabelTable, name, info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}
	return tableFromObject(created)
}

// GetTable returns the full record, resolving by name or by id.
func (s *Service) GetTable(
	ctx context.Context, recipient *types.Recipient, req *GetTableRequest,
) (*TableInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	ident := req.Resource()
	// Credential-vending callers may address tables by uuid.
	if id, err := uuid.Parse(req.FullName); err == nil {
		ident = resid.LabelTable.Ident(resid.UUIDRef(id))
	}
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	return tableFromObject(obj)
}

// ListTables returns a policy-filtered page scoped to one schema.
func (s *Service) ListTables(
	ctx context.Context, recipient *types.Recipient, req *ListTablesRequest,
) (*ListTablesResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.CatalogName == "" || req.SchemaName == "" {
		return nil, types.Codef(types.InvalidArgument,
			"catalog_name and schema_name are required")
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelTable,
		Parent:    resid.NewName(req.CatalogName, req.SchemaName),
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListTablesResponse{
		Tables:        make([]TableInfo, 0, len(page.Objects)),
		NextPageToken: page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := tableFromObject(obj)
		if err != nil {
			return nil, err
		}
		ret.Tables = append(ret.Tables, *info)
	}
	return ret, nil
}

// UpdateTable performs a read-modify-write. Table type, format, and
// storage location are immutable after creation.
func (s *Service) UpdateTable(
	ctx context.Context, recipient *types.Recipient, req *UpdateTableRequest,
) (*TableInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	name := resid.ParseName(req.FullName)
	if name.Len() != 3 {
		return nil, types.Codef(types.InvalidArgument,
			"invalid table name %q - expected <catalog>.<schema>.<table>", req.FullName)
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[TableInfo](obj, resid.LabelTable)
	if err != nil {
		return nil, err
	}

	if req.NewName != "" {
		current.Name = req.NewName
	}
	if req.Comment != nil {
		current.Comment = *req.Comment
	}
	if req.Columns != nil {
		current.Columns = req.Columns
	}
	if req.Properties != nil {
		current.Properties = req.Properties
	}
	nextName := resid.NewName(current.CatalogName, current.SchemaName, current.Name)
	current.FullName = nextName.String()

	next, err := toObject(resid.LabelTable, nextName, current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	return tableFromObject(updated)
}

// DeleteTable removes the record. Tables have no children to guard.
func (s *Service) DeleteTable(
	ctx context.Context, recipient *types.Recipient, req *DeleteTableRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	return s.Store.Delete(ctx, req.Resource())
}

// TableOf decodes a stored table object. It is used by collaborators
// that hold grants other than direct table Read, e.g. the sharing
// engine acting under a share grant.
func TableOf(obj *types.Object) (*TableInfo, error) {
	return tableFromObject(obj)
}

func tableFromObject(obj *types.Object) (*TableInfo, error) {
	info, err := payload[TableInfo](obj, resid.LabelTable)
	if err != nil {
		return nil, err
	}
	info.TableID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	return info, nil
}
