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

// Package api implements the typed operations behind the catalog's
// HTTP surface. Every operation checks the policy engine before
// touching the stores and maintains the referential invariants of the
// resource graph.
package api

import (
	"context"
	"encoding/json"

	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	"github.com/pkg/errors"
)

// Service glues the policy engine to the stores. All resource
// operations hang off this type.
type Service struct {
	Policy  policy.Policy
	Secrets types.SecretStore
	Store   types.ResourceStore
}

// New constructs a Service.
func New(store types.ResourceStore, secrets types.SecretStore, pol policy.Policy) *Service {
	return &Service{Policy: pol, Secrets: secrets, Store: store}
}

// check applies the request's demanded permission for the recipient.
func (s *Service) check(
	ctx context.Context, recipient *types.Recipient, action policy.SecuredAction,
) error {
	return policy.CheckRequired(ctx, s.Policy, recipient, action)
}

// listVisible pages through the store until it has a page the
// recipient may see. Without the loop, a fully-filtered page would
// surface to the client as a spurious empty response even though a
// next_page_token exists.
func (s *Service) listVisible(
	ctx context.Context, recipient *types.Recipient, req *types.ListRequest,
) (*types.ListResult, error) {
	for {
		page, err := s.Store.List(ctx, req)
		if err != nil {
			return nil, err
		}
		visible, err := policy.Filter(ctx, s.Policy, recipient, policy.Read, page.Objects)
		if err != nil {
			return nil, err
		}
		if len(visible) > 0 || page.NextPageToken == "" {
			page.Objects = visible
			return page, nil
		}
		req.PageToken = page.NextPageToken
	}
}

// toObject converts a typed record into its stored form.
func toObject(label resid.Label, name resid.Name, info any) (*types.Object, error) {
	properties, err := json.Marshal(info)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode resource payload")
	}
	return &types.Object{Label: label, Name: name, Properties: properties}, nil
}

// payload decodes the typed record held by an object, enforcing the
// label discriminator.
func payload[T any](obj *types.Object, label resid.Label) (*T, error) {
	if obj.Label != label {
		return nil, types.Codef(types.InvalidArgument,
			"expected a %s, have a %s", label, obj.Label)
	}
	info := new(T)
	if err := json.Unmarshal(obj.Properties, info); err != nil {
		return nil, types.Coded(types.Internal,
			errors.Wrapf(err, "corrupt %s payload", label))
	}
	return info, nil
}

// millis converts a stored timestamp for the wire.
func millis(obj *types.Object) (created, updated int64) {
	return obj.CreatedAt.UnixMilli(), obj.UpdatedAt.UnixMilli()
}

// ownerOf returns the principal to stamp on created resources.
func ownerOf(recipient *types.Recipient) string {
	if recipient == nil || recipient.Anonymous {
		return ""
	}
	return recipient.Name
}
