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
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	"github.com/pkg/errors"
)

// Credentials are split across two stores: the resource store holds
// the non-sensitive metadata, while the envelope with keys and tokens
// lives in the secret store under the credential's name. The two
// writes are not transactional; the secret write happens after the
// metadata write so an orphaned secret can never exist without its
// metadata row.

// CreateCredentialRequest registers a credential and its secret
// payload.
type CreateCredentialRequest struct {
	CredentialEnvelope
	Name     string            `json:"name"`
	Purpose  CredentialPurpose `json:"purpose"`
	ReadOnly bool              `json:"read_only,omitempty"`
	Comment  string            `json:"comment,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateCredentialRequest) Resource() resid.Ident {
	return resid.LabelCredential.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateCredentialRequest) Permission() policy.Permission { return policy.Create }

// GetCredentialRequest fetches a credential by name. The sensitive
// envelope is included only when the Reveal flag is set.
type GetCredentialRequest struct {
	Name   string
	Reveal bool
}

// Resource implements [policy.SecuredAction].
func (r *GetCredentialRequest) Resource() resid.Ident {
	return resid.LabelCredential.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *GetCredentialRequest) Permission() policy.Permission { return policy.Read }

// ListCredentialsRequest pages through credentials, optionally
// restricted to one purpose.
type ListCredentialsRequest struct {
	Purpose    CredentialPurpose
	MaxResults int
	PageToken  string
}

// Resource implements [policy.SecuredAction].
func (r *ListCredentialsRequest) Resource() resid.Ident {
	return resid.LabelCredential.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListCredentialsRequest) Permission() policy.Permission { return policy.Read }

// ListCredentialsResponse is one page of credentials, envelopes
// omitted.
type ListCredentialsResponse struct {
	Credentials   []CredentialInfo `json:"credentials"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// UpdateCredentialRequest mutates a credential. A non-empty envelope
// rotates the secret; an empty one leaves the stored secret alone.
type UpdateCredentialRequest struct {
	CredentialEnvelope
	Name     string  `json:"-"`
	NewName  string  `json:"new_name,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	ReadOnly *bool   `json:"read_only,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateCredentialRequest) Resource() resid.Ident {
	return resid.LabelCredential.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateCredentialRequest) Permission() policy.Permission { return policy.Manage }

// DeleteCredentialRequest removes a credential and its secret.
type DeleteCredentialRequest struct {
	Name string
}

// Resource implements [policy.SecuredAction].
func (r *DeleteCredentialRequest) Resource() resid.Ident {
	return resid.LabelCredential.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteCredentialRequest) Permission() policy.Permission { return policy.Manage }

// CreateCredential writes the metadata row and then the secret
// envelope.
func (s *Service) CreateCredential(
	ctx context.Context, recipient *types.Recipient, req *CreateCredentialRequest,
) (*CredentialInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, types.Codef(types.InvalidArgument, "credential name is required")
	}
	switch req.Purpose {
	case PurposeStorage, PurposeService:
	default:
		return nil, types.Codef(types.InvalidArgument,
			"unknown credential purpose %q", req.Purpose)
	}
	if req.CredentialEnvelope.Empty() {
		return nil, types.Codef(types.InvalidArgument,
			"exactly one credential variant must be provided")
	}

	name := resid.NewName(req.Name)
	info := &CredentialInfo{
		Name:     req.Name,
		FullName: req.Name,
		Purpose:  req.Purpose,
		ReadOnly: req.ReadOnly,
		Comment:  req.Comment,
		Owner:    ownerOf(recipient),
	}
	obj, err := toObject(resid.LabelCredential, name, info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}

	secret, err := json.Marshal(&req.CredentialEnvelope)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode credential envelope")
	}
	if _, err := s.Secrets.CreateSecret(ctx, secretName(req.Name), secret); err != nil {
		// Roll the metadata back so the caller can retry cleanly.
		if delErr := s.Store.Delete(ctx, created.Ident()); delErr != nil {
			log.WithError(delErr).Warnf(
				"could not undo metadata for credential %q", req.Name)
		}
		return nil, err
	}
	return credentialFromObject(created)
}

// GetCredential returns the metadata, joining in the secret envelope
// when requested.
func (s *Service) GetCredential(
	ctx context.Context, recipient *types.Recipient, req *GetCredentialRequest,
) (*CredentialInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	obj, err := s.Store.Get(ctx, req.Resource())
	if err != nil {
		return nil, err
	}
	info, err := credentialFromObject(obj)
	if err != nil {
		return nil, err
	}
	if req.Reveal {
		if err := s.loadEnvelope(ctx, info); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// ListCredentials returns a policy-filtered page. Envelopes are never
// included in listings.
func (s *Service) ListCredentials(
	ctx context.Context, recipient *types.Recipient, req *ListCredentialsRequest,
) (*ListCredentialsResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelCredential,
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListCredentialsResponse{
		Credentials:   make([]CredentialInfo, 0, len(page.Objects)),
		NextPageToken: page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := credentialFromObject(obj)
		if err != nil {
			return nil, err
		}
		if req.Purpose != "" && info.Purpose != req.Purpose {
			continue
		}
		ret.Credentials = append(ret.Credentials, *info)
	}
	return ret, nil
}

// UpdateCredential performs a read-modify-write on the metadata and
// rotates the secret when a new envelope was supplied. A rename moves
// the secret to the new name.
func (s *Service) UpdateCredential(
	ctx context.Context, recipient *types.Recipient, req *UpdateCredentialRequest,
) (*CredentialInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[CredentialInfo](obj, resid.LabelCredential)
	if err != nil {
		return nil, err
	}

	priorName := current.Name
	if req.NewName != "" {
		current.Name = req.NewName
		current.FullName = req.NewName
	}
	if req.Comment != nil {
		current.Comment = *req.Comment
	}
	if req.ReadOnly != nil {
		current.ReadOnly = *req.ReadOnly
	}
	current.CredentialEnvelope = CredentialEnvelope{}

	next, err := toObject(resid.LabelCredential, resid.NewName(current.Name), current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}

	if current.Name != priorName {
		// Move the secret under the new name, keeping only the
		// latest version.
		_, data, err := s.Secrets.GetSecret(ctx, secretName(priorName))
		if err != nil {
			return nil, err
		}
		if _, err := s.Secrets.CreateSecret(ctx, secretName(current.Name), data); err != nil {
			return nil, err
		}
		if err := s.Secrets.DeleteSecret(ctx, secretName(priorName)); err != nil {
			log.WithError(err).Warnf(
				"could not remove secret for renamed credential %q", priorName)
		}
	}
	if !req.CredentialEnvelope.Empty() {
		secret, err := json.Marshal(&req.CredentialEnvelope)
		if err != nil {
			return nil, errors.Wrap(err, "could not encode credential envelope")
		}
		if _, err := s.Secrets.UpdateSecret(ctx, secretName(current.Name), secret); err != nil {
			return nil, err
		}
	}
	return credentialFromObject(updated)
}

// DeleteCredential removes the metadata and the secret. A missing
// secret is tolerated so deletion stays idempotent when an earlier
// attempt failed halfway.
func (s *Service) DeleteCredential(
	ctx context.Context, recipient *types.Recipient, req *DeleteCredentialRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, req.Resource()); err != nil {
		return err
	}
	if err := s.Secrets.DeleteSecret(ctx, secretName(req.Name)); err != nil && !types.IsNotFound(err) {
		return err
	}
	return nil
}

// loadEnvelope joins the secret payload onto the metadata record.
func (s *Service) loadEnvelope(ctx context.Context, info *CredentialInfo) error {
	_, data, err := s.Secrets.GetSecret(ctx, secretName(info.Name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &info.CredentialEnvelope); err != nil {
		return types.Coded(types.Internal,
			errors.Wrapf(err, "corrupt secret for credential %q", info.Name))
	}
	return nil
}

// secretName namespaces credential secrets within the secret store.
func secretName(credential string) string {
	return "credential/" + credential
}

func credentialFromObject(obj *types.Object) (*CredentialInfo, error) {
	info, err := payload[CredentialInfo](obj, resid.LabelCredential)
	if err != nil {
		return nil, err
	}
	info.ID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	return info, nil
}
