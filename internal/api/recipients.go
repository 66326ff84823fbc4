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
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	"github.com/pkg/errors"
)

// CreateRecipientRequest registers a recipient. TOKEN recipients are
// issued a bearer token immediately; its value appears only in the
// creation response.
type CreateRecipientRequest struct {
	Name               string             `json:"name"`
	AuthenticationType AuthenticationType `json:"authentication_type"`
	Comment            string             `json:"comment,omitempty"`
	Properties         map[string]string  `json:"properties,omitempty"`
	ExpirationTime     int64              `json:"expiration_time,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *CreateRecipientRequest) Resource() resid.Ident {
	return resid.LabelRecipient.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *CreateRecipientRequest) Permission() policy.Permission { return policy.Create }

// GetRecipientRequest fetches a recipient by name.
type GetRecipientRequest struct {
	Name string
}

// Resource implements [policy.SecuredAction].
func (r *GetRecipientRequest) Resource() resid.Ident {
	return resid.LabelRecipient.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *GetRecipientRequest) Permission() policy.Permission { return policy.Read }

// ListRecipientsRequest pages through all recipients.
type ListRecipientsRequest struct {
	MaxResults int
	PageToken  string
}

// Resource implements [policy.SecuredAction].
func (r *ListRecipientsRequest) Resource() resid.Ident {
	return resid.LabelRecipient.Ident(resid.Undefined())
}

// Permission implements [policy.SecuredAction].
func (r *ListRecipientsRequest) Permission() policy.Permission { return policy.Read }

// ListRecipientsResponse is one page of recipients.
type ListRecipientsResponse struct {
	Recipients    []RecipientInfo `json:"recipients"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// UpdateRecipientRequest mutates a recipient.
type UpdateRecipientRequest struct {
	Name           string            `json:"-"`
	NewName        string            `json:"new_name,omitempty"`
	Comment        *string           `json:"comment,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	ExpirationTime *int64            `json:"expiration_time,omitempty"`
}

// Resource implements [policy.SecuredAction].
func (r *UpdateRecipientRequest) Resource() resid.Ident {
	return resid.LabelRecipient.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *UpdateRecipientRequest) Permission() policy.Permission { return policy.Manage }

// DeleteRecipientRequest removes a recipient.
type DeleteRecipientRequest struct {
	Name string
}

// Resource implements [policy.SecuredAction].
func (r *DeleteRecipientRequest) Resource() resid.Ident {
	return resid.LabelRecipient.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *DeleteRecipientRequest) Permission() policy.Permission { return policy.Manage }

// RotateRecipientTokenRequest mints a fresh token and truncates the
// lifetime of any existing ones.
type RotateRecipientTokenRequest struct {
	Name string `json:"-"`
	// ExistingTokenExpireInSeconds bounds how long previously-issued
	// tokens remain valid; zero revokes them immediately.
	ExistingTokenExpireInSeconds int64 `json:"existing_token_expire_in_seconds"`
}

// Resource implements [policy.SecuredAction].
func (r *RotateRecipientTokenRequest) Resource() resid.Ident {
	return resid.LabelRecipient.Ident(resid.NameRef(resid.NewName(r.Name)))
}

// Permission implements [policy.SecuredAction].
func (r *RotateRecipientTokenRequest) Permission() policy.Permission { return policy.Manage }

// CreateRecipient persists the recipient, minting a bearer token for
// TOKEN authentication.
func (s *Service) CreateRecipient(
	ctx context.Context, recipient *types.Recipient, req *CreateRecipientRequest,
) (*RecipientInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, types.Codef(types.InvalidArgument, "recipient name is required")
	}
	switch req.AuthenticationType {
	case AuthToken, AuthOAuthClientCredentials:
	default:
		return nil, types.Codef(types.InvalidArgument,
			"unknown authentication type %q", req.AuthenticationType)
	}

	info := &RecipientInfo{
		Name:               req.Name,
		AuthenticationType: req.AuthenticationType,
		Comment:            req.Comment,
		Properties:         req.Properties,
		ExpirationTime:     req.ExpirationTime,
		Owner:              ownerOf(recipient),
	}
	if req.AuthenticationType == AuthToken {
		token, err := mintToken(req.ExpirationTime)
		if err != nil {
			return nil, err
		}
		info.Tokens = []TokenInfo{*token}
	}
	obj, err := toObject(resid.LabelRecipient, resid.NewName(req.Name), info)
	if err != nil {
		return nil, err
	}
	created, err := s.Store.Create(ctx, obj)
	if err != nil {
		return nil, err
	}
	out, err := recipientFromObject(created, false)
	if err != nil {
		return nil, err
	}
	// Echo the plain token values once.
	out.Tokens = info.Tokens
	return out, nil
}

// GetRecipient returns the recipient with token values redacted.
func (s *Service) GetRecipient(
	ctx context.Context, recipient *types.Recipient, req *GetRecipientRequest,
) (*RecipientInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	obj, err := s.Store.Get(ctx, req.Resource())
	if err != nil {
		return nil, err
	}
	return recipientFromObject(obj, true)
}

// ListRecipients returns a policy-filtered page, tokens redacted.
func (s *Service) ListRecipients(
	ctx context.Context, recipient *types.Recipient, req *ListRecipientsRequest,
) (*ListRecipientsResponse, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	page, err := s.listVisible(ctx, recipient, &types.ListRequest{
		Label:     resid.LabelRecipient,
		Limit:     req.MaxResults,
		PageToken: req.PageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListRecipientsResponse{
		Recipients:    make([]RecipientInfo, 0, len(page.Objects)),
		NextPageToken: page.NextPageToken,
	}
	for _, obj := range page.Objects {
		info, err := recipientFromObject(obj, true)
		if err != nil {
			return nil, err
		}
		ret.Recipients = append(ret.Recipients, *info)
	}
	return ret, nil
}

// UpdateRecipient performs a read-modify-write on the metadata; the
// authentication type and issued tokens are untouched.
func (s *Service) UpdateRecipient(
	ctx context.Context, recipient *types.Recipient, req *UpdateRecipientRequest,
) (*RecipientInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[RecipientInfo](obj, resid.LabelRecipient)
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
	if req.ExpirationTime != nil {
		current.ExpirationTime = *req.ExpirationTime
	}

	next, err := toObject(resid.LabelRecipient, resid.NewName(current.Name), current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	return recipientFromObject(updated, true)
}

// DeleteRecipient removes the record, revoking its tokens.
func (s *Service) DeleteRecipient(
	ctx context.Context, recipient *types.Recipient, req *DeleteRecipientRequest,
) error {
	if err := s.check(ctx, recipient, req); err != nil {
		return err
	}
	return s.Store.Delete(ctx, req.Resource())
}

// RotateRecipientToken issues a new token and clamps the expiry of the
// existing ones.
func (s *Service) RotateRecipientToken(
	ctx context.Context, recipient *types.Recipient, req *RotateRecipientTokenRequest,
) (*RecipientInfo, error) {
	if err := s.check(ctx, recipient, req); err != nil {
		return nil, err
	}
	if req.ExistingTokenExpireInSeconds < 0 {
		return nil, types.Codef(types.InvalidArgument,
			"existing_token_expire_in_seconds must not be negative")
	}
	ident := req.Resource()
	obj, err := s.Store.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	current, err := payload[RecipientInfo](obj, resid.LabelRecipient)
	if err != nil {
		return nil, err
	}
	if current.AuthenticationType != AuthToken {
		return nil, types.Codef(types.InvalidArgument,
			"recipient %q does not use token authentication", req.Name)
	}

	cutoff := time.Now().
		Add(time.Duration(req.ExistingTokenExpireInSeconds) * time.Second).
		UnixMilli()
	for i := range current.Tokens {
		t := &current.Tokens[i]
		if t.ExpirationTime == 0 || t.ExpirationTime > cutoff {
			t.ExpirationTime = cutoff
		}
	}
	token, err := mintToken(current.ExpirationTime)
	if err != nil {
		return nil, err
	}
	current.Tokens = append(current.Tokens, *token)

	next, err := toObject(resid.LabelRecipient, resid.NewName(current.Name), current)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(ctx, ident, next)
	if err != nil {
		return nil, err
	}
	out, err := recipientFromObject(updated, false)
	if err != nil {
		return nil, err
	}
	// Redact everything but the token just minted.
	for i := range out.Tokens {
		if out.Tokens[i].ID != token.ID {
			out.Tokens[i].TokenValue = ""
		}
	}
	return out, nil
}

// mintToken generates a random bearer token.
func mintToken(expiration int64) (*TokenInfo, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "could not generate token")
	}
	return &TokenInfo{
		ID:             uuid.New().String(),
		CreatedAt:      time.Now().UnixMilli(),
		ExpirationTime: expiration,
		TokenValue:     "dss_" + hex.EncodeToString(buf),
	}, nil
}

func recipientFromObject(obj *types.Object, redact bool) (*RecipientInfo, error) {
	info, err := payload[RecipientInfo](obj, resid.LabelRecipient)
	if err != nil {
		return nil, err
	}
	info.ID = obj.ID.String()
	info.CreatedAt, info.UpdatedAt = millis(obj)
	if redact {
		for i := range info.Tokens {
			info.Tokens[i].TokenValue = ""
		}
	}
	return info, nil
}
