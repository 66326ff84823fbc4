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

// Package types contains the core contracts shared between the catalog
// subsystems. The goal of placing them here is to make the major
// functional blocks easy to compose and to stub out in tests.
package types

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/openlake/catalogd/internal/util/resid"
)

// An Object is the stored form of any catalog resource. The typed
// payload is kept as an opaque JSON document; conversions between an
// Object and a typed record are total and fallible, failing with
// InvalidArgument on a label mismatch.
type Object struct {
	ID         uuid.UUID
	Label      resid.Label
	Name       resid.Name
	Properties json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Ident returns the name-form identifier for the object.
func (o *Object) Ident() resid.Ident {
	return o.Label.Ident(resid.NameRef(o.Name))
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	next := *o
	next.Properties = append(json.RawMessage(nil), o.Properties...)
	return &next
}

// A ListRequest describes one page of a listing.
type ListRequest struct {
	Label resid.Label
	// Parent restricts results to names with this prefix. The empty
	// name matches everything.
	Parent resid.Name
	// Limit is advisory; implementations apply a server-chosen cap.
	Limit int
	// PageToken continues an earlier listing. Tokens are opaque.
	PageToken string
}

// A ListResult is one page of objects in (name, id) order.
type ListResult struct {
	Objects []*Object
	// NextPageToken is empty on the final page.
	NextPageToken string
}

// ResourceStore persists typed resource records keyed by (label, name)
// and by id. Implementations provide linearizable mutations on a
// single resource; listing is snapshot-consistent per call.
type ResourceStore interface {
	// Create assigns a fresh id when absent and fails with
	// AlreadyExists when (label, name) collides.
	Create(ctx context.Context, obj *Object) (*Object, error)

	// Get resolves by id or by (label, name).
	Get(ctx context.Context, ident resid.Ident) (*Object, error)

	// Update performs a read-modify-write: id and created_at are
	// preserved, updated_at is bumped, everything else is replaced.
	Update(ctx context.Context, ident resid.Ident, obj *Object) (*Object, error)

	// Delete removes the record, failing with NotFound when absent.
	Delete(ctx context.Context, ident resid.Ident) error

	// List returns one page in stable (name, id) order.
	List(ctx context.Context, req *ListRequest) (*ListResult, error)
}

// SecretStore holds versioned opaque byte blobs keyed by name. The
// payload shape is controlled by the caller; persisted implementations
// encrypt at rest.
type SecretStore interface {
	// CreateSecret writes the first (or next) version of a secret.
	CreateSecret(ctx context.Context, name string, data []byte) (uuid.UUID, error)

	// UpdateSecret appends a new version; it is semantically
	// equivalent to CreateSecret.
	UpdateSecret(ctx context.Context, name string, data []byte) (uuid.UUID, error)

	// GetSecret returns the latest version.
	GetSecret(ctx context.Context, name string) (uuid.UUID, []byte, error)

	// GetSecretVersion returns one specific version.
	GetSecretVersion(ctx context.Context, name string, version uuid.UUID) ([]byte, error)

	// DeleteSecret removes all versions, failing with NotFound when
	// none exist.
	DeleteSecret(ctx context.Context, name string) error
}

// A Recipient is the authenticated identity a request acts on behalf
// of. It is the sole authorization input to the policy engine.
type Recipient struct {
	// Name is the principal, empty for the anonymous recipient.
	Name string
	// Anonymous marks requests that carried no credentials.
	Anonymous bool
}

// AnonymousRecipient is attached to unauthenticated requests when the
// authenticator permits them.
func AnonymousRecipient() *Recipient {
	return &Recipient{Anonymous: true}
}

// An Authenticator resolves a bearer token into a Recipient. A nil
// recipient with a nil error means the token was rejected.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Recipient, error)
}
