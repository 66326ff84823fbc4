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

package resid

import "github.com/google/uuid"

// A Ref points at a resource either by its globally unique id or by
// its qualified name. The zero value is the undefined reference, which
// names the resource class as a whole; it is used for list and create
// permission checks.
type Ref struct {
	id   uuid.UUID
	name Name
	kind refKind
}

type refKind int

const (
	refUndefined refKind = iota
	refUUID
	refName
)

// UUIDRef references a resource by id.
func UUIDRef(id uuid.UUID) Ref {
	return Ref{id: id, kind: refUUID}
}

// NameRef references a resource by qualified name.
func NameRef(name Name) Ref {
	return Ref{name: name, kind: refName}
}

// Undefined returns the wildcard reference.
func Undefined() Ref { return Ref{} }

// IsUndefined reports whether the reference names the class as a whole.
func (r Ref) IsUndefined() bool { return r.kind == refUndefined }

// UUID returns the id and true if the reference is by id.
func (r Ref) UUID() (uuid.UUID, bool) {
	return r.id, r.kind == refUUID
}

// Name returns the qualified name and true if the reference is by
// name.
func (r Ref) Name() (Name, bool) {
	return r.name, r.kind == refName
}

func (r Ref) String() string {
	switch r.kind {
	case refUUID:
		return r.id.String()
	case refName:
		return r.name.String()
	default:
		return "*"
	}
}

// An Ident is the pair of a resource kind and a reference; it is the
// unit of authorization and store lookup.
type Ident struct {
	Label Label
	Ref   Ref
}

func (i Ident) String() string {
	return i.Label.String() + ":" + i.Ref.String()
}
