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

// Package policy decides whether a recipient may act on a resource.
package policy

import (
	"context"

	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// A Permission names one of the actions a policy can authorize.
type Permission string

// The permission set. Use covers indirect access, e.g. reading a
// shared table through a share.
const (
	Create Permission = "create"
	Read   Permission = "read"
	Manage Permission = "manage"
	Use    Permission = "use"
)

// A Decision is the outcome of a policy check.
type Decision bool

// The possible outcomes.
const (
	Allow Decision = true
	Deny  Decision = false
)

// A Policy decides {recipient, resource, permission} triples.
// Implementations must be safe for concurrent use.
type Policy interface {
	Check(
		ctx context.Context,
		recipient *types.Recipient,
		ident resid.Ident,
		permission Permission,
	) (Decision, error)
}

// A SecuredAction is a request that knows which resource and
// permission it demands. All API request types implement this.
type SecuredAction interface {
	Resource() resid.Ident
	Permission() Permission
}

// secured is a free-standing SecuredAction for internal checks that
// have no request type of their own.
type secured struct {
	ident      resid.Ident
	permission Permission
}

// Secured pairs a resource with a permission as a SecuredAction.
func Secured(ident resid.Ident, permission Permission) SecuredAction {
	return &secured{ident: ident, permission: permission}
}

// Resource implements [SecuredAction].
func (s *secured) Resource() resid.Ident { return s.ident }

// Permission implements [SecuredAction].
func (s *secured) Permission() Permission { return s.permission }

// CheckRequired fails the request with NotAllowed on a Deny decision.
func CheckRequired(
	ctx context.Context, p Policy, recipient *types.Recipient, action SecuredAction,
) error {
	decision, err := p.Check(ctx, recipient, action.Resource(), action.Permission())
	if err != nil {
		return err
	}
	if decision != Allow {
		return types.Codef(types.NotAllowed, "permission %q denied on %s",
			action.Permission(), action.Resource())
	}
	return nil
}

// Filter retains only the objects for which the recipient holds the
// permission, preserving order.
func Filter(
	ctx context.Context,
	p Policy,
	recipient *types.Recipient,
	permission Permission,
	objs []*types.Object,
) ([]*types.Object, error) {
	kept := objs[:0]
	for _, obj := range objs {
		decision, err := p.Check(ctx, recipient, obj.Ident(), permission)
		if err != nil {
			return nil, err
		}
		if decision == Allow {
			kept = append(kept, obj)
		}
	}
	return kept, nil
}

// constant allows or denies everything.
type constant struct {
	decision Decision
}

// AllowAll returns the default policy, which permits every operation.
// Production deployments substitute an implementation backed by an
// external rules engine.
func AllowAll() Policy { return &constant{decision: Allow} }

// DenyAll returns a policy that rejects every operation.
func DenyAll() Policy { return &constant{decision: Deny} }

// Check implements [Policy].
func (c *constant) Check(
	context.Context, *types.Recipient, resid.Ident, Permission,
) (Decision, error) {
	return c.decision, nil
}
