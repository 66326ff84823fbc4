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

// Package auth provides the authenticators behind the HTTP surface.
package auth

import (
	"context"

	"github.com/openlake/catalogd/internal/types"
)

// anonymous admits every request as the anonymous recipient.
type anonymous struct{}

// Anonymous returns the open-access authenticator used by development
// deployments; the policy engine still decides what the anonymous
// recipient may touch.
func Anonymous() types.Authenticator { return &anonymous{} }

// Authenticate implements [types.Authenticator].
func (*anonymous) Authenticate(context.Context, string) (*types.Recipient, error) {
	return types.AnonymousRecipient(), nil
}

// reject refuses every request.
type reject struct{}

// Reject returns an authenticator that fails closed. It is the
// default when authentication is enabled but no verifier could be
// configured.
func Reject() types.Authenticator { return &reject{} }

// Authenticate implements [types.Authenticator].
func (*reject) Authenticate(context.Context, string) (*types.Recipient, error) {
	return nil, nil
}

// fallback tries each delegate in order until one accepts.
type fallback struct {
	delegates []types.Authenticator
}

// FirstOf combines authenticators; the first non-nil recipient wins.
func FirstOf(delegates ...types.Authenticator) types.Authenticator {
	return &fallback{delegates: delegates}
}

// Authenticate implements [types.Authenticator].
func (f *fallback) Authenticate(
	ctx context.Context, token string,
) (*types.Recipient, error) {
	for _, d := range f.delegates {
		recipient, err := d.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		if recipient != nil {
			return recipient, nil
		}
	}
	return nil, nil
}
