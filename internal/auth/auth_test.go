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

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/secrets"
	"github.com/openlake/catalogd/internal/store/mem"
	"github.com/openlake/catalogd/internal/types"
	"github.com/stretchr/testify/require"
)

func TestAnonymousAndReject(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	recipient, err := Anonymous().Authenticate(ctx, "anything")
	r.NoError(err)
	r.NotNil(recipient)
	r.True(recipient.Anonymous)

	recipient, err = Reject().Authenticate(ctx, "anything")
	r.NoError(err)
	r.Nil(recipient)
}

func TestFirstOf(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	key := []byte("0123456789abcdef0123456789abcdef")
	chain := FirstOf(JWT(key), Reject())

	token, err := Sign(key, "analyst", time.Minute)
	r.NoError(err)

	recipient, err := chain.Authenticate(ctx, token)
	r.NoError(err)
	r.NotNil(recipient)
	r.Equal("analyst", recipient.Name)

	// Nothing claims garbage, so the chain falls through to Reject.
	recipient, err = chain.Authenticate(ctx, "garbage")
	r.NoError(err)
	r.Nil(recipient)
}

func TestJWT(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	key := []byte("0123456789abcdef0123456789abcdef")
	verifier := JWT(key)

	token, err := Sign(key, "analyst", time.Minute)
	r.NoError(err)
	recipient, err := verifier.Authenticate(ctx, token)
	r.NoError(err)
	r.NotNil(recipient)
	r.Equal("analyst", recipient.Name)

	// Wrong key, expired lifetime, and an empty subject all fail
	// without raising an error.
	forged, err := Sign([]byte("another-key-another-key-another!"), "analyst", time.Minute)
	r.NoError(err)
	recipient, err = verifier.Authenticate(ctx, forged)
	r.NoError(err)
	r.Nil(recipient)

	expired, err := Sign(key, "analyst", -time.Minute)
	r.NoError(err)
	recipient, err = verifier.Authenticate(ctx, expired)
	r.NoError(err)
	r.Nil(recipient)

	anonymous, err := Sign(key, "", time.Minute)
	r.NoError(err)
	recipient, err = verifier.Authenticate(ctx, anonymous)
	r.NoError(err)
	r.Nil(recipient)
}

func TestRecipientTokens(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	store := mem.New()
	catalog := api.New(store, secrets.NewMemory(), policy.AllowAll())
	admin := &types.Recipient{Name: "admin"}

	created, err := catalog.CreateRecipient(ctx, admin, &api.CreateRecipientRequest{
		Name:               "partner",
		AuthenticationType: api.AuthToken,
	})
	r.NoError(err)
	plain := created.Tokens[0].TokenValue

	verifier := RecipientTokens(store)
	recipient, err := verifier.Authenticate(ctx, plain)
	r.NoError(err)
	r.NotNil(recipient)
	r.Equal("partner", recipient.Name)

	// Tokens without the service prefix are not ours to judge.
	recipient, err = verifier.Authenticate(ctx, "eyJhbGciOi")
	r.NoError(err)
	r.Nil(recipient)

	recipient, err = verifier.Authenticate(ctx, "dss_0000000000000000")
	r.NoError(err)
	r.Nil(recipient)

	// Rotation with immediate expiry revokes the old token.
	rotated, err := catalog.RotateRecipientToken(ctx, admin, &api.RotateRecipientTokenRequest{
		Name: "partner",
	})
	r.NoError(err)
	recipient, err = verifier.Authenticate(ctx, plain)
	r.NoError(err)
	r.Nil(recipient)

	recipient, err = verifier.Authenticate(ctx, rotated.Tokens[1].TokenValue)
	r.NoError(err)
	r.NotNil(recipient)
	r.Equal("partner", recipient.Name)
}
