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
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/openlake/catalogd/internal/types"
	"github.com/pkg/errors"
)

// Issuer is stamped into tokens minted by this service.
const Issuer = "catalogd"

// Claims is the token payload. The subject carries the principal
// name.
type Claims struct {
	jwt.RegisteredClaims
}

// Valid implements [jwt.Claims].
func (c Claims) Valid() error {
	if c.Subject == "" {
		return jwt.NewValidationError("subject is required", jwt.ValidationErrorClaimsInvalid)
	}
	return c.RegisteredClaims.Valid()
}

// jwtAuth verifies HMAC-signed service tokens.
type jwtAuth struct {
	key []byte
}

// JWT returns an authenticator for tokens signed with the shared key.
func JWT(key []byte) types.Authenticator {
	return &jwtAuth{key: key}
}

// Authenticate implements [types.Authenticator].
func (a *jwtAuth) Authenticate(
	_ context.Context, token string,
) (*types.Recipient, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return a.key, nil
		})
	if err != nil {
		// A malformed or forged token is not an internal failure.
		return nil, nil
	}
	return &types.Recipient{Name: claims.Subject}, nil
}

// Sign mints a token for the principal, used by the mktoken command
// and by tests.
func Sign(key []byte, principal string, lifetime time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    Issuer,
			Subject:   principal,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
		},
	}
	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ret, err := tkn.SignedString(key)
	return ret, errors.WithStack(err)
}
