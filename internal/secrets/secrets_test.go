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

package secrets

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/openlake/catalogd/internal/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func testKey(b byte) string {
	key := make([]byte, chacha20poly1305.KeySize)
	for i := range key {
		key[i] = b
	}
	return hex.EncodeToString(key)
}

func TestCipherRoundTrip(t *testing.T) {
	r := require.New(t)

	c, err := NewCipher(testKey(1))
	r.NoError(err)

	plaintext := []byte(`{"aws_temp_credentials":{"access_key_id":"AKIA"}}`)
	sealed, err := c.Seal(plaintext)
	r.NoError(err)
	r.NotEqual(plaintext, sealed)

	opened, err := c.Open(sealed)
	r.NoError(err)
	r.Equal(plaintext, opened)

	// Nonces are random, so sealing twice never repeats.
	again, err := c.Seal(plaintext)
	r.NoError(err)
	r.NotEqual(sealed, again)
}

func TestCipherRejects(t *testing.T) {
	r := require.New(t)

	_, err := NewCipher("not hex")
	r.Error(err)
	_, err = NewCipher("abcd")
	r.Error(err)

	c1, err := NewCipher(testKey(1))
	r.NoError(err)
	c2, err := NewCipher(testKey(2))
	r.NoError(err)

	sealed, err := c1.Seal([]byte("payload"))
	r.NoError(err)
	_, err = c2.Open(sealed)
	r.Error(err)

	_, err = c1.Open([]byte("short"))
	r.Error(err)
}

func TestMemoryVersions(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	m := NewMemory()
	v1, err := m.CreateSecret(ctx, "credential/finance", []byte("one"))
	r.NoError(err)
	v2, err := m.UpdateSecret(ctx, "credential/finance", []byte("two"))
	r.NoError(err)
	r.NotEqual(v1, v2)

	id, data, err := m.GetSecret(ctx, "credential/finance")
	r.NoError(err)
	r.Equal(v2, id)
	r.Equal([]byte("two"), data)

	old, err := m.GetSecretVersion(ctx, "credential/finance", v1)
	r.NoError(err)
	r.Equal([]byte("one"), old)

	r.NoError(m.DeleteSecret(ctx, "credential/finance"))
	_, _, err = m.GetSecret(ctx, "credential/finance")
	r.True(types.IsNotFound(err))
	r.True(types.IsNotFound(m.DeleteSecret(ctx, "credential/finance")))
}
