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

// Package secrets contains the secret-store backends. The stored
// payload is opaque to this package; the credential API controls its
// schema.
package secrets

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/openlake/catalogd/internal/types"
)

// version pairs a version id with its plaintext payload.
type version struct {
	id   uuid.UUID
	data []byte
}

// Memory is an unencrypted in-memory secret store for tests and
// single-node development.
type Memory struct {
	mu struct {
		sync.Mutex
		secrets map[string][]version
	}
}

var _ types.SecretStore = (*Memory)(nil)

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	m := &Memory{}
	m.mu.secrets = make(map[string][]version)
	return m
}

// CreateSecret implements [types.SecretStore].
func (m *Memory) CreateSecret(_ context.Context, name string, data []byte) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	m.mu.secrets[name] = append(m.mu.secrets[name],
		version{id: id, data: append([]byte(nil), data...)})
	return id, nil
}

// UpdateSecret appends a new version.
func (m *Memory) UpdateSecret(ctx context.Context, name string, data []byte) (uuid.UUID, error) {
	return m.CreateSecret(ctx, name, data)
}

// GetSecret implements [types.SecretStore].
func (m *Memory) GetSecret(_ context.Context, name string) (uuid.UUID, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := m.mu.secrets[name]
	if len(versions) == 0 {
		return uuid.Nil, nil, types.Codef(types.NotFound, "no secret named %q", name)
	}
	latest := versions[len(versions)-1]
	return latest.id, append([]byte(nil), latest.data...), nil
}

// GetSecretVersion implements [types.SecretStore].
func (m *Memory) GetSecretVersion(
	_ context.Context, name string, id uuid.UUID,
) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.mu.secrets[name] {
		if v.id == id {
			return append([]byte(nil), v.data...), nil
		}
	}
	return nil, types.Codef(types.NotFound, "no secret named %q with version %s", name, id)
}

// DeleteSecret implements [types.SecretStore].
func (m *Memory) DeleteSecret(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.mu.secrets[name]) == 0 {
		return types.Codef(types.NotFound, "no secret named %q", name)
	}
	delete(m.mu.secrets, name)
	return nil
}
