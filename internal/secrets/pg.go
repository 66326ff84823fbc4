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
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/retry"
	"github.com/pkg/errors"
)

const schemaSecrets = `
CREATE TABLE IF NOT EXISTS secrets (
  id UUID PRIMARY KEY,
  name TEXT NOT NULL,
  value BYTEA NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`

const sqlSecretInsert = `
INSERT INTO secrets (id, name, value, created_at) VALUES ($1, $2, $3, $4)`

// Versions are ordered by insertion time, id as a tiebreak.
const sqlSecretLatest = `
SELECT id, value FROM secrets WHERE name = $1 ORDER BY created_at DESC, id DESC LIMIT 1`

const sqlSecretVersion = `
SELECT value FROM secrets WHERE name = $1 AND id = $2`

const sqlSecretDelete = `
DELETE FROM secrets WHERE name = $1`

// PG stores sealed secret versions in the catalog database.
type PG struct {
	cipher *Cipher
	pool   *pgxpool.Pool
}

var _ types.SecretStore = (*PG)(nil)

// NewPG bootstraps the secrets table. All values pass through the
// cipher before touching the wire.
func NewPG(ctx context.Context, pool *pgxpool.Pool, cipher *Cipher) (*PG, error) {
	if err := retry.Retry(ctx, func(ctx context.Context) error {
		_, err := pool.Exec(ctx, schemaSecrets)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "could not bootstrap secrets schema")
	}
	return &PG{cipher: cipher, pool: pool}, nil
}

// CreateSecret implements [types.SecretStore].
func (p *PG) CreateSecret(ctx context.Context, name string, data []byte) (uuid.UUID, error) {
	sealed, err := p.cipher.Seal(data)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	if err := retry.Retry(ctx, func(ctx context.Context) error {
		_, err := p.pool.Exec(ctx, sqlSecretInsert, id, name, sealed, time.Now().UTC())
		return err
	}); err != nil {
		return uuid.Nil, errors.Wrap(err, "could not store secret")
	}
	return id, nil
}

// UpdateSecret appends a new version.
func (p *PG) UpdateSecret(ctx context.Context, name string, data []byte) (uuid.UUID, error) {
	return p.CreateSecret(ctx, name, data)
}

// GetSecret implements [types.SecretStore].
func (p *PG) GetSecret(ctx context.Context, name string) (uuid.UUID, []byte, error) {
	var id uuid.UUID
	var sealed []byte
	err := retry.Retry(ctx, func(ctx context.Context) error {
		return p.pool.QueryRow(ctx, sqlSecretLatest, name).Scan(&id, &sealed)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil, types.Codef(types.NotFound, "no secret named %q", name)
	}
	if err != nil {
		return uuid.Nil, nil, errors.Wrap(err, "could not load secret")
	}
	plaintext, err := p.cipher.Open(sealed)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, plaintext, nil
}

// GetSecretVersion implements [types.SecretStore].
func (p *PG) GetSecretVersion(
	ctx context.Context, name string, version uuid.UUID,
) ([]byte, error) {
	var sealed []byte
	err := retry.Retry(ctx, func(ctx context.Context) error {
		return p.pool.QueryRow(ctx, sqlSecretVersion, name, version).Scan(&sealed)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.Codef(types.NotFound, "no secret named %q with version %s", name, version)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load secret version")
	}
	return p.cipher.Open(sealed)
}

// DeleteSecret implements [types.SecretStore].
func (p *PG) DeleteSecret(ctx context.Context, name string) error {
	var affected int64
	if err := retry.Retry(ctx, func(ctx context.Context) error {
		tag, err := p.pool.Exec(ctx, sqlSecretDelete, name)
		affected = tag.RowsAffected()
		return err
	}); err != nil {
		return errors.Wrap(err, "could not delete secret")
	}
	if affected == 0 {
		return types.Codef(types.NotFound, "no secret named %q", name)
	}
	return nil
}
