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

package pg

// Names are stored as text arrays; the dotted form used by cursors is
// reconstructed with array_to_string so that ordering matches the
// in-memory backend.

const schemaObjects = `
CREATE TABLE IF NOT EXISTS objects (
  id UUID PRIMARY KEY,
  label TEXT NOT NULL,
  name TEXT[] NOT NULL,
  properties JSONB,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (label, name)
)`

const schemaAssociations = `
CREATE TABLE IF NOT EXISTS associations (
  from_id UUID NOT NULL,
  to_id UUID NOT NULL,
  kind TEXT NOT NULL,
  PRIMARY KEY (from_id, to_id, kind)
)`

const sqlCreate = `
INSERT INTO objects (id, label, name, properties, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`

const sqlGetByID = `
SELECT id, label, name, properties, created_at, updated_at
FROM objects WHERE id = $1`

const sqlGetByName = `
SELECT id, label, name, properties, created_at, updated_at
FROM objects WHERE label = $1 AND name = $2`

const sqlLockByID = sqlGetByID + ` FOR UPDATE`

const sqlLockByName = sqlGetByName + ` FOR UPDATE`

const sqlUpdate = `
UPDATE objects SET name = $2, properties = $3, updated_at = $4
WHERE id = $1`

const sqlDeleteByID = `
DELETE FROM objects WHERE id = $1`

const sqlDeleteByName = `
DELETE FROM objects WHERE label = $1 AND name = $2`

const sqlList = `
SELECT id, label, name, properties, created_at, updated_at
FROM objects
WHERE label = $1
  AND ($2::TEXT[] IS NULL OR cardinality($2::TEXT[]) = 0 OR name[1:cardinality($2::TEXT[])] = $2)
  AND (array_to_string(name, '.'), id::TEXT) > ($3, $4::TEXT)
ORDER BY array_to_string(name, '.'), id
LIMIT $5`
