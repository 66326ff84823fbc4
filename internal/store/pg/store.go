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

// Package pg contains the relational resource-store backend.
package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openlake/catalogd/internal/store"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	"github.com/openlake/catalogd/internal/util/retry"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// uniqueViolation is the pgwire code raised by the (label, name)
// constraint.
const uniqueViolation = "23505"

// Store persists objects in two tables: objects holds the records,
// associations is reserved for relation edges.
type Store struct {
	pool *pgxpool.Pool
}

var _ types.ResourceStore = (*Store)(nil)

// New connects to the database named by conn (DATABASE_URL) and
// bootstraps the schema.
func New(ctx context.Context, conn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(conn)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse connection string")
	}
	if cfg.ConnConfig.ConnectTimeout == 0 {
		cfg.ConnConfig.ConnectTimeout = 10 * time.Second
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database pool")
	}
	s := &Store{pool: pool}
	if err := s.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.WithField("database", pool.Config().ConnConfig.Database).Info("resource store ready")
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the connection pool so other persistence layers can
// share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) bootstrap(ctx context.Context) error {
	for _, q := range []string{schemaObjects, schemaAssociations} {
		if err := retry.Retry(ctx, func(ctx context.Context) error {
			_, err := s.pool.Exec(ctx, q)
			return err
		}); err != nil {
			return errors.Wrap(err, "could not bootstrap store schema")
		}
	}
	return nil
}

// Create implements [types.ResourceStore].
func (s *Store) Create(ctx context.Context, obj *types.Object) (*types.Object, error) {
	if obj.Label == resid.LabelUnknown || obj.Name.Empty() {
		return nil, types.Codef(types.InvalidArgument, "object requires a label and a name")
	}
	id := obj.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()

	err := retry.Retry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, sqlCreate,
			id, obj.Label.String(), obj.Name.Segments(), obj.Properties, now)
		return err
	})
	if err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, types.Codef(types.AlreadyExists, "%s %q already exists", obj.Label, obj.Name)
		}
		return nil, errors.Wrap(err, "could not create resource")
	}

	next := obj.Clone()
	next.ID = id
	next.CreatedAt = now
	next.UpdatedAt = now
	return next, nil
}

// Get implements [types.ResourceStore].
func (s *Store) Get(ctx context.Context, ident resid.Ident) (*types.Object, error) {
	var row pgx.Row
	if id, byID := ident.Ref.UUID(); byID {
		row = s.pool.QueryRow(ctx, sqlGetByID, id)
	} else if name, byName := ident.Ref.Name(); byName {
		row = s.pool.QueryRow(ctx, sqlGetByName, ident.Label.String(), name.Segments())
	} else {
		return nil, types.Codef(types.InvalidArgument, "undefined reference cannot address a resource")
	}
	obj, err := scanObject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.Codef(types.NotFound, "%s not found", ident)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load resource")
	}
	return obj, nil
}

// Update implements [types.ResourceStore]. The read and write execute
// in one transaction so concurrent updates serialize on the row.
func (s *Store) Update(
	ctx context.Context, ident resid.Ident, obj *types.Object,
) (*types.Object, error) {
	var ret *types.Object
	err := retry.Retry(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			var row pgx.Row
			if id, byID := ident.Ref.UUID(); byID {
				row = tx.QueryRow(ctx, sqlLockByID, id)
			} else if name, byName := ident.Ref.Name(); byName {
				row = tx.QueryRow(ctx, sqlLockByName, ident.Label.String(), name.Segments())
			} else {
				return types.Codef(types.InvalidArgument, "undefined reference cannot address a resource")
			}
			current, err := scanObject(row)
			if errors.Is(err, pgx.ErrNoRows) {
				return types.Codef(types.NotFound, "%s not found", ident)
			}
			if err != nil {
				return err
			}

			next := obj.Clone()
			next.ID = current.ID
			next.Label = current.Label
			next.CreatedAt = current.CreatedAt
			next.UpdatedAt = time.Now().UTC()
			if next.Name.Empty() {
				next.Name = current.Name
			}

			_, err = tx.Exec(ctx, sqlUpdate,
				next.ID, next.Name.Segments(), next.Properties, next.UpdatedAt)
			if err != nil {
				return err
			}
			ret = next
			return nil
		})
	})
	if err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, types.Codef(types.AlreadyExists, "%s %q already exists", obj.Label, obj.Name)
		}
		return nil, err
	}
	return ret, nil
}

// Delete implements [types.ResourceStore].
func (s *Store) Delete(ctx context.Context, ident resid.Ident) error {
	var tag pgconn.CommandTag
	err := retry.Retry(ctx, func(ctx context.Context) error {
		var err error
		if id, byID := ident.Ref.UUID(); byID {
			tag, err = s.pool.Exec(ctx, sqlDeleteByID, id)
		} else if name, byName := ident.Ref.Name(); byName {
			tag, err = s.pool.Exec(ctx, sqlDeleteByName, ident.Label.String(), name.Segments())
		} else {
			err = types.Codef(types.InvalidArgument, "undefined reference cannot address a resource")
		}
		return err
	})
	if err != nil {
		return errors.Wrap(err, "could not delete resource")
	}
	if tag.RowsAffected() == 0 {
		return types.Codef(types.NotFound, "%s not found", ident)
	}
	return nil
}

// List implements [types.ResourceStore]. Ordering by (name, id) makes
// paging deterministic across identical queries.
func (s *Store) List(ctx context.Context, req *types.ListRequest) (*types.ListResult, error) {
	limit := store.ClampLimit(req.Limit)
	afterName := ""
	afterID := uuid.Nil
	if req.PageToken != "" {
		cursor, err := store.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, err
		}
		afterName = cursor.Name
		afterID = cursor.ID
	}

	var ret *types.ListResult
	err := retry.Retry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, sqlList,
			req.Label.String(), req.Parent.Segments(), afterName, afterID, limit+1)
		if err != nil {
			return err
		}
		defer rows.Close()

		objs := make([]*types.Object, 0, limit)
		for rows.Next() {
			obj, err := scanObject(rows)
			if err != nil {
				return err
			}
			objs = append(objs, obj)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		ret = &types.ListResult{Objects: objs}
		if len(objs) > limit {
			ret.Objects = objs[:limit]
			last := ret.Objects[limit-1]
			ret.NextPageToken = store.EncodeCursor(last.Name, last.ID)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not list resources")
	}
	return ret, nil
}

// scanObject reads one row in the column order shared by all queries.
func scanObject(row pgx.Row) (*types.Object, error) {
	var (
		obj      types.Object
		label    string
		segments []string
	)
	if err := row.Scan(
		&obj.ID, &label, &segments, &obj.Properties, &obj.CreatedAt, &obj.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := resid.ParseLabel(label)
	if err != nil {
		return nil, err
	}
	obj.Label = parsed
	obj.Name = resid.NewName(segments...)
	return &obj, nil
}
