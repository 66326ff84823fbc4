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

// Package sharing answers Delta Sharing protocol queries by joining
// the share records of the catalog with the Delta logs in table
// storage.
package sharing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/sharing/deltalog"
	"github.com/openlake/catalogd/internal/storage/location"
	"github.com/openlake/catalogd/internal/storage/objstore"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	"golang.org/x/sync/singleflight"
)

// snapshotTTL bounds how stale a cached latest-version snapshot may
// be. Version-pinned snapshots are immutable, but expiring them too
// keeps the cache from accumulating history.
const snapshotTTL = time.Minute

// replayTimeout is the default deadline on object-store reads during
// log replay.
const replayTimeout = 30 * time.Second

// A StoreFactory opens the object store holding a parsed location.
type StoreFactory interface {
	Open(ctx context.Context, recipient *types.Recipient, target *location.URL) (objstore.Store, error)
}

// Engine serves the recipient-facing sharing surface.
type Engine struct {
	Catalog *api.Service
	Logs    deltalog.Opener
	Policy  policy.Policy
	Stores  StoreFactory

	flight singleflight.Group
	mu     struct {
		sync.Mutex
		snapshots map[string]*cachedSnapshot
	}
}

type cachedSnapshot struct {
	snap    *deltalog.Snapshot
	fetched time.Time
}

// NewEngine constructs an Engine.
func NewEngine(
	catalog *api.Service, logs deltalog.Opener, pol policy.Policy, stores StoreFactory,
) *Engine {
	e := &Engine{Catalog: catalog, Logs: logs, Policy: pol, Stores: stores}
	e.mu.snapshots = make(map[string]*cachedSnapshot)
	return e
}

// ListShares returns the shares visible to the recipient.
func (e *Engine) ListShares(
	ctx context.Context, recipient *types.Recipient, maxResults int, pageToken string,
) (*ListSharesResponse, error) {
	page, err := e.Catalog.ListShares(ctx, recipient, &api.ListSharesRequest{
		MaxResults: maxResults,
		PageToken:  pageToken,
	})
	if err != nil {
		return nil, err
	}
	ret := &ListSharesResponse{
		Items:         make([]Share, 0, len(page.Shares)),
		NextPageToken: page.NextPageToken,
	}
	for _, s := range page.Shares {
		ret.Items = append(ret.Items, Share{ID: s.ID, Name: s.Name})
	}
	return ret, nil
}

// GetShare returns one share by name.
func (e *Engine) GetShare(
	ctx context.Context, recipient *types.Recipient, share string,
) (*GetShareResponse, error) {
	info, err := e.Catalog.GetShare(ctx, recipient, &api.GetShareRequest{Name: share})
	if err != nil {
		return nil, err
	}
	return &GetShareResponse{Share: Share{ID: info.ID, Name: info.Name}}, nil
}

// ListSchemas returns the distinct exported schemas of a share. The
// set is derived from the shared_as names, so it is always small and
// served as one page.
func (e *Engine) ListSchemas(
	ctx context.Context, recipient *types.Recipient, share string,
) (*ListSchemasResponse, error) {
	info, err := e.loadShare(ctx, recipient, share)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	ret := &ListSchemasResponse{Items: []SharedSchema{}}
	for _, d := range info.DataObjects {
		schema, _ := splitSharedAs(&d)
		if _, ok := seen[schema]; ok {
			continue
		}
		seen[schema] = struct{}{}
		ret.Items = append(ret.Items, SharedSchema{Name: schema, Share: info.Name})
	}
	sort.Slice(ret.Items, func(i, j int) bool {
		return ret.Items[i].Name < ret.Items[j].Name
	})
	return ret, nil
}

// ListSchemaTables returns the tables exported under one schema of a
// share.
func (e *Engine) ListSchemaTables(
	ctx context.Context, recipient *types.Recipient, share, schema string,
) (*ListTablesResponse, error) {
	return e.listTables(ctx, recipient, share, schema)
}

// ListAllTables returns every table of a share across its schemas.
func (e *Engine) ListAllTables(
	ctx context.Context, recipient *types.Recipient, share string,
) (*ListTablesResponse, error) {
	return e.listTables(ctx, recipient, share, "")
}

func (e *Engine) listTables(
	ctx context.Context, recipient *types.Recipient, share, schema string,
) (*ListTablesResponse, error) {
	info, err := e.loadShare(ctx, recipient, share)
	if err != nil {
		return nil, err
	}
	ret := &ListTablesResponse{Items: []SharedTable{}}
	for _, d := range info.DataObjects {
		s, t := splitSharedAs(&d)
		if schema != "" && s != schema {
			continue
		}
		ret.Items = append(ret.Items, SharedTable{
			Name:     t,
			Schema:   s,
			Share:    info.Name,
			ShareID:  info.ID,
			SharedAs: d.SharedAs,
		})
	}
	sort.Slice(ret.Items, func(i, j int) bool {
		a, b := &ret.Items[i], &ret.Items[j]
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		return a.Name < b.Name
	})
	return ret, nil
}

// TableVersion returns the current version of a shared table, or the
// earliest version committed at or after since when it is non-nil.
func (e *Engine) TableVersion(
	ctx context.Context,
	recipient *types.Recipient,
	share, schema, table string,
	since *time.Time,
) (int64, error) {
	if since == nil {
		snap, _, err := e.snapshot(ctx, recipient, share, schema, table, -1)
		if err != nil {
			return 0, err
		}
		return snap.Version, nil
	}
	target, err := e.tableLocation(ctx, recipient, share, schema, table)
	if err != nil {
		return 0, err
	}
	store, err := e.Stores.Open(ctx, recipient, target)
	if err != nil {
		return 0, err
	}
	return e.Logs.VersionSince(ctx, store, *since)
}

// TableMetadata writes the metadata and protocol ndjson lines, in that
// order, and returns the snapshot version.
func (e *Engine) TableMetadata(
	ctx context.Context,
	recipient *types.Recipient,
	share, schema, table string,
	w io.Writer,
) (int64, error) {
	snap, _, err := e.snapshot(ctx, recipient, share, schema, table, -1)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(metadataLine(snap)); err != nil {
		return 0, err
	}
	if err := enc.Encode(protocolLine(snap)); err != nil {
		return 0, err
	}
	return snap.Version, nil
}

// QueryTable writes the protocol, metadata, and file ndjson lines and
// returns the snapshot version. LimitHint is best-effort: the server
// stops emitting files once the hinted row count is covered, using
// file sizes as a proxy when stats are absent.
func (e *Engine) QueryTable(
	ctx context.Context,
	recipient *types.Recipient,
	share, schema, table string,
	req *QueryRequest,
	w io.Writer,
) (int64, error) {
	version := int64(-1)
	if req != nil && req.Version > 0 {
		version = req.Version
	}
	snap, base, err := e.snapshot(ctx, recipient, share, schema, table, version)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(protocolLine(snap)); err != nil {
		return 0, err
	}
	if err := enc.Encode(metadataLine(snap)); err != nil {
		return 0, err
	}
	var rows int64
	for _, f := range snap.Files() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		act := &fileAction{
			URL:             joinLocation(base, f.Path),
			ID:              fileID(f.Path),
			PartitionValues: f.PartitionValues,
			Size:            f.Size,
			Stats:           f.Stats,
			Timestamp:       f.ModificationTime,
			Version:         snap.Version,
		}
		if act.PartitionValues == nil {
			act.PartitionValues = map[string]string{}
		}
		if err := enc.Encode(&line{File: act}); err != nil {
			return 0, err
		}
		if req != nil && req.LimitHint > 0 {
			rows += numRecords(f.Stats)
			if rows >= req.LimitHint {
				break
			}
		}
	}
	return snap.Version, nil
}

// tableLocation resolves the shared table and validates that its
// storage location can serve Delta reads.
func (e *Engine) tableLocation(
	ctx context.Context, recipient *types.Recipient, share, schema, table string,
) (*location.URL, error) {
	info, err := e.resolveTable(ctx, recipient, share, schema, table)
	if err != nil {
		return nil, err
	}
	if info.DataSourceFormat != api.FormatDelta {
		return nil, types.Codef(types.InvalidArgument,
			"table %q is not a delta table", info.FullName)
	}
	if info.StorageLocation == "" {
		return nil, types.Codef(types.InvalidArgument,
			"table %q has no storage location", info.FullName)
	}
	return location.Parse(info.StorageLocation)
}

// snapshot resolves the shared table to its storage location and
// replays the log, deduplicating concurrent replays per location.
func (e *Engine) snapshot(
	ctx context.Context,
	recipient *types.Recipient,
	share, schema, table string,
	version int64,
) (*deltalog.Snapshot, *location.URL, error) {
	target, err := e.tableLocation(ctx, recipient, share, schema, table)
	if err != nil {
		return nil, nil, err
	}

	key := target.String() + "@" + versionKey(version)
	if snap := e.peek(key); snap != nil {
		return snap, target, nil
	}
	ret, err, _ := e.flight.Do(key, func() (any, error) {
		if snap := e.peek(key); snap != nil {
			return snap, nil
		}
		// Bound the replay so a stalled object store cannot pin the
		// in-flight slot.
		ctx, cancel := context.WithTimeout(ctx, replayTimeout)
		defer cancel()
		store, err := e.Stores.Open(ctx, recipient, target)
		if err != nil {
			return nil, err
		}
		snap, err := e.Logs.Open(ctx, store, version)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.mu.snapshots[key] = &cachedSnapshot{snap: snap, fetched: time.Now()}
		e.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ret.(*deltalog.Snapshot), target, nil
}

func (e *Engine) peek(key string) *deltalog.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	cached, ok := e.mu.snapshots[key]
	if !ok {
		return nil
	}
	if time.Since(cached.fetched) > snapshotTTL {
		delete(e.mu.snapshots, key)
		return nil
	}
	return cached.snap
}

// resolveTable maps (share, schema, table) through the shared_as
// aliases onto the internal table record. Access follows from the
// share grant, so the table is checked for Use rather than Read.
func (e *Engine) resolveTable(
	ctx context.Context, recipient *types.Recipient, share, schema, table string,
) (*api.TableInfo, error) {
	info, err := e.loadShare(ctx, recipient, share)
	if err != nil {
		return nil, err
	}
	for _, d := range info.DataObjects {
		s, t := splitSharedAs(&d)
		if s != schema || t != table {
			continue
		}
		ident := resid.LabelTable.Ident(resid.NameRef(resid.ParseName(d.Name)))
		if err := policy.CheckRequired(ctx, e.Policy, recipient,
			policy.Secured(ident, policy.Use)); err != nil {
			return nil, err
		}
		obj, err := e.Catalog.Store.Get(ctx, ident)
		if err != nil {
			return nil, err
		}
		return api.TableOf(obj)
	}
	return nil, types.Codef(types.NotFound,
		"share %q has no table %s.%s", share, schema, table)
}

// loadShare fetches the share with its data objects under the
// recipient's Read grant.
func (e *Engine) loadShare(
	ctx context.Context, recipient *types.Recipient, share string,
) (*api.ShareInfo, error) {
	return e.Catalog.GetShare(ctx, recipient, &api.GetShareRequest{
		Name:              share,
		IncludeSharedData: true,
	})
}

// splitSharedAs breaks the exported schema.table alias apart, falling
// back to the tail of the internal name for records written before
// aliases were mandatory.
func splitSharedAs(d *api.DataObject) (schema, table string) {
	alias := d.SharedAs
	if alias == "" {
		name := resid.ParseName(d.Name)
		if name.Len() >= 2 {
			return name.Segment(name.Len() - 2), name.Segment(name.Len() - 1)
		}
		return "", name.String()
	}
	if i := strings.LastIndex(alias, "."); i >= 0 {
		return alias[:i], alias[i+1:]
	}
	return "", alias
}

func protocolLine(snap *deltalog.Snapshot) *line {
	return &line{Protocol: &protocolAction{
		MinReaderVersion: snap.Protocol.MinReaderVersion,
	}}
}

func metadataLine(snap *deltalog.Snapshot) *line {
	meta := &metadataAction{
		ID:               snap.Metadata.ID,
		Name:             snap.Metadata.Name,
		Description:      snap.Metadata.Description,
		Format:           formatAction{Provider: snap.Metadata.Format.Provider},
		SchemaString:     snap.Metadata.SchemaString,
		PartitionColumns: snap.Metadata.PartitionColumns,
		Configuration:    snap.Metadata.Configuration,
	}
	if meta.Format.Provider == "" {
		meta.Format.Provider = "parquet"
	}
	if meta.PartitionColumns == nil {
		meta.PartitionColumns = []string{}
	}
	return &line{MetaData: meta}
}

// joinLocation resolves a file path relative to the table root.
func joinLocation(base *location.URL, path string) string {
	loc := *base.Location
	loc.Path = strings.TrimSuffix(loc.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return loc.String()
}

// fileID derives a stable opaque id from the file path.
func fileID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:16])
}

// numRecords extracts the row count from a file's stats JSON, falling
// back to one so a limit hint always makes progress.
func numRecords(stats string) int64 {
	if stats == "" {
		return 1
	}
	var parsed struct {
		NumRecords int64 `json:"numRecords"`
	}
	if err := json.Unmarshal([]byte(stats), &parsed); err != nil || parsed.NumRecords <= 0 {
		return 1
	}
	return parsed.NumRecords
}

func versionKey(version int64) string {
	if version < 0 {
		return "latest"
	}
	return "v" + strconv.FormatInt(version, 10)
}
