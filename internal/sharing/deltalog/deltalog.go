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

// Package deltalog replays Delta Lake transaction logs into table
// snapshots. Only the JSON commit files are read; checkpoint parquet
// support belongs to a heavier kernel that can be swapped in through
// the Opener interface.
package deltalog

import (
	"context"
	"encoding/json"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/openlake/catalogd/internal/storage/objstore"
	"github.com/openlake/catalogd/internal/types"
	"github.com/pkg/errors"
)

// logDir holds the commit files below the table root.
const logDir = "_delta_log"

// Protocol is the reader/writer contract of a table.
type Protocol struct {
	MinReaderVersion int32 `json:"minReaderVersion"`
	MinWriterVersion int32 `json:"minWriterVersion"`
}

// Format describes how table data is encoded.
type Format struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options,omitempty"`
}

// Metadata is the table-wide metadata action.
type Metadata struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Format           Format            `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration,omitempty"`
	CreatedTime      int64             `json:"createdTime,omitempty"`
}

// File is one live data file of a snapshot.
type File struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime,omitempty"`
	DataChange       bool              `json:"dataChange,omitempty"`
	Stats            string            `json:"stats,omitempty"`
}

// action is the union shape of one log line.
type action struct {
	Protocol *Protocol `json:"protocol,omitempty"`
	MetaData *Metadata `json:"metaData,omitempty"`
	Add      *File     `json:"add,omitempty"`
	Remove   *struct {
		Path string `json:"path"`
	} `json:"remove,omitempty"`
}

// A Snapshot is the state of a table at one version.
type Snapshot struct {
	Version  int64
	Protocol Protocol
	Metadata Metadata
	files    []File
}

// Files returns the live data files in commit order.
func (s *Snapshot) Files() []File { return s.files }

// An Opener materializes table snapshots. The default implementation
// replays JSON commits; a Delta kernel binding can be substituted.
type Opener interface {
	// Open replays the log up to the requested version, or to the
	// latest version when version is negative.
	Open(ctx context.Context, store objstore.Store, version int64) (*Snapshot, error)

	// LatestVersion returns the newest committed version without
	// materializing file state.
	LatestVersion(ctx context.Context, store objstore.Store) (int64, error)

	// VersionSince returns the earliest version committed at or
	// after the given time, judged by the commit file timestamps.
	VersionSince(ctx context.Context, store objstore.Store, ts time.Time) (int64, error)
}

type jsonOpener struct{}

// NewOpener returns the JSON commit replayer.
func NewOpener() Opener { return &jsonOpener{} }

// LatestVersion implements [Opener].
func (o *jsonOpener) LatestVersion(
	ctx context.Context, store objstore.Store,
) (int64, error) {
	commits, err := listCommits(ctx, store)
	if err != nil {
		return 0, err
	}
	return commits[len(commits)-1].version, nil
}

// VersionSince implements [Opener].
func (o *jsonOpener) VersionSince(
	ctx context.Context, store objstore.Store, ts time.Time,
) (int64, error) {
	commits, err := listCommits(ctx, store)
	if err != nil {
		return 0, err
	}
	for _, c := range commits {
		if !c.modified.Before(ts) {
			return c.version, nil
		}
	}
	return 0, types.Codef(types.NotFound,
		"no table version committed at or after %s", ts.Format(time.RFC3339))
}

// Open implements [Opener].
func (o *jsonOpener) Open(
	ctx context.Context, store objstore.Store, version int64,
) (*Snapshot, error) {
	commits, err := listCommits(ctx, store)
	if err != nil {
		return nil, err
	}
	if version >= 0 {
		if commits[len(commits)-1].version < version {
			return nil, types.Codef(types.NotFound,
				"table version %d does not exist", version)
		}
	} else {
		version = commits[len(commits)-1].version
	}

	snap := &Snapshot{Version: version}
	// Preserve commit order while allowing later removes to cancel
	// earlier adds.
	live := make(map[string]int)
	for _, c := range commits {
		if c.version > version {
			break
		}
		data, err := store.Get(ctx, c.path)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var act action
			if err := json.Unmarshal([]byte(line), &act); err != nil {
				return nil, types.Coded(types.Internal,
					errors.Wrapf(err, "corrupt commit %s", c.path))
			}
			switch {
			case act.Protocol != nil:
				snap.Protocol = *act.Protocol
			case act.MetaData != nil:
				snap.Metadata = *act.MetaData
			case act.Add != nil:
				if i, ok := live[act.Add.Path]; ok {
					snap.files[i] = *act.Add
					continue
				}
				live[act.Add.Path] = len(snap.files)
				snap.files = append(snap.files, *act.Add)
			case act.Remove != nil:
				i, ok := live[act.Remove.Path]
				if !ok {
					continue
				}
				snap.files = append(snap.files[:i], snap.files[i+1:]...)
				delete(live, act.Remove.Path)
				for j := i; j < len(snap.files); j++ {
					live[snap.files[j].Path] = j
				}
			}
		}
	}
	return snap, nil
}

type commit struct {
	version  int64
	path     string
	modified time.Time
}

// listCommits returns the JSON commits in version order, failing with
// NotFound for locations that hold no Delta log.
func listCommits(ctx context.Context, store objstore.Store) ([]commit, error) {
	objs, err := store.List(ctx, logDir+"/")
	if err != nil {
		return nil, err
	}
	commits := make([]commit, 0, len(objs))
	for _, obj := range objs {
		base := path.Base(obj.Path)
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(base, ".json"), 10, 64)
		if err != nil {
			// Sidecar files share the directory; skip them.
			continue
		}
		commits = append(commits, commit{
			version:  v,
			path:     obj.Path,
			modified: obj.LastModified,
		})
	}
	if len(commits) == 0 {
		return nil, types.Codef(types.NotFound, "no delta log found")
	}
	return commits, nil
}
