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

package deltalog

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openlake/catalogd/internal/storage/objstore"
	"github.com/openlake/catalogd/internal/types"
	"github.com/stretchr/testify/require"
)

// putCommit writes one ndjson commit file into the store.
func putCommit(store *objstore.Memory, version int64, lines ...string) {
	store.Put(
		fmt.Sprintf("_delta_log/%020d.json", version),
		[]byte(strings.Join(lines, "\n")+"\n"))
}

func seedTable(store *objstore.Memory) {
	putCommit(store, 0,
		`{"protocol":{"minReaderVersion":1,"minWriterVersion":2}}`,
		`{"metaData":{"id":"tbl-1","format":{"provider":"parquet"},`+
			`"schemaString":"{}","partitionColumns":["region"]}}`,
		`{"add":{"path":"part-a.parquet","partitionValues":{"region":"us"},"size":100,`+
			`"stats":"{\"numRecords\":10}"}}`,
		`{"add":{"path":"part-b.parquet","partitionValues":{"region":"eu"},"size":200}}`,
	)
	putCommit(store, 1,
		`{"remove":{"path":"part-a.parquet"}}`,
		`{"add":{"path":"part-c.parquet","partitionValues":{"region":"us"},"size":300}}`,
	)
	// Sidecar files share the directory and must be ignored.
	store.Put("_delta_log/_last_checkpoint", []byte(`{"version":1}`))
	store.Put("_delta_log/00000000000000000001.crc", []byte("junk"))
}

func TestOpenLatest(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	store := objstore.NewMemory()
	seedTable(store)
	opener := NewOpener()

	version, err := opener.LatestVersion(ctx, store)
	r.NoError(err)
	r.Equal(int64(1), version)

	snap, err := opener.Open(ctx, store, -1)
	r.NoError(err)
	r.Equal(int64(1), snap.Version)
	r.Equal(int32(1), snap.Protocol.MinReaderVersion)
	r.Equal("tbl-1", snap.Metadata.ID)
	r.Equal([]string{"region"}, snap.Metadata.PartitionColumns)

	// part-a was removed in commit 1; later adds follow survivors.
	files := snap.Files()
	r.Len(files, 2)
	r.Equal("part-b.parquet", files[0].Path)
	r.Equal("part-c.parquet", files[1].Path)
	r.Equal(int64(200), files[0].Size)
	r.Equal("eu", files[0].PartitionValues["region"])
}

func TestOpenAtVersion(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	store := objstore.NewMemory()
	seedTable(store)
	opener := NewOpener()

	snap, err := opener.Open(ctx, store, 0)
	r.NoError(err)
	r.Equal(int64(0), snap.Version)
	files := snap.Files()
	r.Len(files, 2)
	r.Equal("part-a.parquet", files[0].Path)
	r.Equal("part-b.parquet", files[1].Path)

	_, err = opener.Open(ctx, store, 7)
	r.True(types.IsNotFound(err))
}

func TestReAddReplaces(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	store := objstore.NewMemory()
	putCommit(store, 0,
		`{"protocol":{"minReaderVersion":1,"minWriterVersion":2}}`,
		`{"metaData":{"id":"tbl-2","format":{"provider":"parquet"},`+
			`"schemaString":"{}","partitionColumns":[]}}`,
		`{"add":{"path":"part-a.parquet","partitionValues":{},"size":100}}`,
	)
	// Re-adding an existing path updates it in place.
	putCommit(store, 1,
		`{"add":{"path":"part-a.parquet","partitionValues":{},"size":150}}`,
	)

	snap, err := NewOpener().Open(ctx, store, -1)
	r.NoError(err)
	files := snap.Files()
	r.Len(files, 1)
	r.Equal(int64(150), files[0].Size)
}

func TestVersionSince(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	store := objstore.NewMemory()
	seedTable(store)
	opener := NewOpener()

	version, err := opener.VersionSince(ctx, store, time.Now().Add(-time.Hour))
	r.NoError(err)
	r.Equal(int64(0), version)

	_, err = opener.VersionSince(ctx, store, time.Now().Add(time.Hour))
	r.True(types.IsNotFound(err))
}

func TestNoLog(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	store := objstore.NewMemory()
	opener := NewOpener()
	_, err := opener.Open(ctx, store, -1)
	r.True(types.IsNotFound(err))
	_, err = opener.LatestVersion(ctx, store)
	r.True(types.IsNotFound(err))
}

func TestCorruptCommit(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	store := objstore.NewMemory()
	putCommit(store, 0, `{not json`)
	_, err := NewOpener().Open(ctx, store, -1)
	r.Error(err)
	r.Equal(types.Internal, types.CodeOf(err))
	r.Contains(err.Error(), "corrupt commit")
}
