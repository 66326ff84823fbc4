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

package sharing

// This file holds the recipient-facing wire types of the sharing
// protocol. They are deliberately separate from the management API
// models: recipients see exported names, never internal ones.

// A Share as a recipient sees it.
type Share struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// A SharedSchema groups the tables of a share.
type SharedSchema struct {
	Name  string `json:"name"`
	Share string `json:"share"`
}

// A SharedTable is one table exported through a share.
type SharedTable struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Schema      string `json:"schema"`
	Share       string `json:"share"`
	ShareID     string `json:"shareId,omitempty"`
	SharedAs    string `json:"shareAs,omitempty"`
	Description string `json:"description,omitempty"`
}

// ListSharesResponse is one page of shares.
type ListSharesResponse struct {
	Items         []Share `json:"items"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// GetShareResponse wraps a single share.
type GetShareResponse struct {
	Share Share `json:"share"`
}

// ListSchemasResponse is one page of schemas.
type ListSchemasResponse struct {
	Items         []SharedSchema `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

// ListTablesResponse is one page of tables.
type ListTablesResponse struct {
	Items         []SharedTable `json:"items"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// QueryRequest narrows a table query. A negative Version selects the
// latest snapshot; LimitHint of zero means unbounded.
type QueryRequest struct {
	Version        int64    `json:"version,omitempty"`
	LimitHint      int64    `json:"limitHint,omitempty"`
	PredicateHints []string `json:"predicateHints,omitempty"`
}

// protocolAction is the first ndjson line of every metadata or query
// response.
type protocolAction struct {
	MinReaderVersion int32 `json:"minReaderVersion"`
}

// metadataAction is the second ndjson line.
type metadataAction struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Format           formatAction      `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration,omitempty"`
}

type formatAction struct {
	Provider string `json:"provider"`
}

// fileAction is one data file line of a query response.
type fileAction struct {
	URL             string            `json:"url"`
	ID              string            `json:"id"`
	PartitionValues map[string]string `json:"partitionValues"`
	Size            int64             `json:"size"`
	Stats           string            `json:"stats,omitempty"`
	Timestamp       int64             `json:"timestamp,omitempty"`
	Version         int64             `json:"version,omitempty"`
}

// line wraps one action for ndjson framing.
type line struct {
	Protocol *protocolAction `json:"protocol,omitempty"`
	MetaData *metadataAction `json:"metaData,omitempty"`
	File     *fileAction     `json:"file,omitempty"`
}
