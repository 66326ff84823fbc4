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

// Package creds vends short-lived storage credentials for tables and
// paths by resolving storage URLs through external locations.
package creds

import "github.com/openlake/catalogd/internal/api"

// TableOperation is the access mode requested for a table.
type TableOperation string

// The table operations.
const (
	TableRead      TableOperation = "READ"
	TableReadWrite TableOperation = "READ_WRITE"
)

// PathOperation is the access mode requested for a raw path.
type PathOperation string

// The path operations.
const (
	PathRead        PathOperation = "PATH_READ"
	PathReadWrite   PathOperation = "PATH_READ_WRITE"
	PathCreateTable PathOperation = "PATH_CREATE_TABLE"
)

// AzureAadToken is a bearer token scoped to Azure storage.
type AzureAadToken struct {
	AadToken string `json:"aad_token"`
}

// A TemporaryCredential is the vending response. Exactly one of the
// credential fields is populated, matching the store that owns the
// resolved URL.
type TemporaryCredential struct {
	URL                string                       `json:"url"`
	ExpirationTime     int64                        `json:"expiration_time"`
	AwsTempCredentials *api.AwsTemporaryCredentials `json:"aws_temp_credentials,omitempty"`
	AzureAad           *AzureAadToken               `json:"azure_aad,omitempty"`
	AzureStorageKey    *api.AzureStorageKey         `json:"azure_storage_key,omitempty"`
	GcpOauthToken      *api.GcpOauthToken           `json:"gcp_oauth_token,omitempty"`
}

// TableCredentialRequest asks for credentials on a table, addressed by
// id or by dotted full name. DryRun validates resolution without
// materializing a token.
type TableCredentialRequest struct {
	TableID   string         `json:"table_id"`
	Operation TableOperation `json:"operation"`
	DryRun    bool           `json:"dry_run,omitempty"`
}

// PathCredentialRequest asks for credentials on a raw storage URL.
type PathCredentialRequest struct {
	URL       string        `json:"url"`
	Operation PathOperation `json:"operation"`
	DryRun    bool          `json:"dry_run,omitempty"`
}
