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

package api

// This file holds the wire representations of the catalog resources.
// Timestamps are epoch milliseconds; identifiers are server-managed
// and ignored on input.

// CatalogInfo is the wire form of a catalog. A catalog with sharing
// attributes (provider_name, share_name) mirrors a remote share.
type CatalogInfo struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name"`
	Comment      string            `json:"comment,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
	StorageRoot  string            `json:"storage_root,omitempty"`
	ProviderName string            `json:"provider_name,omitempty"`
	ShareName    string            `json:"share_name,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	BrowseOnly   bool              `json:"browse_only,omitempty"`
	CreatedAt    int64             `json:"created_at,omitempty"`
	UpdatedAt    int64             `json:"updated_at,omitempty"`
	CreatedBy    string            `json:"created_by,omitempty"`
	UpdatedBy    string            `json:"updated_by,omitempty"`
}

// SchemaInfo is the wire form of a schema.
type SchemaInfo struct {
	SchemaID    string            `json:"schema_id,omitempty"`
	Name        string            `json:"name"`
	CatalogName string            `json:"catalog_name"`
	FullName    string            `json:"full_name,omitempty"`
	Comment     string            `json:"comment,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	CreatedAt   int64             `json:"created_at,omitempty"`
	UpdatedAt   int64             `json:"updated_at,omitempty"`
}

// TableType distinguishes managed tables from external ones.
type TableType string

// The table types.
const (
	TableTypeManaged  TableType = "MANAGED"
	TableTypeExternal TableType = "EXTERNAL"
)

// DataSourceFormat names the on-disk layout of a table.
type DataSourceFormat string

// The formats the service recognizes. Only Delta participates in
// sharing queries.
const (
	FormatDelta   DataSourceFormat = "DELTA"
	FormatParquet DataSourceFormat = "PARQUET"
	FormatCSV     DataSourceFormat = "CSV"
	FormatJSON    DataSourceFormat = "JSON"
)

// ColumnInfo describes one table column.
type ColumnInfo struct {
	Name           string `json:"name"`
	TypeText       string `json:"type_text,omitempty"`
	TypeName       string `json:"type_name,omitempty"`
	Position       int32  `json:"position"`
	Nullable       bool   `json:"nullable,omitempty"`
	PartitionIndex *int32 `json:"partition_index,omitempty"`
	Comment        string `json:"comment,omitempty"`
}

// TableInfo is the wire form of a table.
type TableInfo struct {
	TableID          string            `json:"table_id,omitempty"`
	Name             string            `json:"name"`
	CatalogName      string            `json:"catalog_name"`
	SchemaName       string            `json:"schema_name"`
	FullName         string            `json:"full_name,omitempty"`
	TableType        TableType         `json:"table_type"`
	DataSourceFormat DataSourceFormat  `json:"data_source_format"`
	Columns          []ColumnInfo      `json:"columns,omitempty"`
	StorageLocation  string            `json:"storage_location,omitempty"`
	Comment          string            `json:"comment,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	Owner            string            `json:"owner,omitempty"`
	CreatedAt        int64             `json:"created_at,omitempty"`
	UpdatedAt        int64             `json:"updated_at,omitempty"`
}

// VolumeType distinguishes managed volumes from external ones.
type VolumeType string

// The volume types.
const (
	VolumeTypeManaged  VolumeType = "MANAGED"
	VolumeTypeExternal VolumeType = "EXTERNAL"
)

// VolumeInfo is the wire form of a volume.
type VolumeInfo struct {
	VolumeID        string     `json:"volume_id,omitempty"`
	Name            string     `json:"name"`
	CatalogName     string     `json:"catalog_name"`
	SchemaName      string     `json:"schema_name"`
	FullName        string     `json:"full_name,omitempty"`
	VolumeType      VolumeType `json:"volume_type"`
	StorageLocation string     `json:"storage_location,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	Owner           string     `json:"owner,omitempty"`
	CreatedAt       int64      `json:"created_at,omitempty"`
	UpdatedAt       int64      `json:"updated_at,omitempty"`
}

// CredentialPurpose scopes what a credential may be used for.
type CredentialPurpose string

// The purposes.
const (
	PurposeStorage CredentialPurpose = "STORAGE"
	PurposeService CredentialPurpose = "SERVICE"
)

// AzureServicePrincipal authenticates via AAD. Exactly one of
// ClientSecret or FederatedTokenFile must be set.
type AzureServicePrincipal struct {
	DirectoryID        string `json:"directory_id"`
	ApplicationID      string `json:"application_id"`
	ClientSecret       string `json:"client_secret,omitempty"`
	FederatedTokenFile string `json:"federated_token_file,omitempty"`
}

// AzureManagedIdentity authenticates via a managed identity named by
// exactly one of its fields; all empty selects the system identity.
type AzureManagedIdentity struct {
	ApplicationID string `json:"application_id,omitempty"`
	ObjectID      string `json:"object_id,omitempty"`
	MsiResourceID string `json:"msi_resource_id,omitempty"`
}

// AzureStorageKey is a shared account key.
type AzureStorageKey struct {
	AccountName string `json:"account_name"`
	AccountKey  string `json:"account_key"`
}

// AwsTemporaryCredentials is the AWS (and R2) credential shape.
type AwsTemporaryCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
	Region          string `json:"region,omitempty"`
}

// GcpOauthToken is a bearer token for Google Cloud Storage.
type GcpOauthToken struct {
	OauthToken string `json:"oauth_token"`
}

// CredentialEnvelope holds at most one concrete credential variant.
// The sensitive payload lives in the secret store; it only appears on
// the wire when a caller with Read permission fetches the credential.
type CredentialEnvelope struct {
	AzureServicePrincipal *AzureServicePrincipal   `json:"azure_service_principal,omitempty"`
	AzureManagedIdentity  *AzureManagedIdentity    `json:"azure_managed_identity,omitempty"`
	AzureStorageKey       *AzureStorageKey         `json:"azure_storage_key,omitempty"`
	AwsTempCredentials    *AwsTemporaryCredentials `json:"aws_temp_credentials,omitempty"`
	GcpOauthToken         *GcpOauthToken           `json:"gcp_oauth_token,omitempty"`
}

// Empty reports whether no variant is set.
func (e *CredentialEnvelope) Empty() bool {
	return e == nil || (e.AzureServicePrincipal == nil && e.AzureManagedIdentity == nil &&
		e.AzureStorageKey == nil && e.AwsTempCredentials == nil && e.GcpOauthToken == nil)
}

// CredentialInfo is the wire form of a credential. The embedded
// envelope is only populated on reads that load the secret.
type CredentialInfo struct {
	CredentialEnvelope
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	FullName  string            `json:"full_name,omitempty"`
	Purpose   CredentialPurpose `json:"purpose"`
	ReadOnly  bool              `json:"read_only"`
	Comment   string            `json:"comment,omitempty"`
	Owner     string            `json:"owner,omitempty"`
	CreatedAt int64             `json:"created_at,omitempty"`
	UpdatedAt int64             `json:"updated_at,omitempty"`
}

// ExternalLocationInfo is the wire form of an external location.
type ExternalLocationInfo struct {
	ExternalLocationID string `json:"external_location_id,omitempty"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	CredentialName     string `json:"credential_name"`
	ReadOnly           bool   `json:"read_only"`
	Comment            string `json:"comment,omitempty"`
	Owner              string `json:"owner,omitempty"`
	BrowseOnly         bool   `json:"browse_only,omitempty"`
	CreatedAt          int64  `json:"created_at,omitempty"`
	UpdatedAt          int64  `json:"updated_at,omitempty"`
}

// DataObjectType names what a data object exports.
type DataObjectType string

// The data object types.
const (
	DataObjectTable DataObjectType = "TABLE"
)

// A DataObject is one entry of a share. Name is the internal
// fully-qualified table name; SharedAs is the exported schema.table
// alias recipients see.
type DataObject struct {
	Name                     string         `json:"name"`
	DataObjectType           DataObjectType `json:"data_object_type,omitempty"`
	SharedAs                 string         `json:"shared_as,omitempty"`
	AddedAt                  int64          `json:"added_at,omitempty"`
	AddedBy                  string         `json:"added_by,omitempty"`
	Partitions               []string       `json:"partitions,omitempty"`
	EnableCDF                bool           `json:"enable_cdf,omitempty"`
	HistoryDataSharingStatus string         `json:"history_data_sharing_status,omitempty"`
	StartVersion             int64          `json:"start_version,omitempty"`
}

// ShareInfo is the wire form of a share.
type ShareInfo struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	Comment     string       `json:"comment,omitempty"`
	Owner       string       `json:"owner,omitempty"`
	DataObjects []DataObject `json:"data_objects,omitempty"`
	CreatedAt   int64        `json:"created_at,omitempty"`
	UpdatedAt   int64        `json:"updated_at,omitempty"`
}

// AuthenticationType selects how a recipient proves its identity.
type AuthenticationType string

// The authentication types.
const (
	AuthToken                  AuthenticationType = "TOKEN"
	AuthOAuthClientCredentials AuthenticationType = "OAUTH_CLIENT_CREDENTIALS"
)

// TokenInfo is one bearer token minted for a recipient.
type TokenInfo struct {
	ID             string `json:"id,omitempty"`
	CreatedAt      int64  `json:"created_at,omitempty"`
	ExpirationTime int64  `json:"expiration_time,omitempty"`
	TokenValue     string `json:"token_value,omitempty"`
}

// RecipientInfo is the wire form of a recipient.
type RecipientInfo struct {
	ID                 string             `json:"id,omitempty"`
	Name               string             `json:"name"`
	AuthenticationType AuthenticationType `json:"authentication_type"`
	Owner              string             `json:"owner,omitempty"`
	Comment            string             `json:"comment,omitempty"`
	Properties         map[string]string  `json:"properties,omitempty"`
	Tokens             []TokenInfo        `json:"tokens,omitempty"`
	ExpirationTime     int64              `json:"expiration_time,omitempty"`
	CreatedAt          int64              `json:"created_at,omitempty"`
	UpdatedAt          int64              `json:"updated_at,omitempty"`
}
