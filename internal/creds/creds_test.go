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

package creds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/secrets"
	"github.com/openlake/catalogd/internal/store/mem"
	"github.com/openlake/catalogd/internal/types"
	"github.com/stretchr/testify/require"
)

func nowMilli() int64 { return time.Now().UnixMilli() }

type fixture struct {
	Catalog   *api.Service
	Resolver  *Resolver
	Recipient *types.Recipient
}

func newFixture(t *testing.T) *fixture {
	catalog := api.New(mem.New(), secrets.NewMemory(), policy.AllowAll())
	return &fixture{
		Catalog:   catalog,
		Resolver:  NewResolver(catalog, policy.AllowAll()),
		Recipient: &types.Recipient{Name: "tester"},
	}
}

// grant registers a credential and an external location covering url.
func (f *fixture) grant(t *testing.T, name, url, accessKey string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.Catalog.CreateCredential(ctx, f.Recipient, &api.CreateCredentialRequest{
		Name:    name,
		Purpose: api.PurposeStorage,
		CredentialEnvelope: api.CredentialEnvelope{
			AwsTempCredentials: &api.AwsTemporaryCredentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: "secret-" + accessKey,
				Region:          "us-east-1",
			},
		},
	})
	require.NoError(t, err)
	_, err = f.Catalog.CreateExternalLocation(ctx, f.Recipient,
		&api.CreateExternalLocationRequest{
			Name:           name,
			URL:            url,
			CredentialName: name,
		})
	require.NoError(t, err)
}

// grantEnvelope registers an arbitrary credential envelope and an
// external location covering url.
func (f *fixture) grantEnvelope(t *testing.T, name, url string, env api.CredentialEnvelope) {
	t.Helper()
	ctx := context.Background()
	_, err := f.Catalog.CreateCredential(ctx, f.Recipient, &api.CreateCredentialRequest{
		Name:               name,
		Purpose:            api.PurposeStorage,
		CredentialEnvelope: env,
	})
	require.NoError(t, err)
	_, err = f.Catalog.CreateExternalLocation(ctx, f.Recipient,
		&api.CreateExternalLocationRequest{
			Name:           name,
			URL:            url,
			CredentialName: name,
		})
	require.NoError(t, err)
}

func TestPathCredential(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, "warehouse", "s3://bucket/warehouse", "AKIAWIDE")

	cred, err := f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "s3://bucket/warehouse/sales/orders",
		Operation: PathRead,
	})
	r.NoError(err)
	r.Equal("s3://bucket/warehouse/sales/orders", cred.URL)
	r.NotNil(cred.AwsTempCredentials)
	r.Equal("AKIAWIDE", cred.AwsTempCredentials.AccessKeyID)
	r.Equal("us-east-1", cred.AwsTempCredentials.Region)
	r.NotZero(cred.ExpirationTime)

	_, err = f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "s3://elsewhere/data",
		Operation: PathRead,
	})
	r.True(types.IsNotFound(err))

	_, err = f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "s3://bucket/warehouse",
		Operation: "DELETE_EVERYTHING",
	})
	r.Equal(types.InvalidArgument, types.CodeOf(err))
}

func TestLongestPrefixWins(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, "bucket-wide", "s3://bucket", "AKIAWIDE")
	f.grant(t, "sales-narrow", "s3://bucket/warehouse/sales", "AKIANARROW")

	cred, err := f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "s3://bucket/warehouse/sales/orders",
		Operation: PathRead,
	})
	r.NoError(err)
	r.Equal("AKIANARROW", cred.AwsTempCredentials.AccessKeyID)

	cred, err = f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "s3://bucket/staging",
		Operation: PathRead,
	})
	r.NoError(err)
	r.Equal("AKIAWIDE", cred.AwsTempCredentials.AccessKeyID)
}

func TestDryRun(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, "warehouse", "s3://bucket/warehouse", "AKIAWIDE")

	cred, err := f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "s3://bucket/warehouse/t",
		Operation: PathRead,
		DryRun:    true,
	})
	r.NoError(err)
	// Resolution is validated, but no token materializes.
	r.Nil(cred.AwsTempCredentials)
	r.Zero(cred.ExpirationTime)
}

func TestAzuriteWellKnownKey(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, "emulator", "azurite://container", "AKIAIGNORED")

	cred, err := f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "http://localhost:10000/devstoreaccount1/container/tables/t1",
		Operation: PathRead,
	})
	r.NoError(err)
	r.Nil(cred.AwsTempCredentials)
	r.NotNil(cred.AzureStorageKey)
	r.Equal("devstoreaccount1", cred.AzureStorageKey.AccountName)
	r.NotEmpty(cred.AzureStorageKey.AccountKey)
}

func TestTableCredential(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, "warehouse", "s3://bucket/warehouse", "AKIAWIDE")

	_, err := f.Catalog.CreateCatalog(ctx, f.Recipient, &api.CreateCatalogRequest{Name: "prod"})
	r.NoError(err)
	_, err = f.Catalog.CreateSchema(ctx, f.Recipient, &api.CreateSchemaRequest{
		Name: "sales", CatalogName: "prod",
	})
	r.NoError(err)
	table, err := f.Catalog.CreateTable(ctx, f.Recipient, &api.CreateTableRequest{
		Name: "orders", CatalogName: "prod", SchemaName: "sales",
		TableType: api.TableTypeExternal, DataSourceFormat: api.FormatDelta,
		StorageLocation: "s3://bucket/warehouse/sales/orders",
	})
	r.NoError(err)

	// Tables resolve by dotted name or by id.
	for _, ref := range []string{"prod.sales.orders", table.TableID} {
		cred, err := f.Resolver.TableCredential(ctx, f.Recipient, &TableCredentialRequest{
			TableID:   ref,
			Operation: TableRead,
		})
		r.NoError(err)
		r.Equal("AKIAWIDE", cred.AwsTempCredentials.AccessKeyID)
	}

	_, err = f.Resolver.TableCredential(ctx, f.Recipient, &TableCredentialRequest{
		TableID:   "prod.sales.orders",
		Operation: "SCRIBBLE",
	})
	r.Equal(types.InvalidArgument, types.CodeOf(err))

	// A denying policy blocks vending even when the table is readable
	// through the catalog service.
	denied := NewResolver(f.Catalog, policy.DenyAll())
	_, err = denied.TableCredential(ctx, f.Recipient, &TableCredentialRequest{
		TableID:   "prod.sales.orders",
		Operation: TableRead,
	})
	r.Equal(types.NotAllowed, types.CodeOf(err))
}

func TestCacheReuse(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, "warehouse", "s3://bucket/warehouse", "AKIAONE")

	cache := NewCache(f.Resolver)
	req := &PathCredentialRequest{
		URL:       "s3://bucket/warehouse/t",
		Operation: PathRead,
	}

	first, err := cache.PathCredential(ctx, f.Recipient, req)
	r.NoError(err)
	r.Equal("AKIAONE", first.AwsTempCredentials.AccessKeyID)

	// Rotate the underlying credential; the cached token is still
	// served until it nears expiry.
	_, err = f.Catalog.UpdateCredential(ctx, f.Recipient, &api.UpdateCredentialRequest{
		Name: "warehouse",
		CredentialEnvelope: api.CredentialEnvelope{
			AwsTempCredentials: &api.AwsTemporaryCredentials{
				AccessKeyID: "AKIATWO", SecretAccessKey: "secret2",
			},
		},
	})
	r.NoError(err)

	second, err := cache.PathCredential(ctx, f.Recipient, req)
	r.NoError(err)
	r.Equal("AKIAONE", second.AwsTempCredentials.AccessKeyID)

	// Entries are scoped per recipient: a different caller resolves
	// fresh and sees the rotated key.
	other, err := cache.PathCredential(ctx, &types.Recipient{Name: "other"}, req)
	r.NoError(err)
	r.Equal("AKIATWO", other.AwsTempCredentials.AccessKeyID)

	// Dry runs bypass the cache entirely.
	dry, err := cache.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       req.URL,
		Operation: req.Operation,
		DryRun:    true,
	})
	r.NoError(err)
	r.Nil(dry.AwsTempCredentials)
}

func TestCachePeekEviction(t *testing.T) {
	r := require.New(t)

	cache := NewCache(NewResolver(nil, policy.AllowAll()))
	for i, tc := range []struct {
		expiresIn int64 // milliseconds from now
		usable    bool
	}{
		{int64(10 * 60 * 1000), true},
		{int64(30 * 1000), false}, // inside the slack window
		{-1000, false},
	} {
		key := fmt.Sprintf("path/t/%d", i)
		cache.store(key, &TemporaryCredential{
			URL:            "s3://bucket/t",
			ExpirationTime: nowMilli() + tc.expiresIn,
		})
		if tc.usable {
			r.NotNil(cache.peek(key))
		} else {
			r.Nil(cache.peek(key))
		}
	}

	// Zero expiry is never cached.
	cache.store("path/t/zero", &TemporaryCredential{URL: "s3://bucket/t"})
	r.Nil(cache.peek("path/t/zero"))
}

// Concurrent misses on one key must collapse into a single upstream
// resolution.
func TestCacheConcurrentSingleFetch(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	cache := NewCache(NewResolver(nil, policy.AllowAll()))
	var fetches atomic.Int32
	resolve := func(context.Context) (*TemporaryCredential, error) {
		fetches.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &TemporaryCredential{
			URL:            "s3://bucket/t",
			ExpirationTime: nowMilli() + time.Hour.Milliseconds(),
		}, nil
	}

	const workers = 16
	start := make(chan struct{})
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := cache.load(ctx, "path/tester/s3://bucket/t/PATH_READ", resolve)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)
	for err := range results {
		r.NoError(err)
	}
	r.Equal(int32(1), fetches.Load())
}

func TestAzureServicePrincipalVending(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Stands in for the AAD token endpoint; the token names which
	// grant shape the exchange carried.
	aad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token := "secret-token"
		if assertion := req.PostForm.Get("client_assertion"); assertion != "" {
			if req.PostForm.Get("client_assertion_type") != clientAssertionType {
				http.Error(w, "bad assertion type", http.StatusBadRequest)
				return
			}
			token = "assertion:" + assertion
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, token)
	}))
	defer aad.Close()
	f.Resolver.aadTokenURL = aad.URL + "/%s/token"

	f.grantEnvelope(t, "by-secret", "az://container/secret", api.CredentialEnvelope{
		AzureServicePrincipal: &api.AzureServicePrincipal{
			DirectoryID:   "tenant",
			ApplicationID: "app",
			ClientSecret:  "hunter2",
		},
	})
	cred, err := f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "az://container/secret/t",
		Operation: PathRead,
	})
	r.NoError(err)
	r.NotNil(cred.AzureAad)
	r.Equal("secret-token", cred.AzureAad.AadToken)
	r.NotZero(cred.ExpirationTime)

	tokenFile := filepath.Join(t.TempDir(), "token")
	r.NoError(os.WriteFile(tokenFile, []byte("projected-jwt\n"), 0o600))
	f.grantEnvelope(t, "by-federation", "az://container/federated", api.CredentialEnvelope{
		AzureServicePrincipal: &api.AzureServicePrincipal{
			DirectoryID:        "tenant",
			ApplicationID:      "app",
			FederatedTokenFile: tokenFile,
		},
	})
	cred, err = f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "az://container/federated/t",
		Operation: PathRead,
	})
	r.NoError(err)
	r.Equal("assertion:projected-jwt", cred.AzureAad.AadToken)

	// Neither grant shape set is a client error.
	f.grantEnvelope(t, "by-nothing", "az://container/empty", api.CredentialEnvelope{
		AzureServicePrincipal: &api.AzureServicePrincipal{
			DirectoryID:   "tenant",
			ApplicationID: "app",
		},
	})
	_, err = f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "az://container/empty/t",
		Operation: PathRead,
	})
	r.Equal(types.InvalidArgument, types.CodeOf(err))
}

func TestAzureManagedIdentityVending(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	expiry := time.Now().Add(2 * time.Hour).Unix()
	imds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Metadata") != "true" ||
			req.URL.Query().Get("resource") != azureStorageResource {
			http.Error(w, "bad metadata request", http.StatusBadRequest)
			return
		}
		token := "system-token"
		if id := req.URL.Query().Get("client_id"); id != "" {
			token = "identity:" + id
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"expires_on":"%d"}`, token, expiry)
	}))
	defer imds.Close()
	f.Resolver.imdsURL = imds.URL

	f.grantEnvelope(t, "system", "az://container/system",
		api.CredentialEnvelope{AzureManagedIdentity: &api.AzureManagedIdentity{}})
	cred, err := f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "az://container/system/t",
		Operation: PathRead,
	})
	r.NoError(err)
	r.NotNil(cred.AzureAad)
	r.Equal("system-token", cred.AzureAad.AadToken)
	r.Equal(time.Unix(expiry, 0).UnixMilli(), cred.ExpirationTime)

	f.grantEnvelope(t, "assigned", "az://container/assigned", api.CredentialEnvelope{
		AzureManagedIdentity: &api.AzureManagedIdentity{ApplicationID: "app-1"},
	})
	cred, err = f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "az://container/assigned/t",
		Operation: PathRead,
	})
	r.NoError(err)
	r.Equal("identity:app-1", cred.AzureAad.AadToken)

	// Two identity selectors are ambiguous.
	f.grantEnvelope(t, "ambiguous", "az://container/ambiguous", api.CredentialEnvelope{
		AzureManagedIdentity: &api.AzureManagedIdentity{
			ApplicationID: "app-1",
			ObjectID:      "obj-1",
		},
	})
	_, err = f.Resolver.PathCredential(ctx, f.Recipient, &PathCredentialRequest{
		URL:       "az://container/ambiguous/t",
		Operation: PathRead,
	})
	r.Equal(types.InvalidArgument, types.CodeOf(err))
}
