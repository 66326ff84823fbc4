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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/auth"
	"github.com/openlake/catalogd/internal/creds"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/secrets"
	"github.com/openlake/catalogd/internal/sharing"
	"github.com/openlake/catalogd/internal/sharing/deltalog"
	"github.com/openlake/catalogd/internal/storage/objstore"
	"github.com/openlake/catalogd/internal/store/mem"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/stopper"
)

// fixture is a complete server running on a loopback port, seeded with
// one shared delta table and a token-bearing recipient.
type fixture struct {
	Base    string // http://127.0.0.1:NNNNN
	Catalog *api.Service
	Token   string // plain recipient token
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := require.New(t)
	ctx := stopper.WithContext(context.Background())
	t.Cleanup(func() {
		ctx.Stop(time.Second)
		_ = ctx.Wait()
	})

	store := mem.New()
	catalog := api.New(store, secrets.NewMemory(), policy.AllowAll())
	pol := policy.AllowAll()
	vendor := creds.NewCache(creds.NewResolver(catalog, pol))
	factory := sharing.NewFactory(vendor)
	engine := sharing.NewEngine(catalog, deltalog.NewOpener(), pol, factory)

	admin := &types.Recipient{Name: "admin"}
	seed := context.Background()

	_, err := catalog.CreateCatalog(seed, admin, &api.CreateCatalogRequest{Name: "prod"})
	r.NoError(err)
	_, err = catalog.CreateSchema(seed, admin, &api.CreateSchemaRequest{
		Name: "sales", CatalogName: "prod",
	})
	r.NoError(err)
	_, err = catalog.CreateTable(seed, admin, &api.CreateTableRequest{
		Name: "orders", CatalogName: "prod", SchemaName: "sales",
		TableType: api.TableTypeExternal, DataSourceFormat: api.FormatDelta,
		StorageLocation: "memory://unit/tables/orders",
	})
	r.NoError(err)
	_, err = catalog.CreateShare(seed, admin, &api.CreateShareRequest{Name: "partner"})
	r.NoError(err)
	_, err = catalog.UpdateShare(seed, admin, &api.UpdateShareRequest{
		Name: "partner",
		Updates: []api.DataObjectUpdate{
			{Action: api.ActionAdd, DataObject: api.DataObject{Name: "prod.sales.orders"}},
		},
	})
	r.NoError(err)

	logs := objstore.NewMemory()
	logs.Put(fmt.Sprintf("tables/orders/_delta_log/%020d.json", 0), []byte(
		`{"protocol":{"minReaderVersion":1,"minWriterVersion":2}}`+"\n"+
			`{"metaData":{"id":"orders-1","format":{"provider":"parquet"},`+
			`"schemaString":"{}","partitionColumns":[]}}`+"\n"+
			`{"add":{"path":"part-a.parquet","partitionValues":{},"size":100}}`+"\n"))
	factory.Register("memory://unit/", logs)

	created, err := catalog.CreateRecipient(seed, admin, &api.CreateRecipientRequest{
		Name:               "partner-recipient",
		AuthenticationType: api.AuthToken,
	})
	r.NoError(err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	r.NoError(err)
	ctx.Go(func() error {
		<-ctx.Stopping()
		_ = listener.Close()
		return nil
	})

	authn := auth.FirstOf(auth.RecipientTokens(store), auth.Reject())
	New(ctx, authn, catalog, vendor, engine, listener, nil, nil)

	return &fixture{
		Base:    fmt.Sprintf("http://%s", listener.Addr()),
		Catalog: catalog,
		Token:   created.Tokens[0].TokenValue,
	}
}

// call performs an authenticated request and decodes the JSON response
// into out when it is non-nil.
func (f *fixture) call(
	t *testing.T, method, path string, body, out any,
) *http.Response {
	t.Helper()
	r := require.New(t)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		r.NoError(err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, f.Base+path, reader)
	r.NoError(err)
	req.Header.Set("Authorization", "Bearer "+f.Token)

	resp, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	r.NoError(err)
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if out != nil && resp.StatusCode == http.StatusOK {
		r.NoError(json.Unmarshal(data, out))
	}
	return resp
}

func TestUnauthenticated(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	// No credentials at all.
	resp, err := http.Get(f.Base + "/api/2.1/unity-catalog/catalogs")
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusUnauthorized, resp.StatusCode)
	var body errorBody
	r.NoError(json.NewDecoder(resp.Body).Decode(&body))
	r.Equal(types.Unauthenticated.String(), body.ErrorCode)
	r.Contains(body.Message, "invalid credentials")

	// A garbage token is rejected before any routing decision.
	req, err := http.NewRequest(http.MethodGet, f.Base+"/no/such/route", nil)
	r.NoError(err)
	req.Header.Set("Authorization", "Bearer dss_bogus")
	resp2, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer resp2.Body.Close()
	r.Equal(http.StatusUnauthorized, resp2.StatusCode)
}

func TestOperationalEndpointsOpen(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	resp, err := http.Get(f.Base + "/_/healthz")
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.Base + "/_/varz")
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusOK, resp.StatusCode)
	buf, err := io.ReadAll(resp.Body)
	r.NoError(err)
	r.Contains(string(buf), "http_response_codes_total")
}

func TestCatalogCRUDOverHTTP(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	const prefix = "/api/2.1/unity-catalog"

	var created api.CatalogInfo
	resp := f.call(t, http.MethodPost, prefix+"/catalogs",
		&api.CreateCatalogRequest{Name: "staging", Comment: "temp"}, &created)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("application/json", resp.Header.Get("Content-Type"))
	r.Equal("staging", created.Name)
	r.NotEmpty(created.ID)

	var fetched api.CatalogInfo
	resp = f.call(t, http.MethodGet, prefix+"/catalogs/staging", nil, &fetched)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal(created.ID, fetched.ID)
	r.Equal("temp", fetched.Comment)

	var listed api.ListCatalogsResponse
	resp = f.call(t, http.MethodGet, prefix+"/catalogs", nil, &listed)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Len(listed.Catalogs, 2) // prod plus staging

	var renamed api.CatalogInfo
	resp = f.call(t, http.MethodPatch, prefix+"/catalogs/staging",
		map[string]string{"new_name": "scratch"}, &renamed)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("scratch", renamed.Name)

	resp = f.call(t, http.MethodDelete, prefix+"/catalogs/scratch", nil, nil)
	r.Equal(http.StatusNoContent, resp.StatusCode)

	resp = f.call(t, http.MethodGet, prefix+"/catalogs/scratch", nil, nil)
	r.Equal(http.StatusNotFound, resp.StatusCode)
	var body errorBody
	r.NoError(json.NewDecoder(resp.Body).Decode(&body))
	r.Equal("404 Not Found", body.ErrorCode)
}

func TestErrorMapping(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	const prefix = "/api/2.1/unity-catalog"

	// Duplicate create.
	resp := f.call(t, http.MethodPost, prefix+"/catalogs",
		&api.CreateCatalogRequest{Name: "prod"}, nil)
	r.Equal(http.StatusConflict, resp.StatusCode)

	// Malformed body.
	req, err := http.NewRequest(http.MethodPost, f.Base+prefix+"/catalogs",
		strings.NewReader("{not json"))
	r.NoError(err)
	req.Header.Set("Authorization", "Bearer "+f.Token)
	raw, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer raw.Body.Close()
	r.Equal(http.StatusBadRequest, raw.StatusCode)
	var body errorBody
	r.NoError(json.NewDecoder(raw.Body).Decode(&body))
	r.Contains(body.Message, "invalid request body")

	// Share permission management is not implemented.
	resp = f.call(t, http.MethodGet, prefix+"/shares/partner/permissions", nil, nil)
	r.Equal(http.StatusNotImplemented, resp.StatusCode)
}

func TestDeleteRequiresForce(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	const prefix = "/api/2.1/unity-catalog"

	resp := f.call(t, http.MethodDelete, prefix+"/catalogs/prod", nil, nil)
	r.Equal(http.StatusBadRequest, resp.StatusCode)
	var body errorBody
	r.NoError(json.NewDecoder(resp.Body).Decode(&body))
	r.Contains(body.Message, "force")

	resp = f.call(t, http.MethodDelete, prefix+"/catalogs/prod?force=true", nil, nil)
	r.Equal(http.StatusNoContent, resp.StatusCode)

	resp = f.call(t, http.MethodGet, prefix+"/schemas/prod.sales", nil, nil)
	r.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestSharingProtocol(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	const prefix = "/api/v1/delta-sharing"

	var shares struct {
		Items []sharing.Share `json:"items"`
	}
	resp := f.call(t, http.MethodGet, prefix+"/shares", nil, &shares)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Len(shares.Items, 1)
	r.Equal("partner", shares.Items[0].Name)

	resp = f.call(t, http.MethodGet,
		prefix+"/shares/partner/schemas/sales/tables/orders/version", nil, nil)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("0", resp.Header.Get("Delta-Table-Version"))

	resp = f.call(t, http.MethodGet,
		prefix+"/shares/partner/schemas/sales/tables/orders/metadata", nil, nil)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("application/x-ndjson; charset=utf-8", resp.Header.Get("Content-Type"))
	r.Equal("0", resp.Header.Get("Delta-Table-Version"))
	buf, err := io.ReadAll(resp.Body)
	r.NoError(err)
	lines := strings.Split(strings.TrimSpace(string(buf)), "\n")
	r.Len(lines, 2)
	r.Contains(lines[0], `"metaData"`)
	r.Contains(lines[1], `"protocol"`)

	resp = f.call(t, http.MethodPost,
		prefix+"/shares/partner/schemas/sales/tables/orders/query",
		&sharing.QueryRequest{}, nil)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("application/x-ndjson; charset=utf-8", resp.Header.Get("Content-Type"))
	buf, err = io.ReadAll(resp.Body)
	r.NoError(err)
	lines = strings.Split(strings.TrimSpace(string(buf)), "\n")
	r.Len(lines, 3)
	r.Contains(lines[2], "part-a.parquet")

	// Every query field is optional; omitting the body entirely is the
	// same as sending an empty request.
	resp = f.call(t, http.MethodPost,
		prefix+"/shares/partner/schemas/sales/tables/orders/query", nil, nil)
	r.Equal(http.StatusOK, resp.StatusCode)
	buf, err = io.ReadAll(resp.Body)
	r.NoError(err)
	r.Len(strings.Split(strings.TrimSpace(string(buf)), "\n"), 3)

	// Errors arrive as headers, not a truncated stream.
	resp = f.call(t, http.MethodGet,
		prefix+"/shares/partner/schemas/sales/tables/missing/metadata", nil, nil)
	r.Equal(http.StatusNotFound, resp.StatusCode)
	r.Equal("application/json", resp.Header.Get("Content-Type"))
}

func TestVendingOverHTTP(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	const prefix = "/api/2.1/unity-catalog"
	ctx := context.Background()
	admin := &types.Recipient{Name: "admin"}

	_, err := f.Catalog.CreateCredential(ctx, admin, &api.CreateCredentialRequest{
		Name:    "warehouse",
		Purpose: api.PurposeStorage,
		CredentialEnvelope: api.CredentialEnvelope{
			AwsTempCredentials: &api.AwsTemporaryCredentials{
				AccessKeyID:     "AKIAHTTP",
				SecretAccessKey: "secret",
				Region:          "us-east-1",
			},
		},
	})
	r.NoError(err)
	_, err = f.Catalog.CreateExternalLocation(ctx, admin,
		&api.CreateExternalLocationRequest{
			Name:           "warehouse",
			URL:            "s3://bucket/warehouse",
			CredentialName: "warehouse",
		})
	r.NoError(err)

	var vended creds.TemporaryCredential
	resp := f.call(t, http.MethodPost, prefix+"/temporary-path-credentials",
		&creds.PathCredentialRequest{
			URL:       "s3://bucket/warehouse/sales/orders",
			Operation: creds.PathRead,
		}, &vended)
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("s3://bucket/warehouse/sales/orders", vended.URL)
	r.NotNil(vended.AwsTempCredentials)
	r.Equal("AKIAHTTP", vended.AwsTempCredentials.AccessKeyID)
	r.NotZero(vended.ExpirationTime)

	resp = f.call(t, http.MethodPost, prefix+"/temporary-path-credentials",
		&creds.PathCredentialRequest{
			URL:       "s3://elsewhere/data",
			Operation: creds.PathRead,
		}, nil)
	r.Equal(http.StatusNotFound, resp.StatusCode)

	resp = f.call(t, http.MethodPost, prefix+"/temporary-table-credentials",
		&creds.TableCredentialRequest{
			TableID:   "prod.sales.orders",
			Operation: creds.TableRead,
		}, nil)
	// The table lives on the memory scheme, which has no vendable
	// credential type.
	r.Equal(http.StatusNotFound, resp.StatusCode)
}
