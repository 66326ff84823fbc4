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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/storage/location"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenLifetime bounds every vended credential.
const tokenLifetime = time.Hour

// azureTokenURL is the AAD v2 token endpoint, parameterized by tenant.
const azureTokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

// azureIMDSURL is the instance-metadata token endpoint available to
// Azure-hosted deployments.
const azureIMDSURL = "http://169.254.169.254/metadata/identity/oauth2/token"

// azureStorageScope is the resource scope for storage-plane tokens.
const azureStorageScope = "https://storage.azure.com/.default"

// azureStorageResource is the audience form the IMDS endpoint expects.
const azureStorageResource = "https://storage.azure.com/"

// clientAssertionType marks a JWT assertion in an AAD token exchange.
const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Azurite ships with one well-known development account.
const (
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// A Resolver maps storage URLs onto the credential governing them. The
// walk is URL → longest-prefix external location → credential record →
// secret envelope → provider token.
type Resolver struct {
	Catalog *api.Service
	Policy  policy.Policy

	// Token endpoints, pointed at local fakes in tests.
	aadTokenURL string
	imdsURL     string
}

// NewResolver constructs a Resolver over the catalog service.
func NewResolver(catalog *api.Service, pol policy.Policy) *Resolver {
	return &Resolver{
		Catalog:     catalog,
		Policy:      pol,
		aadTokenURL: azureTokenURL,
		imdsURL:     azureIMDSURL,
	}
}

// TableCredential vends a credential scoped to a table's storage
// location.
func (r *Resolver) TableCredential(
	ctx context.Context, recipient *types.Recipient, req *TableCredentialRequest,
) (*TemporaryCredential, error) {
	var perm policy.Permission
	switch req.Operation {
	case TableRead:
		perm = policy.Read
	case TableReadWrite:
		perm = policy.Manage
	default:
		return nil, types.Codef(types.InvalidArgument,
			"unknown table operation %q", req.Operation)
	}
	table, err := r.Catalog.GetTable(ctx, recipient, &api.GetTableRequest{
		FullName: req.TableID,
	})
	if err != nil {
		return nil, err
	}
	ident := resid.LabelTable.Ident(resid.NameRef(resid.ParseName(table.FullName)))
	if err := policy.CheckRequired(ctx, r.Policy, recipient, policy.Secured(ident, perm)); err != nil {
		return nil, err
	}
	if table.StorageLocation == "" {
		return nil, types.Codef(types.InvalidArgument,
			"table %q has no storage location", table.FullName)
	}
	return r.resolve(ctx, recipient, table.StorageLocation, req.DryRun)
}

// PathCredential vends a credential scoped to a raw storage URL.
func (r *Resolver) PathCredential(
	ctx context.Context, recipient *types.Recipient, req *PathCredentialRequest,
) (*TemporaryCredential, error) {
	switch req.Operation {
	case PathRead, PathReadWrite, PathCreateTable:
	default:
		return nil, types.Codef(types.InvalidArgument,
			"unknown path operation %q", req.Operation)
	}
	return r.resolve(ctx, recipient, req.URL, req.DryRun)
}

// resolve walks the URL to a token. A dry run stops after the
// credential record was located.
func (r *Resolver) resolve(
	ctx context.Context, recipient *types.Recipient, raw string, dryRun bool,
) (*TemporaryCredential, error) {
	target, err := location.Parse(raw)
	if err != nil {
		return nil, err
	}
	loc, err := r.findLocation(ctx, recipient, target)
	if err != nil {
		return nil, err
	}
	if dryRun {
		// Confirm the credential exists without touching the secret.
		if _, err := r.Catalog.GetCredential(ctx, recipient, &api.GetCredentialRequest{
			Name: loc.CredentialName,
		}); err != nil {
			return nil, err
		}
		return &TemporaryCredential{URL: target.String()}, nil
	}
	cred, err := r.Catalog.GetCredential(ctx, recipient, &api.GetCredentialRequest{
		Name:   loc.CredentialName,
		Reveal: true,
	})
	if err != nil {
		return nil, err
	}
	return r.materialize(ctx, target, &cred.CredentialEnvelope)
}

// findLocation returns the external location with the longest URL
// prefix over the target, following the rule that a more specific
// grant always wins.
func (r *Resolver) findLocation(
	ctx context.Context, recipient *types.Recipient, target *location.URL,
) (*api.ExternalLocationInfo, error) {
	var best *api.ExternalLocationInfo
	bestLen := -1
	token := ""
	for {
		page, err := r.Catalog.ListExternalLocations(ctx, recipient,
			&api.ListExternalLocationsRequest{PageToken: token})
		if err != nil {
			return nil, err
		}
		for i := range page.ExternalLocations {
			loc := &page.ExternalLocations[i]
			parsed, err := location.Parse(loc.URL)
			if err != nil {
				// Tolerate records written before a scheme was retired.
				continue
			}
			if !parsed.IsPrefixOf(target) {
				continue
			}
			if n := len(parsed.Location.String()); n > bestLen {
				best, bestLen = loc, n
			}
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	if best == nil {
		return nil, types.Codef(types.NotFound,
			"no external location covers %q", target)
	}
	return best, nil
}

// materialize turns a stored envelope into a provider token.
func (r *Resolver) materialize(
	ctx context.Context, target *location.URL, env *api.CredentialEnvelope,
) (*TemporaryCredential, error) {
	ret := &TemporaryCredential{
		URL:            target.String(),
		ExpirationTime: time.Now().Add(tokenLifetime).UnixMilli(),
	}

	// The emulator only accepts its development account, regardless of
	// what credential governs the location.
	if target.Scheme == location.Azurite {
		ret.AzureStorageKey = &api.AzureStorageKey{
			AccountName: azuriteAccountName,
			AccountKey:  azuriteAccountKey,
		}
		return ret, nil
	}

	switch {
	case env.AwsTempCredentials != nil:
		// Round-trip through the SDK provider to normalize the shape.
		provider := credentials.NewStaticCredentialsProvider(
			env.AwsTempCredentials.AccessKeyID,
			env.AwsTempCredentials.SecretAccessKey,
			env.AwsTempCredentials.SessionToken)
		v, err := provider.Retrieve(ctx)
		if err != nil {
			return nil, types.Coded(types.Internal, err)
		}
		ret.AwsTempCredentials = &api.AwsTemporaryCredentials{
			AccessKeyID:     v.AccessKeyID,
			SecretAccessKey: v.SecretAccessKey,
			SessionToken:    v.SessionToken,
			Region:          env.AwsTempCredentials.Region,
		}
	case env.AzureServicePrincipal != nil:
		sp := env.AzureServicePrincipal
		cfg := &clientcredentials.Config{
			ClientID: sp.ApplicationID,
			TokenURL: fmt.Sprintf(r.aadTokenURL, sp.DirectoryID),
			Scopes:   []string{azureStorageScope},
		}
		switch {
		case sp.ClientSecret != "":
			cfg.ClientSecret = sp.ClientSecret
		case sp.FederatedTokenFile != "":
			// Workload-identity deployments project the assertion JWT
			// into a file that rotates out of band; read it per vend.
			assertion, err := os.ReadFile(sp.FederatedTokenFile)
			if err != nil {
				return nil, types.Coded(types.Internal,
					errors.Wrap(err, "reading federated token file"))
			}
			cfg.EndpointParams = url.Values{
				"client_assertion_type": {clientAssertionType},
				"client_assertion":      {strings.TrimSpace(string(assertion))},
			}
		default:
			return nil, types.Codef(types.InvalidArgument,
				"service principal requires a client secret or a federated token file")
		}
		tok, err := cfg.Token(ctx)
		if err != nil {
			return nil, types.Coded(types.Internal, err)
		}
		ret.AzureAad = &AzureAadToken{AadToken: tok.AccessToken}
		if !tok.Expiry.IsZero() {
			ret.ExpirationTime = tok.Expiry.UnixMilli()
		}
	case env.AzureStorageKey != nil:
		ret.AzureStorageKey = env.AzureStorageKey
	case env.AzureManagedIdentity != nil:
		token, expiry, err := r.managedIdentityToken(ctx, env.AzureManagedIdentity)
		if err != nil {
			return nil, err
		}
		ret.AzureAad = &AzureAadToken{AadToken: token}
		if !expiry.IsZero() {
			ret.ExpirationTime = expiry.UnixMilli()
		}
	case env.GcpOauthToken != nil:
		ret.GcpOauthToken = env.GcpOauthToken
	default:
		return nil, types.Codef(types.InvalidArgument, "credential envelope is empty")
	}
	return ret, nil
}

// managedIdentityToken fetches a storage-plane token from the instance
// metadata service. At most one identity selector may name a
// user-assigned identity; none selects the system identity.
func (r *Resolver) managedIdentityToken(
	ctx context.Context, mi *api.AzureManagedIdentity,
) (string, time.Time, error) {
	query := url.Values{
		"api-version": {"2018-02-01"},
		"resource":    {azureStorageResource},
	}
	selectors := 0
	if mi.ApplicationID != "" {
		query.Set("client_id", mi.ApplicationID)
		selectors++
	}
	if mi.ObjectID != "" {
		query.Set("object_id", mi.ObjectID)
		selectors++
	}
	if mi.MsiResourceID != "" {
		query.Set("msi_res_id", mi.MsiResourceID)
		selectors++
	}
	if selectors > 1 {
		return "", time.Time{}, types.Codef(types.InvalidArgument,
			"managed identity may name at most one of application_id, object_id, or msi_resource_id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.imdsURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", time.Time{}, types.Coded(types.Internal, err)
	}
	req.Header.Set("Metadata", "true")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", time.Time{}, types.Coded(types.Internal,
			errors.Wrap(err, "instance metadata service"))
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, types.Codef(types.Internal,
			"instance metadata service returned %s", resp.Status)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresOn   string `json:"expires_on"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", time.Time{}, types.Coded(types.Internal,
			errors.Wrap(err, "decoding instance metadata response"))
	}
	if payload.AccessToken == "" {
		return "", time.Time{}, types.Codef(types.Internal,
			"instance metadata service returned no token")
	}
	var expiry time.Time
	if secs, err := strconv.ParseInt(payload.ExpiresOn, 10, 64); err == nil {
		expiry = time.Unix(secs, 0)
	}
	return payload.AccessToken, expiry, nil
}
