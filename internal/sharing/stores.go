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

import (
	"context"
	"sync"

	"github.com/openlake/catalogd/internal/creds"
	"github.com/openlake/catalogd/internal/storage/location"
	"github.com/openlake/catalogd/internal/storage/objstore"
	"github.com/openlake/catalogd/internal/types"
)

// Factory opens object stores by storage scheme. S3 access is
// credentialed through the same resolver that serves the vending API,
// so a table readable through sharing is exactly a table whose
// location a credential governs.
type Factory struct {
	Creds *creds.Cache

	mu struct {
		sync.RWMutex
		registered map[string]objstore.Store
	}
}

var _ StoreFactory = (*Factory)(nil)

// NewFactory constructs a Factory.
func NewFactory(c *creds.Cache) *Factory {
	f := &Factory{Creds: c}
	f.mu.registered = make(map[string]objstore.Store)
	return f
}

// Register binds a store to a store root, overriding scheme-based
// opening. Tests use this to serve canned logs from memory roots.
func (f *Factory) Register(root string, store objstore.Store) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mu.registered[root] = store
}

// Open implements [StoreFactory].
func (f *Factory) Open(
	ctx context.Context, recipient *types.Recipient, target *location.URL,
) (objstore.Store, error) {
	f.mu.RLock()
	registered, ok := f.mu.registered[target.StoreRoot.String()]
	f.mu.RUnlock()
	if ok {
		return objstore.WithPrefix(registered, target.Location.Path), nil
	}

	switch target.Scheme {
	case location.File:
		return objstore.NewLocal(target.Location.Path), nil
	case location.S3:
		cred, err := f.Creds.PathCredential(ctx, recipient, &creds.PathCredentialRequest{
			URL:       target.String(),
			Operation: creds.PathRead,
		})
		if err != nil {
			return nil, err
		}
		aws := cred.AwsTempCredentials
		if aws == nil {
			return nil, types.Codef(types.Internal,
				"credential for %q is not an AWS credential", target)
		}
		store, err := objstore.NewS3(ctx, target.Location.Host, aws.Region,
			aws.AccessKeyID, aws.SecretAccessKey, aws.SessionToken)
		if err != nil {
			return nil, err
		}
		return objstore.WithPrefix(store, target.Location.Path), nil
	case location.Memory:
		return nil, types.Codef(types.NotFound,
			"no memory store registered for %q", target.StoreRoot)
	default:
		return nil, types.Codef(types.NotImplemented,
			"no object store adapter for scheme %q", target.Scheme)
	}
}
