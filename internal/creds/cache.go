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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/openlake/catalogd/internal/types"
	"golang.org/x/sync/singleflight"
)

// expirySlack is subtracted from a token's lifetime when deciding
// whether the cached entry is still usable, so callers never receive a
// token about to lapse mid-request.
const expirySlack = 60 * time.Second

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credential_cache_hits_total",
		Help: "Number of credential requests served from cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credential_cache_misses_total",
		Help: "Number of credential requests that required resolution",
	})
)

// A Cache memoizes vended credentials per recipient and securable.
// Concurrent requests for the same key collapse into one resolution.
type Cache struct {
	resolver *Resolver
	flight   singleflight.Group

	mu struct {
		sync.Mutex
		entries map[string]*TemporaryCredential
	}
}

// NewCache wraps a Resolver.
func NewCache(resolver *Resolver) *Cache {
	c := &Cache{resolver: resolver}
	c.mu.entries = make(map[string]*TemporaryCredential)
	return c
}

// TableCredential returns a cached credential for the table or
// resolves one. Dry runs bypass the cache.
func (c *Cache) TableCredential(
	ctx context.Context, recipient *types.Recipient, req *TableCredentialRequest,
) (*TemporaryCredential, error) {
	if req.DryRun {
		return c.resolver.TableCredential(ctx, recipient, req)
	}
	key := "table/" + keyOf(recipient) + "/" + req.TableID + "/" + string(req.Operation)
	return c.load(ctx, key, func(ctx context.Context) (*TemporaryCredential, error) {
		return c.resolver.TableCredential(ctx, recipient, req)
	})
}

// PathCredential returns a cached credential for the URL or resolves
// one. Dry runs bypass the cache.
func (c *Cache) PathCredential(
	ctx context.Context, recipient *types.Recipient, req *PathCredentialRequest,
) (*TemporaryCredential, error) {
	if req.DryRun {
		return c.resolver.PathCredential(ctx, recipient, req)
	}
	key := "path/" + keyOf(recipient) + "/" + req.URL + "/" + string(req.Operation)
	return c.load(ctx, key, func(ctx context.Context) (*TemporaryCredential, error) {
		return c.resolver.PathCredential(ctx, recipient, req)
	})
}

func (c *Cache) load(
	ctx context.Context,
	key string,
	resolve func(context.Context) (*TemporaryCredential, error),
) (*TemporaryCredential, error) {
	if cred := c.peek(key); cred != nil {
		cacheHits.Inc()
		return cred, nil
	}
	cacheMisses.Inc()

	ret, err, _ := c.flight.Do(key, func() (any, error) {
		// A concurrent caller may have refreshed while we queued.
		if cred := c.peek(key); cred != nil {
			return cred, nil
		}
		var cred *TemporaryCredential
		retry := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
		err := backoff.Retry(func() error {
			var err error
			cred, err = resolve(ctx)
			if err != nil && types.CodeOf(err) != types.Internal {
				// Client errors will not improve on retry.
				return backoff.Permanent(err)
			}
			return err
		}, retry)
		if err != nil {
			return nil, err
		}
		c.store(key, cred)
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	return ret.(*TemporaryCredential), nil
}

// peek returns a usable cached entry or nil.
func (c *Cache) peek(key string) *TemporaryCredential {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, ok := c.mu.entries[key]
	if !ok {
		return nil
	}
	expiry := time.UnixMilli(cred.ExpirationTime)
	if time.Now().After(expiry.Add(-expirySlack)) {
		delete(c.mu.entries, key)
		return nil
	}
	return cred
}

func (c *Cache) store(key string, cred *TemporaryCredential) {
	if cred.ExpirationTime == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.entries[key] = cred
}

// keyOf scopes cache entries to the recipient so one caller can never
// receive a token vended for another.
func keyOf(recipient *types.Recipient) string {
	if recipient == nil || recipient.Anonymous {
		return "<anonymous>"
	}
	return recipient.Name
}
