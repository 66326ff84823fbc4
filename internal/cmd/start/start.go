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

// Package start contains the command to start the catalog server.
package start

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/auth"
	"github.com/openlake/catalogd/internal/creds"
	"github.com/openlake/catalogd/internal/policy"
	"github.com/openlake/catalogd/internal/secrets"
	"github.com/openlake/catalogd/internal/server"
	"github.com/openlake/catalogd/internal/sharing"
	"github.com/openlake/catalogd/internal/sharing/deltalog"
	"github.com/openlake/catalogd/internal/store/mem"
	"github.com/openlake/catalogd/internal/store/pg"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/stopper"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// secretKeyEnv names the environment variable holding the hex-encoded
// key that seals secrets at rest. It is required when a database
// connection is configured.
const secretKeyEnv = "CATALOGD_SECRET_KEY"

// Command returns the command to start the server.
func Command() *cobra.Command {
	cfg := &server.Config{}
	cmd := &cobra.Command{
		Args:  cobra.NoArgs,
		Short: "start the catalog server",
		Use:   "start",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Print build info on startup so we always have a place
			// to start debugging from.
			if bi, ok := debug.ReadBuildInfo(); ok {
				info := make(log.Fields, len(bi.Settings))
				for _, s := range bi.Settings {
					info[s.Key] = s.Value
				}
				log.WithFields(info).Info("catalogd starting")
			}

			if err := cfg.Preflight(); err != nil {
				return err
			}

			// main.go cancels this context on SIGTERM.
			ctx := stopper.WithContext(cmd.Context())
			if _, err := newServer(ctx, cfg); err != nil {
				ctx.Stop(0)
				return err
			}
			return ctx.Wait()
		},
	}
	cfg.Bind(cmd.Flags())
	return cmd
}

// newServer assembles the storage, policy, credential, and sharing
// layers and binds them to the network.
func newServer(ctx *stopper.Context, cfg *server.Config) (*server.Server, error) {
	store, secretStore, healthy, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pol := policy.AllowAll()
	catalog := api.New(store, secretStore, pol)
	vendor := creds.NewCache(creds.NewResolver(catalog, pol))
	engine := sharing.NewEngine(catalog, deltalog.NewOpener(), pol, sharing.NewFactory(vendor))

	tlsConfig, err := server.TLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	listener, err := server.Listener(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return server.New(
		ctx, authenticator(cfg, store), catalog, vendor, engine,
		listener, tlsConfig, healthy), nil
}

// openStorage connects to the configured database, or falls back to
// in-memory stores suitable for development.
func openStorage(
	ctx *stopper.Context, cfg *server.Config,
) (types.ResourceStore, types.SecretStore, func(context.Context) error, error) {
	if cfg.StorageConn == "" {
		cfg.StorageConn = os.Getenv("DATABASE_URL")
	}
	if cfg.StorageConn == "" {
		log.Warn("no storage connection configured; metadata will not survive a restart")
		healthy := func(context.Context) error { return nil }
		return mem.New(), secrets.NewMemory(), healthy, nil
	}

	key := os.Getenv(secretKeyEnv)
	if key == "" {
		return nil, nil, nil, errors.Errorf(
			"durable storage requires a secret key; set %s", secretKeyEnv)
	}
	cipher, err := secrets.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := pg.New(ctx, cfg.StorageConn)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx.Go(func() error {
		<-ctx.Stopping()
		store.Close()
		return nil
	})

	secretStore, err := secrets.NewPG(ctx, store.Pool(), cipher)
	if err != nil {
		return nil, nil, nil, err
	}
	healthy := func(ctx context.Context) error {
		return store.Pool().Ping(ctx)
	}
	return store, secretStore, healthy, nil
}

// authenticator builds the token-verification chain. Recipient bearer
// tokens are always accepted; a shared JWT key extends the chain to
// service-minted tokens.
func authenticator(cfg *server.Config, store types.ResourceStore) types.Authenticator {
	if cfg.DisableAuth {
		log.Warn("authentication disabled; all requests run as the anonymous recipient")
		return auth.Anonymous()
	}
	chain := []types.Authenticator{auth.RecipientTokens(store)}
	if key := cfg.DecodedJWTKey(); key != nil {
		chain = append(chain, auth.JWT(key))
	}
	chain = append(chain, auth.Reject())
	return auth.FirstOf(chain...)
}
