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

// Package server exposes the catalog over HTTP: the management API,
// credential vending, and the Delta Sharing protocol.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/creds"
	"github.com/openlake/catalogd/internal/sharing"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/stopper"
)

// A Server routes incoming requests to the catalog, vending, and
// sharing services.
type Server struct {
	auth    types.Authenticator
	catalog *api.Service
	creds   *creds.Cache
	engine  *sharing.Engine
	mux     *http.ServeMux
}

// GetServeMux returns the routing mux, mainly for tests that drive
// the server through httptest.
func (s *Server) GetServeMux() *http.ServeMux { return s.mux }

// New constructs the top-level network server. The server runs on a
// background goroutine and drains gracefully when the stopper stops.
func New(
	ctx *stopper.Context,
	auth types.Authenticator,
	catalog *api.Service,
	vendor *creds.Cache,
	engine *sharing.Engine,
	listener net.Listener,
	tlsConfig *tls.Config,
	healthy func(context.Context) error,
) *Server {
	s := &Server{
		auth:    auth,
		catalog: catalog,
		creds:   vendor,
		engine:  engine,
	}
	s.mux = s.buildMux(healthy)

	srv := &http.Server{
		Handler:   h2c.NewHandler(s.mux, &http2.Server{}),
		TLSConfig: tlsConfig,
	}

	ctx.Go(func() error {
		var err error
		if srv.TLSConfig != nil {
			err = srv.ServeTLS(listener, "", "")
		} else {
			err = srv.Serve(listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "unable to serve requests")
	})
	ctx.Go(func() error {
		<-ctx.Stopping()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("did not shut down cleanly")
		} else {
			log.Info("server shutdown complete")
		}
		return nil
	})

	return s
}

// Listener constructs the incoming network socket for the server.
func Listener(ctx *stopper.Context, config *Config) (net.Listener, error) {
	l, err := net.Listen("tcp", config.BindAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "could not bind to %q", config.BindAddr)
	}
	log.WithField("address", l.Addr()).Info("server listening")
	ctx.Go(func() error {
		<-ctx.Stopping()
		_ = l.Close()
		return nil
	})
	return l, nil
}

// buildMux assembles routing. The operational endpoints bypass
// authentication; everything else passes through the auth middleware
// before any routing decision.
func (s *Server) buildMux(healthy func(context.Context) error) *http.ServeMux {
	app := http.NewServeMux()
	s.catalogRoutes(app)
	s.vendingRoutes(app)
	s.sharingRoutes(app)

	mux := http.NewServeMux()
	mux.HandleFunc("/_/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthy != nil {
			if err := healthy(r.Context()); err != nil {
				log.WithError(err).Warn("health check failed")
				http.Error(w, "health check failed", http.StatusInternalServerError)
				return
			}
		}
		http.Error(w, "OK", http.StatusOK)
	})
	mux.Handle("/_/varz", promhttp.Handler())
	mux.Handle("/", logWrapper(authenticate(s.auth, app)))
	return mux
}
