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
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config contains the user-visible configuration for running the HTTP
// server.
type Config struct {
	BindAddr           string
	DisableAuth        bool
	GenerateSelfSigned bool
	JWTKey             string
	StorageConn        string
	TLSCertFile        string
	TLSPrivateKey      string
}

// Bind registers flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(
		&c.BindAddr,
		"bindAddr",
		":8080",
		"the network address to bind to")
	flags.BoolVar(
		&c.DisableAuth,
		"disableAuthentication",
		false,
		"admit all requests as the anonymous recipient; not recommended for production")
	flags.StringVar(
		&c.JWTKey,
		"jwtKey",
		"",
		"a hex-encoded shared key for verifying service-minted JWTs")
	flags.StringVar(
		&c.StorageConn,
		"storageConn",
		"",
		"a PostgreSQL connection string for durable metadata; "+
			"falls back to DATABASE_URL, then to an in-memory store")
	flags.BoolVar(
		&c.GenerateSelfSigned,
		"tlsSelfSigned",
		false,
		"if true, generate a self-signed TLS certificate valid for 'localhost'")
	flags.StringVar(
		&c.TLSCertFile,
		"tlsCertificate",
		"",
		"a path to a PEM-encoded TLS certificate chain")
	flags.StringVar(
		&c.TLSPrivateKey,
		"tlsPrivateKey",
		"",
		"a path to a PEM-encoded TLS private key")
}

// Preflight validates the configuration.
func (c *Config) Preflight() error {
	if c.BindAddr == "" {
		return errors.New("bindAddr unset")
	}
	if (c.TLSCertFile == "") != (c.TLSPrivateKey == "") {
		return errors.New("either both of tlsCertificate and tlsPrivateKey must be set, or none")
	}
	if c.GenerateSelfSigned && c.TLSCertFile != "" {
		return errors.New("self-signed certificate requested, but also specified a TLS certificate")
	}
	if c.JWTKey != "" {
		if _, err := hex.DecodeString(c.JWTKey); err != nil {
			return errors.Wrap(err, "jwtKey must be hex-encoded")
		}
	}
	return nil
}

// DecodedJWTKey returns the shared key bytes, or nil when unset.
func (c *Config) DecodedJWTKey() []byte {
	if c.JWTKey == "" {
		return nil
	}
	key, _ := hex.DecodeString(c.JWTKey)
	return key
}
