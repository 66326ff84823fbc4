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
	"crypto/x509"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPreflight(t *testing.T) {
	tcs := []struct {
		name    string
		mutate  func(*Config)
		failure string
	}{
		{name: "defaults"},
		{
			name:    "no bind address",
			mutate:  func(c *Config) { c.BindAddr = "" },
			failure: "bindAddr",
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.TLSCertFile = "/tmp/cert.pem" },
			failure: "tlsPrivateKey",
		},
		{
			name: "self-signed and explicit cert",
			mutate: func(c *Config) {
				c.GenerateSelfSigned = true
				c.TLSCertFile = "/tmp/cert.pem"
				c.TLSPrivateKey = "/tmp/key.pem"
			},
			failure: "self-signed",
		},
		{
			name:    "non-hex jwt key",
			mutate:  func(c *Config) { c.JWTKey = "not-hex" },
			failure: "hex",
		},
		{
			name:   "hex jwt key",
			mutate: func(c *Config) { c.JWTKey = "00ff" },
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)
			cfg := &Config{}
			cfg.Bind(pflag.NewFlagSet(tc.name, pflag.ContinueOnError))
			if tc.mutate != nil {
				tc.mutate(cfg)
			}
			err := cfg.Preflight()
			if tc.failure == "" {
				a.NoError(err)
			} else if a.Error(err) {
				a.Contains(err.Error(), tc.failure)
			}
		})
	}
}

func TestDecodedJWTKey(t *testing.T) {
	a := assert.New(t)
	a.Nil((&Config{}).DecodedJWTKey())
	a.Equal([]byte{0xde, 0xad}, (&Config{JWTKey: "dead"}).DecodedJWTKey())
}

func TestTLSConfig(t *testing.T) {
	r := require.New(t)

	// No TLS requested.
	cfg, err := TLSConfig(&Config{})
	r.NoError(err)
	r.Nil(cfg)

	// Self-signed generation produces a usable localhost certificate.
	cfg, err = TLSConfig(&Config{GenerateSelfSigned: true})
	r.NoError(err)
	r.NotNil(cfg)
	r.Len(cfg.Certificates, 1)

	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	r.NoError(err)
	r.NoError(leaf.VerifyHostname("localhost"))
	r.NoError(leaf.VerifyHostname("127.0.0.1"))

	// Missing files surface as errors.
	_, err = TLSConfig(&Config{
		TLSCertFile:   "/this/does/not/exist.pem",
		TLSPrivateKey: "/this/does/not/exist.key",
	})
	r.Error(err)
}
