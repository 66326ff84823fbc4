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

// Package mktoken contains a command to mint a signed bearer token
// from the server's shared JWT key.
package mktoken

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openlake/catalogd/internal/auth"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Command returns a command that signs a token accepted by a server
// started with the same --jwtKey value.
func Command() *cobra.Command {
	var hexKey, out, subject string
	var lifetime time.Duration
	cmd := &cobra.Command{
		Args:  cobra.NoArgs,
		Short: "mint a signed bearer token from the server's shared key",
		Use:   "make-token --jwtKey <hex> --subject analyst",
		Example: strings.TrimSpace(`
# Generate a shared key.
export KEY=$(openssl rand -hex 32)

# Start the server with the key.
catalogd start --jwtKey $KEY &

# Mint a token for a named principal and call the API with it.
TOKEN=$(catalogd make-token --jwtKey $KEY --subject analyst)
curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/2.1/unity-catalog/catalogs
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return errors.New("no subject specified")
			}
			key, err := hex.DecodeString(hexKey)
			if err != nil {
				return errors.Wrap(err, "jwtKey must be hex-encoded")
			}
			if len(key) == 0 {
				return errors.New("no signing key specified")
			}

			token, err := auth.Sign(key, subject, lifetime)
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Println(token)
				return nil
			}
			return os.WriteFile(out, []byte(token), 0600)
		},
	}

	f := cmd.Flags()
	f.StringVar(&hexKey, "jwtKey", "", "the hex-encoded shared key the server was started with")
	f.DurationVar(&lifetime, "lifetime", 24*time.Hour, "how long the token remains valid")
	f.StringVarP(&out, "out", "o", "", "a file to write the token to")
	f.StringVarP(&subject, "subject", "s", "", "the principal name to embed in the token")
	return cmd
}
