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
	"net/http"

	"github.com/openlake/catalogd/internal/creds"
)

// vendingRoutes wires the temporary-credential endpoints.
func (s *Server) vendingRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+ucPrefix+"/temporary-table-credentials",
		func(w http.ResponseWriter, r *http.Request) {
			var req creds.TableCredentialRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, err)
				return
			}
			ret, err := s.creds.TableCredential(r.Context(), recipientFrom(r.Context()), &req)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ret)
		})
	mux.HandleFunc("POST "+ucPrefix+"/temporary-path-credentials",
		func(w http.ResponseWriter, r *http.Request) {
			var req creds.PathCredentialRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, err)
				return
			}
			ret, err := s.creds.PathCredential(r.Context(), recipientFrom(r.Context()), &req)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ret)
		})
}
