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
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/openlake/catalogd/internal/sharing"
	"github.com/openlake/catalogd/internal/types"
)

// Wire constants of the sharing protocol.
const (
	sharePrefix = "/api/v1/delta-sharing"

	ndjsonContentType = "application/x-ndjson; charset=utf-8"

	// tableVersionHeader carries the snapshot version on version,
	// metadata, and query responses.
	tableVersionHeader = "Delta-Table-Version"
)

// sharingRoutes wires the recipient-facing protocol endpoints.
func (s *Server) sharingRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+sharePrefix+"/shares", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.engine.ListShares(r.Context(), recipientFrom(r.Context()),
			maxResults(r), r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+sharePrefix+"/shares/{share}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.engine.GetShare(r.Context(), recipientFrom(r.Context()),
			r.PathValue("share"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+sharePrefix+"/shares/{share}/schemas", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.engine.ListSchemas(r.Context(), recipientFrom(r.Context()),
			r.PathValue("share"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+sharePrefix+"/shares/{share}/schemas/{schema}/tables",
		func(w http.ResponseWriter, r *http.Request) {
			ret, err := s.engine.ListSchemaTables(r.Context(), recipientFrom(r.Context()),
				r.PathValue("share"), r.PathValue("schema"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ret)
		})
	mux.HandleFunc("GET "+sharePrefix+"/shares/{share}/all-tables",
		func(w http.ResponseWriter, r *http.Request) {
			ret, err := s.engine.ListAllTables(r.Context(), recipientFrom(r.Context()),
				r.PathValue("share"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ret)
		})
	mux.HandleFunc("GET "+sharePrefix+"/shares/{share}/schemas/{schema}/tables/{table}/version",
		func(w http.ResponseWriter, r *http.Request) {
			var since *time.Time
			if raw := r.URL.Query().Get("startingTimestamp"); raw != "" {
				ts, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					writeError(w, types.Codef(types.InvalidArgument,
						"startingTimestamp must be RFC 3339: %s", err))
					return
				}
				since = &ts
			}
			version, err := s.engine.TableVersion(r.Context(), recipientFrom(r.Context()),
				r.PathValue("share"), r.PathValue("schema"), r.PathValue("table"), since)
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set(tableVersionHeader, strconv.FormatInt(version, 10))
			w.WriteHeader(http.StatusOK)
		})
	mux.HandleFunc("GET "+sharePrefix+"/shares/{share}/schemas/{schema}/tables/{table}/metadata",
		func(w http.ResponseWriter, r *http.Request) {
			s.streamTable(w, r, func(w io.Writer) (int64, error) {
				return s.engine.TableMetadata(r.Context(), recipientFrom(r.Context()),
					r.PathValue("share"), r.PathValue("schema"), r.PathValue("table"), w)
			})
		})
	mux.HandleFunc("POST "+sharePrefix+"/shares/{share}/schemas/{schema}/tables/{table}/query",
		func(w http.ResponseWriter, r *http.Request) {
			var req sharing.QueryRequest
			if err := decodeJSONOptional(r, &req); err != nil {
				writeError(w, err)
				return
			}
			s.streamTable(w, r, func(w io.Writer) (int64, error) {
				return s.engine.QueryTable(r.Context(), recipientFrom(r.Context()),
					r.PathValue("share"), r.PathValue("schema"), r.PathValue("table"),
					&req, w)
			})
		})
}

// streamTable buffers the ndjson body so the version header and any
// error can still be delivered as headers. Snapshot listings are small
// relative to the data files they reference.
func (s *Server) streamTable(
	w http.ResponseWriter, r *http.Request, fn func(io.Writer) (int64, error),
) {
	var buf bytes.Buffer
	version, err := fn(&buf)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", ndjsonContentType)
	w.Header().Set(tableVersionHeader, strconv.FormatInt(version, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
