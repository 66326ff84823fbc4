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
	"strconv"

	"github.com/openlake/catalogd/internal/api"
)

// ucPrefix roots the management API.
const ucPrefix = "/api/2.1/unity-catalog"

// maxResults parses the shared pagination parameter.
func maxResults(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("max_results"))
	return n
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// catalogRoutes wires the management API.
func (s *Server) catalogRoutes(mux *http.ServeMux) {
	// Catalogs.
	mux.HandleFunc("POST "+ucPrefix+"/catalogs", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateCatalogRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateCatalog(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/catalogs", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListCatalogs(r.Context(), recipientFrom(r.Context()),
			&api.ListCatalogsRequest{
				MaxResults: maxResults(r),
				PageToken:  r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/catalogs/{name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetCatalog(r.Context(), recipientFrom(r.Context()),
			&api.GetCatalogRequest{Name: r.PathValue("name")})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/catalogs/{name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateCatalogRequest{Name: r.PathValue("name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateCatalog(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/catalogs/{name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteCatalog(r.Context(), recipientFrom(r.Context()),
			&api.DeleteCatalogRequest{
				Name:  r.PathValue("name"),
				Force: boolParam(r, "force"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Schemas.
	mux.HandleFunc("POST "+ucPrefix+"/schemas", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateSchemaRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateSchema(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/schemas", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListSchemas(r.Context(), recipientFrom(r.Context()),
			&api.ListSchemasRequest{
				CatalogName: r.URL.Query().Get("catalog_name"),
				MaxResults:  maxResults(r),
				PageToken:   r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/schemas/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetSchema(r.Context(), recipientFrom(r.Context()),
			&api.GetSchemaRequest{FullName: r.PathValue("full_name")})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/schemas/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateSchemaRequest{FullName: r.PathValue("full_name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateSchema(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/schemas/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteSchema(r.Context(), recipientFrom(r.Context()),
			&api.DeleteSchemaRequest{
				FullName: r.PathValue("full_name"),
				Force:    boolParam(r, "force"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Tables.
	mux.HandleFunc("POST "+ucPrefix+"/tables", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateTableRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateTable(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/tables", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListTables(r.Context(), recipientFrom(r.Context()),
			&api.ListTablesRequest{
				CatalogName: r.URL.Query().Get("catalog_name"),
				SchemaName:  r.URL.Query().Get("schema_name"),
				MaxResults:  maxResults(r),
				PageToken:   r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/tables/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetTable(r.Context(), recipientFrom(r.Context()),
			&api.GetTableRequest{
				FullName:      r.PathValue("full_name"),
				IncludeBrowse: boolParam(r, "include_browse"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/tables/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateTableRequest{FullName: r.PathValue("full_name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateTable(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/tables/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteTable(r.Context(), recipientFrom(r.Context()),
			&api.DeleteTableRequest{FullName: r.PathValue("full_name")})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Volumes.
	mux.HandleFunc("POST "+ucPrefix+"/volumes", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateVolumeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateVolume(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/volumes", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListVolumes(r.Context(), recipientFrom(r.Context()),
			&api.ListVolumesRequest{
				CatalogName: r.URL.Query().Get("catalog_name"),
				SchemaName:  r.URL.Query().Get("schema_name"),
				MaxResults:  maxResults(r),
				PageToken:   r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/volumes/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetVolume(r.Context(), recipientFrom(r.Context()),
			&api.GetVolumeRequest{FullName: r.PathValue("full_name")})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/volumes/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateVolumeRequest{FullName: r.PathValue("full_name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateVolume(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/volumes/{full_name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteVolume(r.Context(), recipientFrom(r.Context()),
			&api.DeleteVolumeRequest{FullName: r.PathValue("full_name")})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Credentials.
	mux.HandleFunc("POST "+ucPrefix+"/credentials", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateCredentialRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateCredential(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/credentials", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListCredentials(r.Context(), recipientFrom(r.Context()),
			&api.ListCredentialsRequest{
				Purpose:    api.CredentialPurpose(r.URL.Query().Get("purpose")),
				MaxResults: maxResults(r),
				PageToken:  r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/credentials/{name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetCredential(r.Context(), recipientFrom(r.Context()),
			&api.GetCredentialRequest{
				Name:   r.PathValue("name"),
				Reveal: boolParam(r, "reveal"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/credentials/{name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateCredentialRequest{Name: r.PathValue("name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateCredential(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/credentials/{name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteCredential(r.Context(), recipientFrom(r.Context()),
			&api.DeleteCredentialRequest{Name: r.PathValue("name")})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// External locations.
	mux.HandleFunc("POST "+ucPrefix+"/external-locations", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateExternalLocationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateExternalLocation(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/external-locations", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListExternalLocations(r.Context(), recipientFrom(r.Context()),
			&api.ListExternalLocationsRequest{
				MaxResults: maxResults(r),
				PageToken:  r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/external-locations/{name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetExternalLocation(r.Context(), recipientFrom(r.Context()),
			&api.GetExternalLocationRequest{Name: r.PathValue("name")})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/external-locations/{name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateExternalLocationRequest{Name: r.PathValue("name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateExternalLocation(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/external-locations/{name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteExternalLocation(r.Context(), recipientFrom(r.Context()),
			&api.DeleteExternalLocationRequest{
				Name:  r.PathValue("name"),
				Force: boolParam(r, "force"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Shares.
	mux.HandleFunc("POST "+ucPrefix+"/shares", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateShareRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateShare(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/shares", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListShares(r.Context(), recipientFrom(r.Context()),
			&api.ListSharesRequest{
				MaxResults: maxResults(r),
				PageToken:  r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/shares/{name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetShare(r.Context(), recipientFrom(r.Context()),
			&api.GetShareRequest{
				Name:              r.PathValue("name"),
				IncludeSharedData: boolParam(r, "include_shared_data"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/shares/{name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateShareRequest{Name: r.PathValue("name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateShare(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/shares/{name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteShare(r.Context(), recipientFrom(r.Context()),
			&api.DeleteShareRequest{Name: r.PathValue("name")})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET "+ucPrefix+"/shares/{name}/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.catalog.GetSharePermissions(
			r.Context(), recipientFrom(r.Context()), r.PathValue("name")))
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/shares/{name}/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.catalog.UpdateSharePermissions(
			r.Context(), recipientFrom(r.Context()), r.PathValue("name")))
	})

	// Recipients.
	mux.HandleFunc("POST "+ucPrefix+"/recipients", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateRecipientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.CreateRecipient(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/recipients", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.ListRecipients(r.Context(), recipientFrom(r.Context()),
			&api.ListRecipientsRequest{
				MaxResults: maxResults(r),
				PageToken:  r.URL.Query().Get("page_token"),
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("GET "+ucPrefix+"/recipients/{name}", func(w http.ResponseWriter, r *http.Request) {
		ret, err := s.catalog.GetRecipient(r.Context(), recipientFrom(r.Context()),
			&api.GetRecipientRequest{Name: r.PathValue("name")})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("PATCH "+ucPrefix+"/recipients/{name}", func(w http.ResponseWriter, r *http.Request) {
		req := api.UpdateRecipientRequest{Name: r.PathValue("name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.UpdateRecipient(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
	mux.HandleFunc("DELETE "+ucPrefix+"/recipients/{name}", func(w http.ResponseWriter, r *http.Request) {
		err := s.catalog.DeleteRecipient(r.Context(), recipientFrom(r.Context()),
			&api.DeleteRecipientRequest{Name: r.PathValue("name")})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST "+ucPrefix+"/recipients/{name}/rotate-token", func(w http.ResponseWriter, r *http.Request) {
		req := api.RotateRecipientTokenRequest{Name: r.PathValue("name")}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ret, err := s.catalog.RotateRecipientToken(r.Context(), recipientFrom(r.Context()), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ret)
	})
}
