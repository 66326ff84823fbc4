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
	"encoding/json"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/openlake/catalogd/internal/types"
	"github.com/pkg/errors"
)

// errorBody is the JSON error envelope all endpoints share.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// writeError maps the error taxonomy onto an HTTP response. Internal
// details are logged but never leave the process for 5xx responses.
func writeError(w http.ResponseWriter, err error) {
	code := types.CodeOf(err)
	message := err.Error()
	if code == types.Internal {
		log.WithError(err).Error("internal error serving request")
		message = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(&errorBody{
		ErrorCode: code.String(),
		Message:   message,
	})
}

// writeJSON serializes a success payload.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// decodeJSON reads a request body, rejecting malformed input.
func decodeJSON(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(into); err != nil {
		return types.Codef(types.InvalidArgument, "invalid request body: %s", err)
	}
	return nil
}

// decodeJSONOptional is decodeJSON for endpoints whose request fields
// are all optional: a client omitting the body gets the zero-value
// request.
func decodeJSONOptional(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return types.Codef(types.InvalidArgument, "invalid request body: %s", err)
	}
	return nil
}
