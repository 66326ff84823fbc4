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

// Package location normalizes the heterogeneous storage URLs users
// spell into a single canonical identity. Every downstream consumer
// (credential resolution, sharing) works from the parsed form rather
// than the raw string.
package location

import (
	"net/url"
	"strings"

	"github.com/openlake/catalogd/internal/types"
)

// A Scheme is the canonical storage scheme of a parsed URL.
type Scheme string

// The recognized schemes. Azurite is the local Azure emulator; it is
// reachable either through the custom azurite:// scheme or through its
// well-known local HTTP endpoint.
const (
	S3      Scheme = "s3"
	GS      Scheme = "gs"
	Azure   Scheme = "az"
	File    Scheme = "file"
	Memory  Scheme = "memory"
	HTTP    Scheme = "http"
	Azurite Scheme = "azurite"
)

// A URL wraps a raw storage URL together with its canonical identity.
//
// StoreRoot identifies the object store (bucket, container, account);
// Location is the fully-resolved path inside it. For the emulator
// forms, both are rewritten into azurite:// URLs so that equal
// locations compare equal regardless of how the user spelled them.
type URL struct {
	Raw       *url.URL
	Location  *url.URL
	StoreRoot *url.URL
	Scheme    Scheme
}

// Parse normalizes a storage URL string. Parsing is idempotent:
// feeding back String() of any field yields the same identity.
func Parse(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, types.Codef(types.InvalidArgument, "invalid storage url %q", raw)
	}

	scheme, err := schemeOf(u)
	if err != nil {
		return nil, err
	}

	if scheme == Azurite {
		return parseAzurite(u)
	}

	root := &url.URL{Scheme: string(scheme), Host: u.Host, Path: "/"}
	loc := &url.URL{Scheme: string(scheme), Host: u.Host, Path: u.Path}
	if loc.Path == "" {
		loc.Path = "/"
	}
	return &URL{Raw: u, Location: loc, StoreRoot: root, Scheme: scheme}, nil
}

func schemeOf(u *url.URL) (Scheme, error) {
	switch u.Scheme {
	case "s3":
		return S3, nil
	case "gs":
		return GS, nil
	case "az", "abfss":
		return Azure, nil
	case "file":
		return File, nil
	case "memory":
		return Memory, nil
	case "azurite":
		return Azurite, nil
	case "http", "https":
		if isAzuriteHost(u) {
			return Azurite, nil
		}
		return HTTP, nil
	default:
		return "", types.Codef(types.InvalidArgument, "unrecognized storage scheme %q", u.Scheme)
	}
}

// isAzuriteHost matches the emulator's default endpoint. Azurite is
// only used for local development, so the default is assumed.
func isAzuriteHost(u *url.URL) bool {
	host := u.Hostname()
	return (host == "localhost" || host == "127.0.0.1") && u.Port() == "10000"
}

// parseAzurite rewrites both emulator spellings into azurite:// form.
// The HTTP form carries /{account}/{container}/{rest} in its path.
func parseAzurite(u *url.URL) (*URL, error) {
	if u.Scheme == "azurite" {
		container := u.Host
		if container == "" {
			return nil, types.Codef(types.InvalidArgument,
				"azurite URLs must name a container: %q", u)
		}
		root := &url.URL{Scheme: "azurite", Host: container, Path: "/"}
		loc := &url.URL{Scheme: "azurite", Host: container, Path: u.Path}
		if loc.Path == "" {
			loc.Path = "/"
		}
		return &URL{Raw: u, Location: loc, StoreRoot: root, Scheme: Azurite}, nil
	}

	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, types.Codef(types.InvalidArgument,
			"emulator URLs must encode the account and container name in the path: %q", u)
	}
	container := parts[1]
	rest := ""
	if len(parts) == 3 {
		rest = parts[2]
	}
	root := &url.URL{Scheme: "azurite", Host: container, Path: "/"}
	loc := &url.URL{Scheme: "azurite", Host: container, Path: "/" + rest}
	return &URL{Raw: u, Location: loc, StoreRoot: root, Scheme: Azurite}, nil
}

// String returns the canonical location.
func (u *URL) String() string { return u.Location.String() }

// IsPrefixOf reports whether this URL governs the other one, i.e. the
// external-location check used by credential resolution. Either the
// raw or the canonical spelling may match.
func (u *URL) IsPrefixOf(other *URL) bool {
	return strings.HasPrefix(other.Raw.String(), u.Raw.String()) ||
		strings.HasPrefix(other.Location.String(), u.Location.String())
}
