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

// Package resid contains types for safely naming catalog resources.
package resid

import "github.com/pkg/errors"

// A Label identifies the kind of a stored resource. Labels partition
// the name space: two resources with different labels may share a name.
type Label string

// The resource kinds known to the catalog.
const (
	LabelUnknown          Label = ""
	LabelCatalog          Label = "catalog_info"
	LabelSchema           Label = "schema_info"
	LabelTable            Label = "table_info"
	LabelColumn           Label = "column_info"
	LabelVolume           Label = "volume_info"
	LabelCredential       Label = "credential_info"
	LabelExternalLocation Label = "external_location_info"
	LabelShare            Label = "share_info"
	LabelRecipient        Label = "recipient_info"
)

// allLabels is used by ParseLabel.
var allLabels = []Label{
	LabelCatalog, LabelSchema, LabelTable, LabelColumn, LabelVolume,
	LabelCredential, LabelExternalLocation, LabelShare, LabelRecipient,
}

// ParseLabel returns the Label for its string form or an error for
// unknown input.
func ParseLabel(raw string) (Label, error) {
	for _, l := range allLabels {
		if string(l) == raw {
			return l, nil
		}
	}
	return LabelUnknown, errors.Errorf("unknown resource label %q", raw)
}

// Ident returns a resource identifier for the label and reference.
func (l Label) Ident(ref Ref) Ident {
	return Ident{Label: l, Ref: ref}
}

func (l Label) String() string { return string(l) }
