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

package resid

import (
	"encoding/json"
	"strings"
)

// A Name is an ordered sequence of identifier segments. Segments
// compose qualified names left-to-right, e.g. [catalog, schema, table].
// The zero value is the empty name.
type Name struct {
	segments []string
}

// NewName constructs a Name from individual segments.
func NewName(segments ...string) Name {
	return Name{segments: append([]string(nil), segments...)}
}

// ParseName splits a dotted string into a Name. Empty input yields the
// empty name. No unquoting is performed; the catalog API transports
// multi-segment names as dot-joined path parameters.
func ParseName(raw string) Name {
	if raw == "" {
		return Name{}
	}
	return Name{segments: strings.Split(raw, ".")}
}

// Append returns a new Name with additional trailing segments.
func (n Name) Append(segments ...string) Name {
	next := make([]string, 0, len(n.segments)+len(segments))
	next = append(next, n.segments...)
	next = append(next, segments...)
	return Name{segments: next}
}

// Empty returns true if the name has no segments.
func (n Name) Empty() bool { return len(n.segments) == 0 }

// Equal returns true if the two names have identical segments.
func (n Name) Equal(o Name) bool {
	if len(n.segments) != len(o.segments) {
		return false
	}
	for i := range n.segments {
		if n.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix returns true if the name starts with all segments of the
// prefix. The empty name is a prefix of every name.
func (n Name) HasPrefix(prefix Name) bool {
	if len(prefix.segments) > len(n.segments) {
		return false
	}
	for i := range prefix.segments {
		if n.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}

// Len returns the number of segments.
func (n Name) Len() int { return len(n.segments) }

// Segment returns the idx'th segment or an empty string if out of
// range.
func (n Name) Segment(idx int) string {
	if idx < 0 || idx >= len(n.segments) {
		return ""
	}
	return n.segments[idx]
}

// Segments returns a copy of the underlying segments.
func (n Name) Segments() []string {
	return append([]string(nil), n.segments...)
}

// String joins the segments with dots.
func (n Name) String() string { return strings.Join(n.segments, ".") }

// MarshalJSON encodes the name as its dotted string form.
func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON decodes a dotted string form.
func (n *Name) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = ParseName(raw)
	return nil
}

// Compare orders names segment-wise, shorter names first on ties. This
// is the ordering used for stable list pagination.
func Compare(a, b Name) int {
	l := len(a.segments)
	if len(b.segments) < l {
		l = len(b.segments)
	}
	for i := 0; i < l; i++ {
		if c := strings.Compare(a.segments[i], b.segments[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.segments) < len(b.segments):
		return -1
	case len(a.segments) > len(b.segments):
		return 1
	default:
		return 0
	}
}
