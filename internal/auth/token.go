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

package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"

	"github.com/openlake/catalogd/internal/api"
	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
)

// recipientTokens resolves bearer tokens minted for recipients by
// scanning the recipient records. The space of recipients is small;
// deployments with many thousands of recipients should move token
// lookup behind an index.
type recipientTokens struct {
	store types.ResourceStore
}

// RecipientTokens returns the authenticator for recipient bearer
// tokens.
func RecipientTokens(store types.ResourceStore) types.Authenticator {
	return &recipientTokens{store: store}
}

// Authenticate implements [types.Authenticator]. Tokens that match no
// recipient yield a nil recipient, not an error, so other
// authenticators may still claim them.
func (a *recipientTokens) Authenticate(
	ctx context.Context, token string,
) (*types.Recipient, error) {
	if !strings.HasPrefix(token, "dss_") {
		return nil, nil
	}
	now := time.Now().UnixMilli()
	pageToken := ""
	for {
		page, err := a.store.List(ctx, &types.ListRequest{
			Label:     resid.LabelRecipient,
			PageToken: pageToken,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			var info api.RecipientInfo
			if err := json.Unmarshal(obj.Properties, &info); err != nil {
				continue
			}
			for i := range info.Tokens {
				t := &info.Tokens[i]
				if subtle.ConstantTimeCompare(
					[]byte(t.TokenValue), []byte(token)) != 1 {
					continue
				}
				if t.ExpirationTime != 0 && t.ExpirationTime <= now {
					return nil, nil
				}
				return &types.Recipient{Name: info.Name}, nil
			}
		}
		if page.NextPageToken == "" {
			return nil, nil
		}
		pageToken = page.NextPageToken
	}
}
