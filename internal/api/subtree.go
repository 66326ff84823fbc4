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

package api

import (
	"context"

	"github.com/openlake/catalogd/internal/types"
	"github.com/openlake/catalogd/internal/util/resid"
	log "github.com/sirupsen/logrus"
)

// childLabels lists the resource kinds nested under a container kind.
var childLabels = map[resid.Label][]resid.Label{
	resid.LabelCatalog: {resid.LabelSchema, resid.LabelTable, resid.LabelVolume},
	resid.LabelSchema:  {resid.LabelTable, resid.LabelVolume},
}

// hasChildren reports whether any resource lives under the container's
// name prefix.
func (s *Service) hasChildren(
	ctx context.Context, label resid.Label, name resid.Name,
) (bool, error) {
	for _, child := range childLabels[label] {
		page, err := s.Store.List(ctx, &types.ListRequest{
			Label:  child,
			Parent: name,
			Limit:  1,
		})
		if err != nil {
			return false, err
		}
		if len(page.Objects) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// deleteSubtree removes every resource under the container's name
// prefix, deepest kinds first. The sweep is best-effort: a child that
// vanishes concurrently does not abort the sweep.
func (s *Service) deleteSubtree(
	ctx context.Context, label resid.Label, name resid.Name,
) error {
	children := childLabels[label]
	for i := len(children) - 1; i >= 0; i-- {
		child := children[i]
		for {
			page, err := s.Store.List(ctx, &types.ListRequest{
				Label:  child,
				Parent: name,
			})
			if err != nil {
				return err
			}
			if len(page.Objects) == 0 {
				break
			}
			for _, obj := range page.Objects {
				if err := s.Store.Delete(ctx, obj.Ident()); err != nil && !types.IsNotFound(err) {
					return err
				}
				log.WithFields(log.Fields{
					"label": obj.Label,
					"name":  obj.Name,
				}).Debug("swept child resource")
			}
			if page.NextPageToken == "" {
				break
			}
		}
	}
	return nil
}

// guardedDelete implements the force-flag contract shared by catalog,
// schema, and external-location deletion.
func (s *Service) guardedDelete(
	ctx context.Context, label resid.Label, name resid.Name, force bool,
) error {
	if force {
		if err := s.deleteSubtree(ctx, label, name); err != nil {
			return err
		}
	} else {
		occupied, err := s.hasChildren(ctx, label, name)
		if err != nil {
			return err
		}
		if occupied {
			return types.Codef(types.InvalidArgument,
				"%s %q is not empty; pass force to delete anyway", label, name)
		}
	}
	return s.Store.Delete(ctx, label.Ident(resid.NameRef(name)))
}
