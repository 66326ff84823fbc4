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

package stopper

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStopCancelsAfterGoroutinesExit(t *testing.T) {
	r := require.New(t)

	s := WithContext(context.Background())
	release := make(chan struct{})
	r.True(s.Go(func() error {
		<-release
		return nil
	}))

	s.Stop(time.Minute)
	r.True(s.IsStopping())
	select {
	case <-s.Done():
		r.Fail("canceled while a goroutine was still running")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	r.NoError(s.Wait())
	r.ErrorIs(context.Cause(s), ErrStopped)
}

func TestGoroutineErrorStops(t *testing.T) {
	r := require.New(t)

	s := WithContext(context.Background())
	boom := errors.New("boom")
	r.True(s.Go(func() error { return boom }))
	r.ErrorIs(s.Wait(), boom)

	// No new work is accepted once stopped.
	r.False(s.Go(func() error { return nil }))
}

func TestParentCancellationPropagates(t *testing.T) {
	r := require.New(t)

	parent, cancel := context.WithCancel(context.Background())
	s := WithContext(parent)
	r.Same(s, From(s))

	cancel()
	<-s.Stopping()
	r.NoError(s.Wait())
}

func TestBackgroundNeverStops(t *testing.T) {
	r := require.New(t)
	r.Same(Background(), From(context.Background()))
	Background().Stop(0)
	r.False(Background().IsStopping())
	r.NoError(Background().Wait())
}
