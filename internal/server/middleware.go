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
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	joonix "github.com/joonix/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/openlake/catalogd/internal/types"
)

var (
	httpCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_response_codes_total",
		Help: "HTTP response codes returned to clients",
	}, []string{"code"})
	httpLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "http_latency_seconds",
		Help:    "the length of time it took to serve a request",
		Buckets: prometheus.DefBuckets,
	})
)

type recipientKey struct{}

// recipientFrom returns the authenticated recipient stored by the
// auth middleware.
func recipientFrom(ctx context.Context) *types.Recipient {
	if recipient, ok := ctx.Value(recipientKey{}).(*types.Recipient); ok {
		return recipient
	}
	return types.AnonymousRecipient()
}

// bearerToken returns the bearer authorization header associated with
// the request, or the empty string.
func bearerToken(req *http.Request) string {
	raw := req.Header.Get("Authorization")
	if strings.HasPrefix(raw, "Bearer ") {
		return raw[7:]
	}
	return ""
}

// authenticate resolves the bearer token before any routing decision
// is made. A rejected token fails with 401 regardless of the path.
func authenticate(auth types.Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recipient, err := auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if recipient == nil {
			writeError(w, types.Codef(types.Unauthenticated, "invalid credentials"))
			return
		}
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), recipientKey{}, recipient)))
	})
}

type responseSpy struct {
	http.ResponseWriter
	statusCode int
	count      int64
}

var _ http.ResponseWriter = (*responseSpy)(nil)

func (s *responseSpy) Write(buf []byte) (int, error) {
	if s.statusCode == 0 {
		s.statusCode = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(buf)
	s.count += int64(n)
	return n, err
}

func (s *responseSpy) WriteHeader(statusCode int) {
	s.statusCode = statusCode
	s.ResponseWriter.WriteHeader(statusCode)
}

// logWrapper wraps the given handler with performance monitoring and
// logging.
func logWrapper(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		spy := &responseSpy{ResponseWriter: w}

		start := time.Now()
		defer func() {
			latency := time.Since(start)
			// Per https://github.com/joonix/log#log
			msg := log.WithField("httpRequest", &joonix.HTTPRequest{
				Latency:      latency,
				Status:       spy.statusCode,
				Request:      r,
				ResponseSize: spy.count,
			})

			p := recover()
			if p == nil {
				httpCodes.WithLabelValues(strconv.Itoa(spy.statusCode)).Inc()
				httpLatency.Observe(latency.Seconds())
				msg.Debug()
				return
			}

			// Trigger shutdown, but allow the goroutine to finish
			// normally so the graceful drain can run.
			if err, ok := p.(error); ok {
				msg = msg.WithError(err)
			}
			go msg.Fatal("fatal error in request handler")
		}()

		h.ServeHTTP(spy, r)
	})
}
