/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package egress

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/basenana/egress/pkg/types"
)

// Dispatcher is an immutable HTTP client variant. Its cookie jar is shared
// by every request issued through it and is never cleared, callers needing
// per-job cookie isolation must bring their own store.
type Dispatcher struct {
	key       DispatcherKey
	client    *http.Client
	transport *http.Transport
	jar       http.CookieJar
	logger    *zap.SugaredLogger
}

func (d *Dispatcher) Key() DispatcherKey {
	return d.key
}

func (d *Dispatcher) Client() *http.Client {
	return d.client
}

func (d *Dispatcher) Jar() http.CookieJar {
	return d.jar
}

// Do issues req and follows redirects. A private destination on any hop
// fails the request with types.ErrInsecureConnection, it is never retried here.
func (d *Dispatcher) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := d.client.Do(req)

	outcome := outcomeSucceed
	if err != nil {
		outcome = outcomeFailed
		if IsInsecureConnection(err) {
			outcome = outcomeBlocked
		}
		d.logger.Debugw("outbound request failed", "host", req.URL.Host, "outcome", outcome, "err", err)
	}
	requestTimeUsage.WithLabelValues(d.key.String(), outcome).Observe(time.Since(start).Seconds())
	return resp, err
}

func IsInsecureConnection(err error) bool {
	return errors.Is(err, types.ErrInsecureConnection)
}

func IsTooManyRedirects(err error) bool {
	return errors.Is(err, types.ErrTooManyRedirects)
}
