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
	"context"
	"io"
	"net/http"
	"time"
)

type ProbeResult struct {
	URL        string `json:"url"`
	Variant    string `json:"variant"`
	Blocked    bool   `json:"blocked"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	Duration   string `json:"duration"`
	Error      string `json:"error,omitempty"`
}

// Probe issues a GET through d and reports whether the address policy let it out.
func Probe(ctx context.Context, d *Dispatcher, target string) (result ProbeResult) {
	start := time.Now()
	result = ProbeResult{URL: target, Variant: d.Key().String()}
	defer func() {
		result.Duration = time.Since(start).String()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	resp, err := d.Do(req)
	if err != nil {
		result.Blocked = IsInsecureConnection(err)
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result.Reachable = true
	result.StatusCode = resp.StatusCode
	return result
}
