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

package webhook

import (
	"time"
)

// RetryPolicy decides whether a failed attempt is tried again and when.
// attempt counts from 1.
type RetryPolicy interface {
	NextDelay(attempt int, err error) (time.Duration, bool)
}

type noRetry struct{}

func (noRetry) NextDelay(int, error) (time.Duration, bool) {
	return 0, false
}

type linearRetry struct {
	attempts int
	step     time.Duration
}

// NewLinearRetry allows up to attempts tries, waiting step*attempt in between.
func NewLinearRetry(attempts int, step time.Duration) RetryPolicy {
	if attempts <= 1 {
		return noRetry{}
	}
	return linearRetry{attempts: attempts, step: step}
}

func (l linearRetry) NextDelay(attempt int, err error) (time.Duration, bool) {
	if attempt >= l.attempts {
		return 0, false
	}
	return l.step * time.Duration(attempt), true
}
