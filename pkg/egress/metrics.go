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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectionBlockedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "egress_connections_blocked_total",
			Help: "The count of outbound connections refused because the destination is private.",
		},
		[]string{"variant"},
	)
	requestTimeUsage = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "egress_request_duration_seconds",
			Help:    "The time usage of outbound requests issued through a dispatcher.",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 6),
		},
		[]string{"variant", "outcome"},
	)
)

const (
	outcomeSucceed = "succeed"
	outcomeBlocked = "blocked"
	outcomeFailed  = "failed"
)

func init() {
	prometheus.MustRegister(
		connectionBlockedCounter,
		requestTimeUsage,
	)
}
