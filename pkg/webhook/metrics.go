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

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "The count of webhook deliveries by outcome.",
		},
		[]string{"event", "outcome"},
	)
	deliveryTimeUsage = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "The time usage of a webhook delivery including retries.",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 6),
		},
		[]string{"event"},
	)
)

const (
	outcomeDelivered = "delivered"
	outcomeSkipped   = "skipped"
	outcomeBlocked   = "blocked"
	outcomeFailed    = "failed"
)

func init() {
	prometheus.MustRegister(
		deliveryCounter,
		deliveryTimeUsage,
	)
}
