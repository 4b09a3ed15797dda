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

package types

import "strings"

// EventKind is the subscription granularity of a webhook.
type EventKind string

const (
	EventKindStarted   EventKind = "started"
	EventKindPage      EventKind = "page"
	EventKindCompleted EventKind = "completed"
	EventKindFailed    EventKind = "failed"
)

// AllEventKinds is ordered the way self-hosted defaults are reported.
var AllEventKinds = []EventKind{
	EventKindCompleted,
	EventKindFailed,
	EventKindPage,
	EventKindStarted,
}

func (k EventKind) Valid() bool {
	switch k {
	case EventKindStarted, EventKindPage, EventKindCompleted, EventKindFailed:
		return true
	}
	return false
}

// WebhookEvent is the fully qualified lifecycle event, e.g. crawl.completed.
type WebhookEvent string

const (
	CrawlStarted   WebhookEvent = "crawl.started"
	CrawlPage      WebhookEvent = "crawl.page"
	CrawlCompleted WebhookEvent = "crawl.completed"
	CrawlFailed    WebhookEvent = "crawl.failed"

	BatchScrapeStarted   WebhookEvent = "batch_scrape.started"
	BatchScrapePage      WebhookEvent = "batch_scrape.page"
	BatchScrapeCompleted WebhookEvent = "batch_scrape.completed"
	BatchScrapeFailed    WebhookEvent = "batch_scrape.failed"

	ExtractStarted   WebhookEvent = "extract.started"
	ExtractCompleted WebhookEvent = "extract.completed"
	ExtractFailed    WebhookEvent = "extract.failed"
)

// Kind returns the subscription kind, the section after the first dot.
func (e WebhookEvent) Kind() EventKind {
	_, kind, found := strings.Cut(string(e), ".")
	if !found {
		return EventKind(e)
	}
	return EventKind(kind)
}

type WebhookConfig struct {
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers"`
	Metadata map[string]string `json:"metadata"`
	Events   []EventKind       `json:"events"`
}

func (c WebhookConfig) Subscribed(kind EventKind) bool {
	for _, k := range c.Events {
		if k == kind {
			return true
		}
	}
	return false
}

// ResolvedWebhook is computed per delivery request and never persisted.
// IsSelfHosted is nil for explicit or team provided configs.
type ResolvedWebhook struct {
	Config       WebhookConfig `json:"config"`
	Secret       *string       `json:"secret,omitempty"`
	IsSelfHosted *bool         `json:"isSelfHosted,omitempty"`
}

func (r *ResolvedWebhook) SelfHosted() bool {
	return r != nil && r.IsSelfHosted != nil && *r.IsSelfHosted
}

func (r *ResolvedWebhook) HasSecret() bool {
	return r != nil && r.Secret != nil && *r.Secret != ""
}

// WebhookContext identifies the owner of a delivery for logging only.
type WebhookContext struct {
	TeamID string `json:"teamId"`
	JobID  string `json:"jobId"`
	V0     bool   `json:"v0"`
}

type WebhookPayload struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JobEvent is what the job subsystem publishes for webhook fan-out.
type JobEvent struct {
	ID                  string         `json:"id"`
	Event               WebhookEvent   `json:"event"`
	Context             WebhookContext `json:"context"`
	Payload             WebhookPayload `json:"payload"`
	Webhook             *WebhookConfig `json:"webhook,omitempty"`
	SkipTLSVerification bool           `json:"skipTlsVerification,omitempty"`
}
