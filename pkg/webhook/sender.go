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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/egress"
	"github.com/basenana/egress/pkg/netguard"
	"github.com/basenana/egress/pkg/types"
	"github.com/basenana/egress/utils"
	"github.com/basenana/egress/utils/logger"
)

const maxDrainBytes = 64 << 10

// DeliveryError is a transport failure or a non-2xx answer.
type DeliveryError struct {
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", types.ErrDeliveryFailed, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", types.ErrDeliveryFailed, e.Err)
}

func (e *DeliveryError) Is(target error) bool {
	return target == types.ErrDeliveryFailed
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type deliveryBody struct {
	Success  bool               `json:"success"`
	Type     types.WebhookEvent `json:"type"`
	ID       string             `json:"id,omitempty"`
	JobID    string             `json:"jobId,omitempty"`
	Data     interface{}        `json:"data"`
	Error    string             `json:"error,omitempty"`
	Metadata map[string]string  `json:"metadata"`
}

type Option func(s *Sender)

// WithSkipTLSVerification is the per-delivery certificate override.
func WithSkipTLSVerification(skip bool) Option {
	return func(s *Sender) {
		s.skipTLSVerification = skip
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Sender) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Sender) {
		if policy != nil {
			s.retry = policy
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(s *Sender) {
		s.userAgent = ua
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Sender) {
		s.logger = l
	}
}

// Sender is the delivery gate for one resolved webhook.
type Sender struct {
	resolved    *types.ResolvedWebhook
	dispatchers egress.Getter
	wctx        types.WebhookContext

	skipTLSVerification bool
	timeout             time.Duration
	retry               RetryPolicy
	userAgent           string
	logger              *zap.SugaredLogger
}

func NewSender(resolved *types.ResolvedWebhook, dispatchers egress.Getter, wctx types.WebhookContext, opts ...Option) *Sender {
	s := &Sender{
		resolved:    resolved,
		dispatchers: dispatchers,
		wctx:        wctx,
		timeout:     time.Duration(config.DefaultWebhookTimeout) * time.Second,
		retry:       noRetry{},
		userAgent:   config.VersionInfo().UserAgent(),
		logger:      logger.NewLogger("webhook"),
	}
	if wctx.V0 {
		s.timeout = time.Duration(config.DefaultLegacyWebhookTimeout) * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers event unless it is filtered out or blocked by policy.
// Policy blocks are logged and swallowed, transport failures are returned.
func (s *Sender) Send(ctx context.Context, event types.WebhookEvent, payload types.WebhookPayload) error {
	if s.resolved == nil {
		return nil
	}

	log := utils.ContextLog(ctx, s.logger).With(
		"teamId", s.wctx.TeamID, "jobId", s.wctx.JobID, "event", event)

	if !s.resolved.Config.Subscribed(event.Kind()) {
		log.Debugw("event not subscribed, skip")
		deliveryCounter.WithLabelValues(string(event), outcomeSkipped).Inc()
		return nil
	}

	selfHosted := s.resolved.SelfHosted()
	if !selfHosted && s.isPrivateLiteral() {
		log.Warnw("aborting webhook call to private address")
		deliveryCounter.WithLabelValues(string(event), outcomeBlocked).Inc()
		return nil
	}

	body, err := json.Marshal(s.buildBody(event, payload))
	if err != nil {
		return errors.Wrap(err, "encode webhook body failed")
	}

	var (
		start      = time.Now()
		deliveryID = uuid.New().String()
		dispatcher = s.dispatchers.GetDispatcher(types.DispatcherConfig{
			SkipTLSVerification: s.skipTLSVerification,
			AllowPrivateIPs:     selfHosted,
		})
	)
	defer func() {
		deliveryTimeUsage.WithLabelValues(string(event)).Observe(time.Since(start).Seconds())
	}()

	for attempt := 1; ; attempt++ {
		err = s.post(ctx, dispatcher, body, deliveryID)
		if err == nil {
			log.Debugw("webhook delivered", "delivery", deliveryID, "attempt", attempt)
			deliveryCounter.WithLabelValues(string(event), outcomeDelivered).Inc()
			return nil
		}

		if egress.IsInsecureConnection(err) && !selfHosted {
			log.Warnw("webhook destination blocked by private address policy", "delivery", deliveryID)
			deliveryCounter.WithLabelValues(string(event), outcomeBlocked).Inc()
			return nil
		}

		delay, again := s.retry.NextDelay(attempt, err)
		if !again || ctx.Err() != nil {
			log.Errorw("webhook delivery failed", "delivery", deliveryID, "attempt", attempt, "err", err)
			deliveryCounter.WithLabelValues(string(event), outcomeFailed).Inc()
			return err
		}

		log.Infow("webhook delivery failed, retry later", "delivery", deliveryID, "attempt", attempt, "delay", delay.String(), "err", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			deliveryCounter.WithLabelValues(string(event), outcomeFailed).Inc()
			return &DeliveryError{Err: ctx.Err()}
		}
	}
}

func (s *Sender) isPrivateLiteral() bool {
	u, err := url.Parse(s.resolved.Config.URL)
	if err != nil {
		return false
	}
	return netguard.IsPrivate(u.Hostname())
}

func (s *Sender) buildBody(event types.WebhookEvent, payload types.WebhookPayload) deliveryBody {
	body := deliveryBody{
		Success:  payload.Success,
		Type:     event,
		Data:     payload.Data,
		Error:    payload.Error,
		Metadata: s.resolved.Config.Metadata,
	}
	if body.Metadata == nil {
		body.Metadata = map[string]string{}
	}
	if s.wctx.V0 {
		body.JobID = s.wctx.JobID
	} else {
		body.ID = s.wctx.JobID
	}
	return body
}

func (s *Sender) post(ctx context.Context, dispatcher *egress.Dispatcher, body []byte, deliveryID string) error {
	ctx, canF := context.WithTimeout(ctx, s.timeout)
	defer canF()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.resolved.Config.URL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	for k, v := range s.resolved.Config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(DeliveryHeader, deliveryID)
	if s.resolved.HasSecret() {
		req.Header.Set(SignatureHeader, Sign(*s.resolved.Secret, body))
	}

	resp, err := dispatcher.Do(req)
	if err != nil {
		if egress.IsInsecureConnection(err) {
			return err
		}
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode}
	}
	return nil
}
