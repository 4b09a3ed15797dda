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

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/hyponet/eventbus"
	"go.uber.org/zap"

	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/egress"
	"github.com/basenana/egress/pkg/events"
	"github.com/basenana/egress/pkg/types"
	"github.com/basenana/egress/pkg/webhook"
	"github.com/basenana/egress/utils"
	"github.com/basenana/egress/utils/logger"
)

const retryStep = time.Second

// Notify turns published job events into webhook deliveries.
type Notify struct {
	resolver    *webhook.Resolver
	dispatchers egress.Getter
	limiter     *utils.ParallelLimiter
	cfg         config.Webhook

	listenerID string
	stopped    bool
	inflight   sync.WaitGroup
	mux        sync.Mutex
	logger     *zap.SugaredLogger
}

func NewNotify(resolver *webhook.Resolver, dispatchers egress.Getter, cfg config.Webhook) *Notify {
	return &Notify{
		resolver:    resolver,
		dispatchers: dispatchers,
		limiter:     utils.NewParallelLimiter(cfg.Parallel),
		cfg:         cfg,
		logger:      logger.NewLogger("notify"),
	}
}

// Start subscribes to every webhook topic on the event bus.
func (n *Notify) Start() {
	n.mux.Lock()
	defer n.mux.Unlock()
	if n.listenerID != "" {
		return
	}
	n.stopped = false
	n.listenerID = eventbus.Subscribe(events.TopicAllWebhooks, n.handleEvent)
}

// Stop unsubscribes and waits for in-flight deliveries.
func (n *Notify) Stop() {
	n.mux.Lock()
	n.stopped = true
	if n.listenerID != "" {
		eventbus.Unsubscribe(n.listenerID)
		n.listenerID = ""
	}
	n.mux.Unlock()
	n.inflight.Wait()
}

func (n *Notify) handleEvent(evt *types.JobEvent) {
	if evt == nil {
		return
	}
	n.mux.Lock()
	if n.stopped {
		n.mux.Unlock()
		n.logger.Warnw("notify stopped, job event dropped", "id", evt.ID, "event", evt.Event, "job", evt.Context.JobID)
		droppedEventCounter.WithLabelValues(string(evt.Event)).Inc()
		return
	}
	n.inflight.Add(1)
	n.mux.Unlock()

	defer n.inflight.Done()
	defer utils.Recover(func(err error) {
		n.logger.Errorw("webhook delivery panic", "event", evt.Event, "job", evt.Context.JobID, "err", err)
	})

	ctx := utils.WithTraceID(context.Background(), evt.ID)
	if err := n.Deliver(ctx, evt); err != nil {
		utils.ContextLog(ctx, n.logger).Warnw("deliver job event failed", "event", evt.Event, "job", evt.Context.JobID, "err", err)
	}
}

// Deliver resolves and sends one job event, bounded by the parallel limit.
func (n *Notify) Deliver(ctx context.Context, evt *types.JobEvent) error {
	if err := events.Validate(evt.Event); err != nil {
		return err
	}

	resolved, err := n.resolver.Resolve(ctx, evt.Context.TeamID, evt.Context.JobID, evt.Webhook)
	if err != nil {
		return err
	}
	if resolved == nil {
		utils.ContextLog(ctx, n.logger).Debugw("no webhook for job", "job", evt.Context.JobID)
		return nil
	}

	if err = n.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer n.limiter.Release()

	sender := webhook.NewSender(resolved, n.dispatchers, evt.Context, n.senderOptions(evt)...)
	return sender.Send(ctx, evt.Event, evt.Payload)
}

func (n *Notify) senderOptions(evt *types.JobEvent) []webhook.Option {
	timeout := n.cfg.Timeout
	if evt.Context.V0 {
		timeout = n.cfg.LegacyTimeout
	}
	return []webhook.Option{
		webhook.WithSkipTLSVerification(evt.SkipTLSVerification),
		webhook.WithTimeout(time.Duration(timeout) * time.Second),
		webhook.WithRetryPolicy(webhook.NewLinearRetry(n.cfg.MaxAttempts, retryStep)),
	}
}
