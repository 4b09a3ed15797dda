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
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/types"
)

var _ = Describe("Resolver.Resolve", func() {
	var ctx = context.TODO()

	Context("without self-hosted destination", func() {
		It("should return nothing", func() {
			r := NewResolver(config.SelfHosted{}, nil)
			resolved, err := r.Resolve(ctx, "team-1", "job-1", nil)
			Expect(err).Should(BeNil())
			Expect(resolved).Should(BeNil())
		})
	})

	Context("with self-hosted destination", func() {
		var r *Resolver

		BeforeEach(func() {
			r = NewResolver(config.SelfHosted{
				WebhookURL:        "https://hooks.example.com/{{JOB_ID}}/notify?job={{JOB_ID}}",
				WebhookHMACSecret: "s3cr3t",
			}, nil)
		})

		It("should substitute every job id placeholder", func() {
			resolved, err := r.Resolve(ctx, "team-1", "job-42", nil)
			Expect(err).Should(BeNil())
			Expect(resolved.Config.URL).Should(Equal("https://hooks.example.com/job-42/notify?job=job-42"))
		})

		It("should subscribe to every event with empty headers and metadata", func() {
			resolved, err := r.Resolve(ctx, "team-1", "job-42", nil)
			Expect(err).Should(BeNil())
			Expect(resolved.Config.Events).Should(Equal([]types.EventKind{
				types.EventKindCompleted, types.EventKindFailed, types.EventKindPage, types.EventKindStarted}))
			Expect(resolved.Config.Headers).Should(BeEmpty())
			Expect(resolved.Config.Metadata).Should(BeEmpty())
		})

		It("should mark the config self-hosted and carry the secret", func() {
			resolved, err := r.Resolve(ctx, "team-1", "job-42", nil)
			Expect(err).Should(BeNil())
			Expect(resolved.SelfHosted()).Should(BeTrue())
			Expect(resolved.HasSecret()).Should(BeTrue())
			Expect(*resolved.Secret).Should(Equal("s3cr3t"))
		})

		It("should not share the default event list between results", func() {
			a, _ := r.Resolve(ctx, "team-1", "job-a", nil)
			a.Config.Events[0] = types.EventKindPage
			b, _ := r.Resolve(ctx, "team-1", "job-b", nil)
			Expect(b.Config.Events[0]).Should(Equal(types.EventKindCompleted))
			Expect(types.AllEventKinds[0]).Should(Equal(types.EventKindCompleted))
		})

		It("should prefer an explicit config and leave it unmarked", func() {
			explicit := &types.WebhookConfig{
				URL:    "https://customer.example.com/hook",
				Events: []types.EventKind{types.EventKindCompleted},
			}
			resolved, err := r.Resolve(ctx, "team-1", "job-42", explicit)
			Expect(err).Should(BeNil())
			Expect(resolved.Config.URL).Should(Equal("https://customer.example.com/hook"))
			Expect(resolved.IsSelfHosted).Should(BeNil())
			Expect(resolved.SelfHosted()).Should(BeFalse())
			Expect(*resolved.Secret).Should(Equal("s3cr3t"))
		})
	})

	Context("with a team secret source", func() {
		It("should sign explicit webhooks with the team secret", func() {
			r := NewResolver(config.SelfHosted{WebhookHMACSecret: "global"}, mapSecrets{"team-1": "team-secret"})
			resolved, err := r.Resolve(ctx, "team-1", "job-1", &types.WebhookConfig{URL: "https://a.example.com"})
			Expect(err).Should(BeNil())
			Expect(*resolved.Secret).Should(Equal("team-secret"))
		})

		It("should leave the secret empty for unknown teams", func() {
			r := NewResolver(config.SelfHosted{}, mapSecrets{})
			resolved, err := r.Resolve(ctx, "team-x", "job-1", &types.WebhookConfig{URL: "https://a.example.com"})
			Expect(err).Should(BeNil())
			Expect(resolved.Secret).Should(BeNil())
			Expect(resolved.HasSecret()).Should(BeFalse())
		})

		It("should surface lookup failures", func() {
			r := NewResolver(config.SelfHosted{}, failingSecrets{})
			_, err := r.Resolve(ctx, "team-1", "job-1", &types.WebhookConfig{URL: "https://a.example.com"})
			Expect(err).ShouldNot(BeNil())
		})
	})
})

var _ = Describe("NewCachedSecretSource", func() {
	It("should hit the backing source once per team", func() {
		src := &countingSecrets{secrets: mapSecrets{"team-1": "abc"}}
		cached := NewCachedSecretSource(src, 16, time.Minute)

		for i := 0; i < 5; i++ {
			secret, err := cached.TeamSecret(context.TODO(), "team-1")
			Expect(err).Should(BeNil())
			Expect(secret).Should(Equal("abc"))
		}
		Expect(atomic.LoadInt32(&src.calls)).Should(Equal(int32(1)))
	})

	It("should cache missing teams as unsigned", func() {
		src := &countingSecrets{secrets: mapSecrets{}}
		cached := NewCachedSecretSource(src, 16, time.Minute)

		for i := 0; i < 3; i++ {
			secret, err := cached.TeamSecret(context.TODO(), "team-2")
			Expect(err).Should(BeNil())
			Expect(secret).Should(BeEmpty())
		}
		Expect(atomic.LoadInt32(&src.calls)).Should(Equal(int32(1)))
	})
})

type mapSecrets map[string]string

func (m mapSecrets) TeamSecret(ctx context.Context, teamID string) (string, error) {
	secret, ok := m[teamID]
	if !ok {
		return "", types.ErrNotFound
	}
	return secret, nil
}

type failingSecrets struct{}

func (failingSecrets) TeamSecret(ctx context.Context, teamID string) (string, error) {
	return "", errors.New("store unavailable")
}

type countingSecrets struct {
	secrets mapSecrets
	calls   int32
}

func (c *countingSecrets) TeamSecret(ctx context.Context, teamID string) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.secrets.TeamSecret(ctx, teamID)
}
