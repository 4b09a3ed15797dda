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

package utils

import (
	"context"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParallelLimiter", func() {
	It("should block beyond the limit until released", func() {
		l := NewParallelLimiter(2)
		Expect(l.Acquire(context.TODO())).Should(BeNil())
		Expect(l.Acquire(context.TODO())).Should(BeNil())

		ctx, canF := context.WithTimeout(context.TODO(), 50*time.Millisecond)
		defer canF()
		Expect(l.Acquire(ctx)).Should(Equal(context.DeadlineExceeded))

		l.Release()
		Expect(l.Acquire(context.TODO())).Should(BeNil())
	})

	It("should treat a non positive limit as one", func() {
		l := NewParallelLimiter(0)
		Expect(l.Acquire(context.TODO())).Should(BeNil())
		ctx, canF := context.WithTimeout(context.TODO(), 20*time.Millisecond)
		defer canF()
		Expect(l.Acquire(ctx)).ShouldNot(BeNil())
	})
})

var _ = Describe("Recover", func() {
	It("should stop a panic and hand it to the handlers", func() {
		var got error
		Expect(func() {
			defer Recover(func(err error) { got = err })
			panic("boom")
		}).ShouldNot(Panic())
		Expect(got).ShouldNot(BeNil())
		Expect(got.Error()).Should(ContainSubstring("boom"))
	})
})

var _ = Describe("trace context", func() {
	It("should reuse the request id header", func() {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "req-1")
		Expect(TraceID(NewApiContext(req))).Should(Equal("req-1"))
	})

	It("should generate a trace id when missing", func() {
		req := httptest.NewRequest("GET", "/", nil)
		Expect(TraceID(NewApiContext(req))).ShouldNot(BeEmpty())
		Expect(TraceID(context.TODO())).Should(BeEmpty())
	})
})
