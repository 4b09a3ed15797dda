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
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/netguard"
	"github.com/basenana/egress/pkg/types"
)

var (
	secureCfg     = types.DispatcherConfig{}
	selfHostedCfg = types.DispatcherConfig{AllowPrivateIPs: true}
)

type hitServer struct {
	*httptest.Server
	hits int32
}

func newHitServer(handler http.HandlerFunc) *hitServer {
	hs := &hitServer{}
	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hs.hits, 1)
		handler(w, r)
	}))
	return hs
}

func (h *hitServer) Hits() int32 {
	return atomic.LoadInt32(&h.hits)
}

func (h *hitServer) AddrPort() netip.AddrPort {
	return netip.MustParseAddrPort(strings.TrimPrefix(h.URL, "http://"))
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func get(d *Dispatcher, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(context.TODO(), http.MethodGet, url, nil)
	Expect(err).Should(BeNil())
	resp, err := d.Do(req)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return resp, err
}

type fakeResolver map[string][]netip.Addr

func (f fakeResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	addrs, ok := f[host]
	if !ok {
		return nil, fmt.Errorf("no such host %s", host)
	}
	return addrs, nil
}

var _ = Describe("Factory.GetDispatcher", func() {
	It("should return the same instance for the same config", func() {
		f, err := NewFactory(nil)
		Expect(err).Should(BeNil())

		seen := map[*Dispatcher]DispatcherKey{}
		for _, key := range allKeys {
			cfg := types.DispatcherConfig{SkipTLSVerification: key.SkipTLSVerification, AllowPrivateIPs: key.AllowPrivateIPs}
			d := f.GetDispatcher(cfg)
			Expect(d).Should(BeIdenticalTo(f.GetDispatcher(cfg)))
			Expect(d.Key()).Should(Equal(key))
			seen[d] = key
		}
		Expect(seen).Should(HaveLen(4))
	})

	It("should default to the secure variant", func() {
		f, err := NewFactory(nil)
		Expect(err).Should(BeNil())
		Expect(f.GetDispatcher(types.DispatcherConfig{}).Key()).Should(Equal(DispatcherKey{}))
		Expect(f.GetDispatcher(types.DispatcherConfig{}).Key().String()).Should(Equal("secure"))
	})
})

var _ = Describe("Dispatcher private address enforcement", func() {
	var (
		f   *Factory
		srv *hitServer
	)

	BeforeEach(func() {
		var err error
		f, err = NewFactory(nil)
		Expect(err).Should(BeNil())
		srv = newHitServer(okHandler)
	})

	AfterEach(func() {
		srv.Close()
		f.CloseIdleConnections()
	})

	It("should refuse loopback destinations before any byte is sent", func() {
		before := testutil.ToFloat64(connectionBlockedCounter.WithLabelValues("secure"))

		_, err := get(f.GetDispatcher(secureCfg), srv.URL)
		Expect(err).ShouldNot(BeNil())
		Expect(IsInsecureConnection(err)).Should(BeTrue())
		Expect(srv.Hits()).Should(Equal(int32(0)))
		Expect(testutil.ToFloat64(connectionBlockedCounter.WithLabelValues("secure"))).Should(BeNumerically(">", before))
	})

	It("should refuse host names resolving to loopback", func() {
		_, err := get(f.GetDispatcher(secureCfg), strings.Replace(srv.URL, "127.0.0.1", "localhost", 1))
		Expect(IsInsecureConnection(err)).Should(BeTrue())
		Expect(srv.Hits()).Should(Equal(int32(0)))
	})

	It("should reach private destinations through the self-hosted variant", func() {
		resp, err := get(f.GetDispatcher(selfHostedCfg), srv.URL)
		Expect(err).Should(BeNil())
		Expect(resp.StatusCode).Should(Equal(http.StatusOK))
		Expect(srv.Hits()).Should(Equal(int32(1)))
	})

	It("should re-validate every redirect hop", func() {
		target := newHitServer(okHandler)
		defer target.Close()
		entry := newHitServer(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, target.URL+"/landing", http.StatusFound)
		})
		defer entry.Close()

		strict, err := NewFactory(nil, WithGuardOptions(netguard.WithAllowedAddrs(entry.AddrPort())))
		Expect(err).Should(BeNil())

		_, err = get(strict.GetDispatcher(secureCfg), entry.URL)
		Expect(IsInsecureConnection(err)).Should(BeTrue())
		Expect(entry.Hits()).Should(Equal(int32(1)))
		Expect(target.Hits()).Should(Equal(int32(0)))
	})
})

var _ = Describe("Dispatcher redirects", func() {
	It("should follow redirects up to the cap and fail beyond it", func() {
		var loop *hitServer
		loop = newHitServer(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, loop.URL+"/again", http.StatusFound)
		})
		defer loop.Close()

		f, err := NewFactory(nil, WithMaxRedirects(3))
		Expect(err).Should(BeNil())

		_, err = get(f.GetDispatcher(selfHostedCfg), loop.URL)
		Expect(err).ShouldNot(BeNil())
		Expect(IsTooManyRedirects(err)).Should(BeTrue())
		Expect(IsInsecureConnection(err)).Should(BeFalse())
		Expect(loop.Hits()).Should(Equal(int32(4)))
	})

	It("should follow a long chain under the default cap", func() {
		var (
			chain *hitServer
			count int32
		)
		chain = newHitServer(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&count, 1) <= 20 {
				http.Redirect(w, r, chain.URL+"/next", http.StatusFound)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		defer chain.Close()

		f, err := NewFactory(nil)
		Expect(err).Should(BeNil())
		resp, err := get(f.GetDispatcher(selfHostedCfg), chain.URL)
		Expect(err).Should(BeNil())
		Expect(resp.StatusCode).Should(Equal(http.StatusNoContent))
	})
})

var _ = Describe("Dispatcher cookies", func() {
	It("should share cookies across requests of one dispatcher only", func() {
		var lastCookie atomic.Value
		lastCookie.Store("")
		srv := newHitServer(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/set" {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
				return
			}
			if c, err := r.Cookie("session"); err == nil {
				lastCookie.Store(c.Value)
				return
			}
			lastCookie.Store("")
		})
		defer srv.Close()

		f, err := NewFactory(nil)
		Expect(err).Should(BeNil())

		_, err = get(f.GetDispatcher(selfHostedCfg), srv.URL+"/set")
		Expect(err).Should(BeNil())

		_, err = get(f.GetDispatcher(selfHostedCfg), srv.URL+"/check")
		Expect(err).Should(BeNil())
		Expect(lastCookie.Load()).Should(Equal("abc"))

		_, err = get(f.GetDispatcher(types.DispatcherConfig{AllowPrivateIPs: true, SkipTLSVerification: true}), srv.URL+"/check")
		Expect(err).Should(BeNil())
		Expect(lastCookie.Load()).Should(Equal(""))
	})
})

var _ = Describe("Dispatcher TLS verification", func() {
	It("should verify certificates unless the variant skips it", func() {
		srv := httptest.NewTLSServer(http.HandlerFunc(okHandler))
		defer srv.Close()

		f, err := NewFactory(nil)
		Expect(err).Should(BeNil())

		_, err = get(f.GetDispatcher(selfHostedCfg), srv.URL)
		Expect(err).ShouldNot(BeNil())
		Expect(IsInsecureConnection(err)).Should(BeFalse())

		resp, err := get(f.GetDispatcher(types.DispatcherConfig{AllowPrivateIPs: true, SkipTLSVerification: true}), srv.URL)
		Expect(err).Should(BeNil())
		Expect(resp.StatusCode).Should(Equal(http.StatusOK))
	})
})

var _ = Describe("Dispatcher upstream proxy", func() {
	var (
		proxy     *hitServer
		seenURI   atomic.Value
		seenAuth  atomic.Value
		proxyCfg  *config.Proxy
		guardOpts = netguard.WithResolver(fakeResolver{
			"public.test":   {netip.MustParseAddr("93.184.216.34")},
			"internal.test": {netip.MustParseAddr("10.1.2.3")},
		})
	)

	BeforeEach(func() {
		proxy = newHitServer(func(w http.ResponseWriter, r *http.Request) {
			seenURI.Store(r.RequestURI)
			seenAuth.Store(r.Header.Get("Proxy-Authorization"))
			w.WriteHeader(http.StatusAccepted)
		})
		proxyCfg = &config.Proxy{
			Server:   strings.TrimPrefix(proxy.URL, "http://"),
			Username: "user",
			Password: "pass",
		}
	})

	AfterEach(func() {
		proxy.Close()
	})

	It("should tunnel public destinations with basic credentials", func() {
		f, err := NewFactory(proxyCfg, WithGuardOptions(guardOpts))
		Expect(err).Should(BeNil())

		resp, err := get(f.GetDispatcher(secureCfg), "http://public.test/page")
		Expect(err).Should(BeNil())
		Expect(resp.StatusCode).Should(Equal(http.StatusAccepted))
		Expect(seenURI.Load()).Should(Equal("http://public.test/page"))
		Expect(seenAuth.Load()).Should(Equal("Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))))
	})

	It("should refuse private destinations before contacting the proxy", func() {
		f, err := NewFactory(proxyCfg, WithGuardOptions(guardOpts))
		Expect(err).Should(BeNil())

		_, err = get(f.GetDispatcher(secureCfg), "http://internal.test/admin")
		Expect(errors.Is(err, types.ErrInsecureConnection)).Should(BeTrue())
		Expect(proxy.Hits()).Should(Equal(int32(0)))
	})

	It("should let the self-hosted variant tunnel private destinations", func() {
		f, err := NewFactory(proxyCfg, WithGuardOptions(guardOpts))
		Expect(err).Should(BeNil())

		_, err = get(f.GetDispatcher(selfHostedCfg), "http://internal.test/admin")
		Expect(err).Should(BeNil())
		Expect(proxy.Hits()).Should(Equal(int32(1)))
	})
})

var _ = Describe("Dispatcher https upstream proxy", func() {
	var (
		proxy     *httptest.Server
		seen      atomic.Value
		guardOpts = netguard.WithResolver(fakeResolver{
			"public.test": {netip.MustParseAddr("93.184.216.34")},
		})
	)

	BeforeEach(func() {
		seen.Store("")
		proxy = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen.Store(r.RequestURI + " " + r.Header.Get("Proxy-Authorization"))
			w.WriteHeader(http.StatusAccepted)
		}))
	})

	AfterEach(func() {
		proxy.Close()
	})

	newProxyFactory := func(skipVerify bool) *Factory {
		f, err := NewFactory(&config.Proxy{
			Server:              proxy.URL,
			Username:            "u",
			Password:            "p",
			SkipTLSVerification: skipVerify,
		}, WithGuardOptions(guardOpts))
		Expect(err).Should(BeNil())
		return f
	}

	It("should verify the proxy certificate by default", func() {
		_, err := get(newProxyFactory(false).GetDispatcher(secureCfg), "http://public.test/x")
		Expect(err).ShouldNot(BeNil())
		Expect(IsInsecureConnection(err)).Should(BeFalse())

		var certErr *tls.CertificateVerificationError
		Expect(errors.As(err, &certErr)).Should(BeTrue())
		Expect(seen.Load()).Should(Equal(""))
	})

	It("should tunnel through a proxy whose certificate check is skipped", func() {
		resp, err := get(newProxyFactory(true).GetDispatcher(secureCfg), "http://public.test/x")
		Expect(err).Should(BeNil())
		Expect(resp.StatusCode).Should(Equal(http.StatusAccepted))
		Expect(seen.Load()).Should(Equal("http://public.test/x Basic " + base64.StdEncoding.EncodeToString([]byte("u:p"))))
	})
})

var _ = Describe("Probe", func() {
	var (
		f   *Factory
		srv *hitServer
	)

	BeforeEach(func() {
		var err error
		f, err = NewFactory(nil)
		Expect(err).Should(BeNil())
		srv = newHitServer(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})

	AfterEach(func() {
		srv.Close()
		f.CloseIdleConnections()
	})

	It("should report a blocked destination", func() {
		result := Probe(context.TODO(), f.GetDispatcher(secureCfg), srv.URL)
		Expect(result.Blocked).Should(BeTrue())
		Expect(result.Reachable).Should(BeFalse())
		Expect(result.Variant).Should(Equal("secure"))
		Expect(result.Duration).ShouldNot(BeEmpty())
		Expect(srv.Hits()).Should(Equal(int32(0)))
	})

	It("should report the status of a reachable destination", func() {
		result := Probe(context.TODO(), f.GetDispatcher(selfHostedCfg), srv.URL)
		Expect(result.Blocked).Should(BeFalse())
		Expect(result.Reachable).Should(BeTrue())
		Expect(result.StatusCode).Should(Equal(http.StatusTeapot))
	})

	It("should report malformed urls", func() {
		result := Probe(context.TODO(), f.GetDispatcher(secureCfg), "http://[::1")
		Expect(result.Blocked).Should(BeFalse())
		Expect(result.Error).ShouldNot(BeEmpty())
	})
})
