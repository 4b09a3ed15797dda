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
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"

	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/netguard"
	"github.com/basenana/egress/pkg/types"
	"github.com/basenana/egress/utils/logger"
)

const (
	MaxRedirects = 5000

	defaultDialTimeout = 30 * time.Second
)

// Getter is what delivery code depends on.
type Getter interface {
	GetDispatcher(cfg types.DispatcherConfig) *Dispatcher
}

type Option func(o *factoryOption)

type factoryOption struct {
	guardOpts    []netguard.Option
	maxRedirects int
	dialTimeout  time.Duration
}

func WithGuardOptions(opts ...netguard.Option) Option {
	return func(o *factoryOption) {
		o.guardOpts = append(o.guardOpts, opts...)
	}
}

func WithMaxRedirects(n int) Option {
	return func(o *factoryOption) {
		o.maxRedirects = n
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *factoryOption) {
		o.dialTimeout = d
	}
}

// Factory owns the four dispatcher variants for the process lifetime.
type Factory struct {
	dispatchers [4]*Dispatcher
}

var _ Getter = &Factory{}

func NewFactory(proxyCfg *config.Proxy, opts ...Option) (*Factory, error) {
	fo := &factoryOption{maxRedirects: MaxRedirects, dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		opt(fo)
	}

	f := &Factory{}
	for _, key := range allKeys {
		d, err := newDispatcher(key, proxyCfg, fo)
		if err != nil {
			return nil, errors.Wrapf(err, "build %s dispatcher", key)
		}
		f.dispatchers[key.index()] = d
	}
	return f, nil
}

// GetDispatcher never allocates, the same config always yields the same instance.
func (f *Factory) GetDispatcher(cfg types.DispatcherConfig) *Dispatcher {
	return f.dispatchers[KeyOf(cfg).index()]
}

func (f *Factory) CloseIdleConnections() {
	for _, d := range f.dispatchers {
		d.transport.CloseIdleConnections()
	}
}

func newDispatcher(key DispatcherKey, proxyCfg *config.Proxy, fo *factoryOption) (*Dispatcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	variant := key.String()
	guardOpts := append([]netguard.Option{
		netguard.WithBlockHook(func(address string) {
			connectionBlockedCounter.WithLabelValues(variant).Inc()
		}),
	}, fo.guardOpts...)
	guard := netguard.NewGuard(guardOpts...)

	transport, err := newTransport(key, proxyCfg, guard, fo.dialTimeout)
	if err != nil {
		return nil, err
	}

	maxRedirects := fo.maxRedirects
	return &Dispatcher{
		key:       key,
		transport: transport,
		jar:       jar,
		logger:    logger.NewLogger("dispatcher").With("variant", variant),
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return errors.Wrapf(types.ErrTooManyRedirects, "stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}, nil
}

func newTransport(key DispatcherKey, proxyCfg *config.Proxy, guard *netguard.Guard, dialTimeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: key.SkipTLSVerification,
		},
	}

	if proxyCfg == nil {
		if !key.AllowPrivateIPs {
			dialer.Control = guard.Control
		}
		transport.DialContext = dialer.DialContext
		return transport, nil
	}

	proxyURL, err := proxyCfg.URL()
	if err != nil {
		return nil, errors.Wrap(err, "parse proxy url")
	}

	// the proxy itself is operator declared, only its targets are checked
	transport.DialContext = dialer.DialContext
	if proxyURL.Scheme == "https" {
		transport.DialContext = proxyTLSDialer(dialer, proxyURL, proxyCfg.SkipTLSVerification)
		plain := *proxyURL
		plain.Scheme = "http"
		proxyURL = &plain
	}

	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		if !key.AllowPrivateIPs {
			if err := guard.CheckHost(req.Context(), req.URL.Hostname()); err != nil {
				return nil, err
			}
		}
		return proxyURL, nil
	}
	return transport, nil
}

// proxyTLSDialer terminates TLS to the proxy with its own verification
// setting, the transport then speaks plain proxy protocol over it.
func proxyTLSDialer(dialer *net.Dialer, proxyURL *url.URL, skipVerify bool) func(ctx context.Context, network, addr string) (net.Conn, error) {
	tlsCfg := &tls.Config{
		ServerName:         proxyURL.Hostname(),
		InsecureSkipVerify: skipVerify,
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		tlsConn := tls.Client(conn, tlsCfg)
		if err = tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}
