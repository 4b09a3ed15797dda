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

package netguard

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/basenana/egress/pkg/types"
)

// InsecureConnectionError is returned when a destination resolves to a private address.
type InsecureConnectionError struct {
	Address string
}

func (e *InsecureConnectionError) Error() string {
	return fmt.Sprintf("%s: %s", types.ErrInsecureConnection, e.Address)
}

func (e *InsecureConnectionError) Unwrap() error {
	return types.ErrInsecureConnection
}

type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

type Option func(g *Guard)

// WithAllowedAddrs exempts exact operator declared endpoints from blocking.
func WithAllowedAddrs(addrs ...netip.AddrPort) Option {
	return func(g *Guard) {
		g.allowed = append(g.allowed, addrs...)
	}
}

func WithResolver(r Resolver) Option {
	return func(g *Guard) {
		g.resolver = r
	}
}

// WithBlockHook is called with every denied address.
func WithBlockHook(fn func(address string)) Option {
	return func(g *Guard) {
		g.onBlock = fn
	}
}

// Guard decides allow or deny for a resolved remote address before
// any byte is written to it. It is safe for concurrent use.
type Guard struct {
	allowed  []netip.AddrPort
	resolver Resolver
	onBlock  func(address string)
}

func NewGuard(opts ...Option) *Guard {
	g := &Guard{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Control has the signature of net.Dialer.Control, it runs after the
// socket is created and before connect.
func (g *Guard) Control(network, address string, _ syscall.RawConn) error {
	return g.CheckAddress(address)
}

// CheckAddress validates an ip:port pair. An unparseable pair is denied,
// the dialer never produces one for a destination it is about to connect.
func (g *Guard) CheckAddress(address string) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return g.deny(address)
	}
	for _, allowed := range g.allowed {
		if allowed.Addr().WithZone("") == ap.Addr().WithZone("") && allowed.Port() == ap.Port() {
			return nil
		}
	}
	if isPrivateAddr(ap.Addr()) {
		return g.deny(address)
	}
	return nil
}

// CheckHost resolves host and denies it if any of its addresses is private.
// It covers the proxied path where the dialer only sees the proxy.
func (g *Guard) CheckHost(ctx context.Context, host string) error {
	if addr, ok := parseLiteral(host); ok {
		if isPrivateAddr(addr) {
			return g.deny(host)
		}
		return nil
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("resolve %s failed: %w", host, err)
	}
	for _, addr := range addrs {
		if isPrivateAddr(addr) {
			return g.deny(host)
		}
	}
	return nil
}

func (g *Guard) deny(address string) error {
	if g.onBlock != nil {
		g.onBlock(address)
	}
	return &InsecureConnectionError{Address: address}
}
