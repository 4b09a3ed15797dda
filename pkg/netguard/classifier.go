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
	"net/netip"
	"strings"

	"code.dny.dev/ssrf"
)

var (
	// only the prefix lists are consulted, ports and networks are the dialer's business
	registry = ssrf.New(ssrf.WithAnyPort(), ssrf.WithAnyNetwork())

	ipv4Broadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

	// shared address space and reserved blocks, regardless of registry version
	reservedPrefixes = []netip.Prefix{
		netip.MustParsePrefix("100.64.0.0/10"),
		netip.MustParsePrefix("192.0.0.0/24"),
		netip.MustParsePrefix("192.0.2.0/24"),
		netip.MustParsePrefix("192.88.99.0/24"),
		netip.MustParsePrefix("198.18.0.0/15"),
		netip.MustParsePrefix("198.51.100.0/24"),
		netip.MustParsePrefix("203.0.113.0/24"),
		netip.MustParsePrefix("240.0.0.0/4"),
		netip.MustParsePrefix("2001:db8::/32"),
	}
)

// IsPrivate reports whether address is anything but a globally routable
// unicast address. Input that does not parse as an IP literal is not private.
func IsPrivate(address string) bool {
	addr, ok := parseLiteral(address)
	if !ok {
		return false
	}
	return isPrivateAddr(addr)
}

func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.WithZone("")
	switch {
	case addr.Is4In6(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		addr == ipv4Broadcast,
		!addr.IsGlobalUnicast():
		return true
	}
	for _, prefix := range reservedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return registry.Safe("tcp", netip.AddrPortFrom(addr, 0).String(), nil) != nil
}

func parseLiteral(address string) (netip.Addr, bool) {
	address = strings.TrimSpace(address)
	address = strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	if address == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
