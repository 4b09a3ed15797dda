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

import "github.com/basenana/egress/pkg/types"

// DispatcherKey identifies one of the four dispatcher variants.
type DispatcherKey struct {
	SkipTLSVerification bool
	AllowPrivateIPs     bool
}

var allKeys = [4]DispatcherKey{
	{SkipTLSVerification: false, AllowPrivateIPs: false},
	{SkipTLSVerification: true, AllowPrivateIPs: false},
	{SkipTLSVerification: false, AllowPrivateIPs: true},
	{SkipTLSVerification: true, AllowPrivateIPs: true},
}

func KeyOf(cfg types.DispatcherConfig) DispatcherKey {
	return DispatcherKey{SkipTLSVerification: cfg.SkipTLSVerification, AllowPrivateIPs: cfg.AllowPrivateIPs}
}

func (k DispatcherKey) index() int {
	idx := 0
	if k.SkipTLSVerification {
		idx |= 1
	}
	if k.AllowPrivateIPs {
		idx |= 2
	}
	return idx
}

func (k DispatcherKey) String() string {
	name := "secure"
	if k.AllowPrivateIPs {
		name = "self-hosted"
	}
	if k.SkipTLSVerification {
		name += "-skip-tls"
	}
	return name
}
