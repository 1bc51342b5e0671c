// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package platform implements a simulated accelerator for the native Go backend.
//
// Devices own an addressable global memory in which tensors are allocated.
// Kernels are launched asynchronously on streams. The programs of a launch
// run concurrently on the host.
package platform

import (
	"sync"

	"github.com/gx-org/backend/platform"
	"github.com/pkg/errors"
)

// Kind of the devices of the platform.
const Kind = "tilesim"

// Platform is a set of simulated devices.
type Platform struct {
	mu      sync.Mutex
	devices map[int]*Device
}

var _ platform.Platform = (*Platform)(nil)

// New returns a new platform.
func New() *Platform {
	return &Platform{devices: make(map[int]*Device)}
}

// Name of the platform.
func (plat *Platform) Name() string {
	return Kind
}

// GoDevice returns a device given its ordinal, creating it on first use.
func (plat *Platform) GoDevice(ordinal int) (*Device, error) {
	if ordinal < 0 {
		return nil, errors.Errorf("invalid device ordinal %d", ordinal)
	}
	plat.mu.Lock()
	defer plat.mu.Unlock()
	dev := plat.devices[ordinal]
	if dev == nil {
		dev = newDevice(plat, ordinal)
		plat.devices[ordinal] = dev
	}
	return dev, nil
}

// Device returns a device given its ordinal.
func (plat *Platform) Device(ordinal int) (platform.Device, error) {
	return plat.GoDevice(ordinal)
}
