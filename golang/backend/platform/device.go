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

package platform

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gx-org/backend/platform"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tilejit/golang/backend/kernels"
	"github.com/pkg/errors"
)

const (
	// AllocAlignment is the alignment in bytes of every allocation.
	AllocAlignment = 256

	baseAddress = 0x10000
)

type allocation struct {
	addr uint64
	data []byte
}

// Device is a simulated accelerator with its own global memory.
type Device struct {
	plat  *Platform
	index int

	mu     sync.RWMutex
	allocs []*allocation
	next   uint64

	streamMu sync.Mutex
	stream   *Stream
}

var (
	_ platform.Device = (*Device)(nil)
	_ kernels.Memory  = (*Device)(nil)
)

func newDevice(plat *Platform, index int) *Device {
	return &Device{plat: plat, index: index, next: baseAddress}
}

// Platform owning the device.
func (dev *Device) Platform() platform.Platform {
	return dev.plat
}

// GoPlatform returns the simulated platform owning the device.
func (dev *Device) GoPlatform() *Platform {
	return dev.plat
}

// Kind of the device.
func (dev *Device) Kind() string {
	return Kind
}

// Ordinal of the device in its platform.
func (dev *Device) Ordinal() int {
	return dev.index
}

func (dev *Device) String() string {
	return fmt.Sprintf("%s:%d", Kind, dev.index)
}

// Alloc allocates a zeroed tensor in the memory of the device.
func (dev *Device) Alloc(sh *shape.Shape) (*Tensor, error) {
	if _, err := kernels.FactoryFor(sh.DType); err != nil {
		return nil, err
	}
	size := sh.ByteSize()
	dev.mu.Lock()
	defer dev.mu.Unlock()
	alloc := &allocation{addr: dev.next, data: make([]byte, size)}
	dev.allocs = append(dev.allocs, alloc)
	dev.next += (uint64(size)/AllocAlignment + 1) * AllocAlignment
	return &Tensor{
		device: dev,
		addr:   alloc.addr,
		shape: shape.Shape{
			DType:       sh.DType,
			AxisLengths: slices.Clone(sh.AxisLengths),
		},
	}, nil
}

func (dev *Device) send(data []byte, sh *shape.Shape) (*Tensor, error) {
	if len(data) != sh.ByteSize() {
		return nil, errors.Errorf("buffer size is %d but shape %s requires %d bytes", len(data), sh.String(), sh.ByteSize())
	}
	t, err := dev.Alloc(sh)
	if err != nil {
		return nil, err
	}
	if err := dev.Write(t.addr, data); err != nil {
		return nil, err
	}
	return t, nil
}

// Send raw data to the device.
func (dev *Device) Send(buf []byte, sh *shape.Shape) (platform.DeviceHandle, error) {
	return dev.send(buf, sh)
}

// find returns the allocation containing the range [addr, addr+n).
// The caller must hold the lock of the device.
func (dev *Device) find(addr uint64, n int) ([]byte, error) {
	i, found := slices.BinarySearchFunc(dev.allocs, addr, func(a *allocation, addr uint64) int {
		switch {
		case a.addr > addr:
			return 1
		case a.addr+uint64(len(a.data)) <= addr:
			return -1
		}
		return 0
	})
	if !found {
		return nil, errors.Errorf("invalid address %#x on device %s", addr, dev)
	}
	alloc := dev.allocs[i]
	start := addr - alloc.addr
	if start+uint64(n) > uint64(len(alloc.data)) {
		return nil, errors.Errorf("access of %d bytes at %#x out of bounds of allocation [%#x, %#x) on device %s", n, addr, alloc.addr, alloc.addr+uint64(len(alloc.data)), dev)
	}
	return alloc.data[start : start+uint64(n)], nil
}

// Read returns a copy of n bytes at an address of the device memory.
func (dev *Device) Read(addr uint64, n int) ([]byte, error) {
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	data, err := dev.find(addr, n)
	if err != nil {
		return nil, err
	}
	return slices.Clone(data), nil
}

// Write copies data at an address of the device memory.
func (dev *Device) Write(addr uint64, data []byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dst, err := dev.find(addr, len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// Stream returns the current stream of the device.
func (dev *Device) Stream() *Stream {
	dev.streamMu.Lock()
	defer dev.streamMu.Unlock()
	if dev.stream == nil {
		dev.stream = dev.NewStream()
	}
	return dev.stream
}

// SetStream sets the current stream of the device.
func (dev *Device) SetStream(s *Stream) error {
	if s.dev != dev {
		return errors.Errorf("stream of device %s cannot be used on device %s", s.dev, dev)
	}
	dev.streamMu.Lock()
	defer dev.streamMu.Unlock()
	dev.stream = s
	return nil
}
