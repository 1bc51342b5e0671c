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

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/platform"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tilejit/golang/backend/kernels"
	"github.com/pkg/errors"
)

// Tensor is a multi-dimensional array stored in the memory of a device.
type Tensor struct {
	device *Device
	addr   uint64
	shape  shape.Shape
}

var _ platform.DeviceHandle = (*Tensor)(nil)

// FromSlice allocates a tensor on a device and initializes it with values.
func FromSlice[T dtype.GoDataType](dev *Device, values []T, dims ...int) (*Tensor, error) {
	if len(dims) == 0 {
		dims = []int{len(values)}
	}
	array := kernels.ToArray(values, dims)
	return dev.send(array.Buffer(), array.Shape())
}

// ToSlice reads the values of a tensor.
func ToSlice[T dtype.GoDataType](t *Tensor) ([]T, error) {
	array, err := t.Array()
	if err != nil {
		return nil, err
	}
	return kernels.Values[T](array)
}

// Platform owning the tensor.
func (t *Tensor) Platform() platform.Platform {
	return t.device.plat
}

// Device on which the tensor is stored.
func (t *Tensor) Device() platform.Device {
	return t.device
}

// GoDevice returns the simulated device on which the tensor is stored.
func (t *Tensor) GoDevice() *Device {
	return t.device
}

// DType returns the data type of the elements of the tensor.
func (t *Tensor) DType() dtype.DataType {
	return t.shape.DType
}

// Shape of the tensor.
func (t *Tensor) Shape() *shape.Shape {
	return &t.shape
}

// Address of the first element of the tensor in the device memory.
func (t *Tensor) Address() uint64 {
	return t.addr
}

// View returns a tensor aliasing the memory of t starting at an element offset.
// The view is a vector covering the remaining elements of t.
func (t *Tensor) View(offset int) (*Tensor, error) {
	size := t.shape.Size()
	if offset < 0 || offset > size {
		return nil, errors.Errorf("offset %d out of range for tensor of %d elements", offset, size)
	}
	return &Tensor{
		device: t.device,
		addr:   t.addr + uint64(offset*dtype.Sizeof(t.shape.DType)),
		shape: shape.Shape{
			DType:       t.shape.DType,
			AxisLengths: []int{size - offset},
		},
	}, nil
}

// Array reads the content of the tensor from the device.
func (t *Tensor) Array() (kernels.Array, error) {
	data, err := t.device.Read(t.addr, t.shape.ByteSize())
	if err != nil {
		return nil, err
	}
	return kernels.NewArrayFromRaw(data, &t.shape)
}

// ToHost fetches the data of the tensor and writes it to a host buffer.
func (t *Tensor) ToHost(buf platform.HostBuffer) error {
	data, err := t.device.Read(t.addr, t.shape.ByteSize())
	if err != nil {
		return err
	}
	dst := buf.Acquire()
	defer buf.Release()
	if len(dst) != len(data) {
		return errors.Errorf("host buffer of %d bytes cannot receive %d bytes", len(dst), len(data))
	}
	copy(dst, data)
	return nil
}

// ToDevice copies the tensor to another device.
func (t *Tensor) ToDevice(dev platform.Device) (platform.DeviceHandle, error) {
	target, ok := dev.(*Device)
	if !ok {
		return nil, errors.Errorf("cross-platform transfers not implemented")
	}
	if target == t.device {
		return t, nil
	}
	data, err := t.device.Read(t.addr, t.shape.ByteSize())
	if err != nil {
		return nil, err
	}
	return target.send(data, &t.shape)
}

func (t *Tensor) String() string {
	array, err := t.Array()
	if err != nil {
		return fmt.Sprintf("tensor at %#x on %s: %v", t.addr, t.device, err)
	}
	return array.String()
}

// Dims returns the axis lengths of the tensor.
func (t *Tensor) Dims() []int {
	return slices.Clone(t.shape.AxisLengths)
}
