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

package platform_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tilejit/golang/backend/kernels"
	"github.com/gx-org/tilejit/golang/backend/platform"
	"github.com/pkg/errors"
)

func newDevice(t *testing.T) *platform.Device {
	t.Helper()
	dev, err := platform.New().GoDevice(0)
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

func TestAllocAlignment(t *testing.T) {
	dev := newDevice(t)
	for _, n := range []int{1, 63, 64, 100} {
		tensor, err := dev.Alloc(&shape.Shape{DType: dtype.Float32, AxisLengths: []int{n}})
		if err != nil {
			t.Fatal(err)
		}
		if tensor.Address()%platform.AllocAlignment != 0 {
			t.Errorf("tensor of %d elements at %#x is not aligned on %d bytes", n, tensor.Address(), platform.AllocAlignment)
		}
	}
}

func TestTensorView(t *testing.T) {
	dev := newDevice(t)
	tensor, err := platform.FromSlice(dev, []int32{0, 1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	view, err := tensor.View(1)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := view.Address()-tensor.Address(), uint64(4); got != want {
		t.Errorf("view offset: got %d bytes want %d", got, want)
	}
	got, err := platform.ToSlice[int32](view)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{1, 2, 3, 4}, got); diff != "" {
		t.Errorf("unexpected view content (-want +got):\n%s", diff)
	}
	if _, err := tensor.View(6); err == nil {
		t.Errorf("expected an error for a view out of range")
	}
}

func TestOutOfBounds(t *testing.T) {
	dev := newDevice(t)
	tensor, err := platform.FromSlice(dev, []float32{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dev.Read(tensor.Address()+4, 8); err == nil {
		t.Errorf("expected an error when reading past the end of an allocation")
	}
	if err := dev.Write(1, []byte{0}); err == nil {
		t.Errorf("expected an error when writing at an invalid address")
	}
}

type recorder struct {
	name string
	mu   sync.Mutex
	log  *[]string
	ids  map[[3]int]bool
	fail bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Run(mem kernels.Memory, id, grid [3]int, args []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.Errorf("failure")
	}
	if r.ids == nil {
		r.ids = make(map[[3]int]bool)
		*r.log = append(*r.log, r.name)
	}
	r.ids[id] = true
	return nil
}

func TestStreamOrder(t *testing.T) {
	dev := newDevice(t)
	var log []string
	progs := []*recorder{
		{name: "first", log: &log},
		{name: "second", log: &log},
		{name: "third", log: &log},
	}
	s := dev.Stream()
	for _, p := range progs {
		if err := s.Enqueue(platform.Launch{Program: p, Grid: [3]int{4, 2, 1}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Synchronize(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, log); diff != "" {
		t.Errorf("launches not executed in order (-want +got):\n%s", diff)
	}
	for _, p := range progs {
		if len(p.ids) != 8 {
			t.Errorf("%s: %d programs executed, want 8", p.name, len(p.ids))
		}
	}
	if got := s.Launched(); got != 3 {
		t.Errorf("got %d launches want 3", got)
	}
}

func TestStreamError(t *testing.T) {
	dev := newDevice(t)
	var log []string
	s := dev.NewStream()
	if err := s.Enqueue(platform.Launch{Program: &recorder{name: "broken", log: &log, fail: true}, Grid: [3]int{1, 1, 1}}); err != nil {
		t.Fatal(err)
	}
	err := s.Synchronize()
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected an error naming the kernel, got %v", err)
	}
	if err := s.Synchronize(); err != nil {
		t.Errorf("error reported twice: %v", err)
	}
	if err := s.Enqueue(platform.Launch{Program: &recorder{name: "empty", log: &log}, Grid: [3]int{0, 1, 1}}); err == nil {
		t.Errorf("expected an error for an empty grid")
	}
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }

func (panicking) Run(mem kernels.Memory, id, grid [3]int, args []byte) error {
	var values []int32
	_ = values[id[0]]
	return nil
}

func TestStreamPanic(t *testing.T) {
	dev := newDevice(t)
	s := dev.NewStream()
	if err := s.Enqueue(platform.Launch{Program: panicking{}, Grid: [3]int{2, 1, 1}}); err != nil {
		t.Fatal(err)
	}
	err := s.Synchronize()
	if err == nil {
		t.Fatal("expected an error from a panicking program")
	}
	for _, want := range []string{"panicking", "panicked", "index out of range"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err.Error(), want)
		}
	}
	if err := s.Synchronize(); err != nil {
		t.Errorf("error reported twice: %v", err)
	}
}

func TestDeviceOrdinal(t *testing.T) {
	plat := platform.New()
	dev, err := plat.Device(2)
	if err != nil {
		t.Fatal(err)
	}
	if got := dev.Ordinal(); got != 2 {
		t.Errorf("got ordinal %d but want 2", got)
	}
	again, err := plat.GoDevice(2)
	if err != nil {
		t.Fatal(err)
	}
	if again != dev {
		t.Errorf("device 2 created twice")
	}
	if _, err := plat.GoDevice(-1); err == nil {
		t.Errorf("expected an error for a negative ordinal")
	}
}
