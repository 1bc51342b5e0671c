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
	"runtime"
	"sync"

	"github.com/gx-org/tilejit/golang/backend/kernels"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type (
	// Program is a compiled kernel which can be run by a device.
	Program interface {
		// Name of the kernel.
		Name() string
		// Run executes the program instance id of a launch grid.
		Run(mem kernels.Memory, id, grid [3]int, args []byte) error
	}

	// Launch is the execution of a program over a grid.
	Launch struct {
		Program Program
		// Grid is the number of program instances along each axis.
		Grid [3]int
		// Threads is the geometry of the thread group of every program instance.
		Threads [3]int
		// SharedMem is the number of bytes of shared memory of a program instance.
		SharedMem int
		// Args are the packed arguments of the kernel.
		Args []byte
	}

	// Stream executes launches in the order in which they have been enqueued.
	Stream struct {
		dev *Device

		mu       sync.Mutex
		idle     *sync.Cond
		queue    []Launch
		running  bool
		err      error
		launched int
	}
)

// NewStream returns a new stream for the device.
func (dev *Device) NewStream() *Stream {
	s := &Stream{dev: dev}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Device on which launches are executed.
func (s *Stream) Device() *Device {
	return s.dev
}

// Enqueue schedules a launch after all the launches already enqueued.
// It returns without waiting for the launch to complete.
func (s *Stream) Enqueue(l Launch) error {
	for axis, n := range l.Grid {
		if n < 1 {
			return errors.Errorf("invalid grid %v: axis %d has %d programs", l.Grid, axis, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, l)
	if !s.running {
		s.running = true
		go s.drain()
	}
	return nil
}

func (s *Stream) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		l := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		err := s.dev.run(l)

		s.mu.Lock()
		s.launched++
		if err != nil && s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
}

// Synchronize waits for all enqueued launches to complete.
// It returns the first error of the launches since the last synchronization.
func (s *Stream) Synchronize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running {
		s.idle.Wait()
	}
	err := s.err
	s.err = nil
	return err
}

// Launched returns the number of launches completed by the stream.
func (s *Stream) Launched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launched
}

// run executes all the programs of a launch concurrently.
func (dev *Device) run(l Launch) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for z := range l.Grid[2] {
		for y := range l.Grid[1] {
			for x := range l.Grid[0] {
				id := [3]int{x, y, z}
				g.Go(func() (err error) {
					defer func() {
						if r := recover(); r != nil {
							err = errors.Errorf("kernel %s: program %v of grid %v panicked: %v", l.Program.Name(), id, l.Grid, r)
						}
					}()
					if err := l.Program.Run(dev, id, l.Grid, l.Args); err != nil {
						return errors.Wrapf(err, "kernel %s: program %v of grid %v", l.Program.Name(), id, l.Grid)
					}
					return nil
				})
			}
		}
	}
	return g.Wait()
}
