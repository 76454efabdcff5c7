/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package connect

import (
	"fmt"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
)

// Initialize registers the Client as instance id of count and blocks until
// all count instances have registered. The first participant fixes count for
// the life of the arena; a later participant with a different count fails
// with ErrInvalidArgument and leaves the arena unchanged.
//
// Registering an id that is already registered takes it over, which is how
// a restarted process rejoins; its tick starts again at 0.
func (c *Client) Initialize(id, count int32) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	if id < 0 || count < 1 || id >= count {
		return invalidArgument("instance %d of %d", id, count)
	}
	if _, err := arena.NewLayout(int(count), c.arena.Capacity()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !c.id.CompareAndSwap(unregistered, registering) {
		return invalidState("already initialized")
	}
	if err := c.register(id, count); err != nil {
		c.id.Store(unregistered)
		return err
	}
	c.id.Store(id)
	c.log.Store(c.logger().With("instance", id))
	c.events.Changed.Notify()

	return c.barrier(id, count)
}

func (c *Client) register(id, count int32) error {
	err := c.lock.WithWrite(func() error {
		st, err := c.arena.Load()
		if err != nil {
			return err
		}
		switch st.InstancesCount {
		case 0:
			agreed := arena.NewState(count)
			agreed.Values = st.Values
			agreed.Operations = st.Operations
			st = agreed
		case count:
		default:
			return invalidArgument("instance count %d disagrees with agreed count %d", count, st.InstancesCount)
		}

		if prev := st.Instances[id].Status; prev == arena.StatusNotInitialized || prev == arena.StatusInitialized {
			c.logger().Warn("taking over registered instance", "instance", id, "status", prev)
		}
		st.Instances[id].Status = arena.StatusNotInitialized
		st.Instances[id].Tick = 0
		return c.arena.Commit(st)
	})
	return closedErr(err)
}

// barrier waits until every instance has registered and then marks this one
// Initialized.
func (c *Client) barrier(id, count int32) error {
	for {
		var done bool
		var known int
		var snapshot uint32
		err := c.lock.WithWrite(func() error {
			instances, err := c.arena.Instances()
			if err != nil {
				return err
			}
			if len(instances) != int(count) {
				return invalidState("arena instance count changed to %d", len(instances))
			}
			if instances[id].Status == arena.StatusDeinitialized {
				return invalidState("deinitialized while waiting for peers")
			}
			known = arena.KnownOf(instances)
			if known == int(count) {
				done = true
				return c.arena.SetStatus(id, arena.StatusInitialized)
			}
			snapshot = c.events.Changed.Snapshot()
			return nil
		})
		if err != nil {
			return closedErr(err)
		}
		if done {
			c.events.Changed.Notify()
			c.logger().Info("initialized", "instances", count)
			return nil
		}

		c.logger().Debug("waiting for peers", "known", known, "instances", count)
		if err := c.wait(snapshot); err != nil {
			return err
		}
	}
}

// Deinitialize marks the instance Deinitialized. From then on no peer waits
// for it and none of its own calls wait for peers.
func (c *Client) Deinitialize() error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	id, err := c.requireID()
	if err != nil {
		return err
	}
	err = c.lock.WithWrite(func() error {
		st, err := c.arena.Status(id)
		if err != nil {
			return err
		}
		if st == arena.StatusDeinitialized {
			return invalidState("already deinitialized")
		}
		return c.arena.SetStatus(id, arena.StatusDeinitialized)
	})
	if err != nil {
		return closedErr(err)
	}
	c.events.Changed.Notify()
	c.logger().Info("deinitialized")
	return nil
}

func (c *Client) requireID() (int32, error) {
	id := c.id.Load()
	if id < 0 {
		return 0, invalidState("not initialized")
	}
	return id, nil
}
