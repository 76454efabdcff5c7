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
	"golang.org/x/text/unicode/norm"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/journal"
)

// canonicalName normalises name to NFC so that every process spells a
// variable the same way.
func canonicalName(name string) (string, error) {
	if name == "" {
		return "", invalidArgument("empty variable name")
	}
	return norm.NFC.String(name), nil
}

// mayProceed evaluates the tick gate for instance id. A deinitialized
// instance never waits; any other waits while the slowest live instance is
// more than the sync tolerance behind it.
func (c *Client) mayProceed(id int32) (bool, error) {
	instances, err := c.arena.Instances()
	if err != nil {
		return false, err
	}
	if int(id) >= len(instances) {
		return false, invalidState("instance %d missing from arena of %d", id, len(instances))
	}
	self := instances[id]
	if self.Status == arena.StatusDeinitialized {
		return true, nil
	}
	slowest := int64(arena.SlowestOf(instances))
	return slowest >= int64(self.Tick)-int64(c.opts.SyncTolerance), nil
}

// NextTick records tick as the instance's current tick and forwards balance
// and equity to the journal. Ticks may not decrease while the instance is
// Initialized.
func (c *Client) NextTick(tick int32, balance, equity float64) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	id, err := c.requireID()
	if err != nil {
		return err
	}

	err = c.lock.WithWrite(func() error {
		status, err := c.arena.Status(id)
		if err != nil {
			return err
		}
		current, err := c.arena.Tick(id)
		if err != nil {
			return err
		}
		if status == arena.StatusInitialized && tick < current {
			return invalidArgument("tick %d precedes current tick %d", tick, current)
		}
		return c.arena.SetTick(id, tick)
	})
	if err != nil {
		return closedErr(err)
	}
	c.events.Changed.Notify()

	rec := journal.Record{
		Session:    c.session.String(),
		InstanceID: id,
		Tick:       tick,
		Balance:    balance,
		Equity:     equity,
	}
	if err := c.journal.Record(rec); err != nil {
		c.logger().Warn("journal record failed", "tick", tick, "error", err)
	}
	return nil
}

// DeclareVariable sets the aggregation applied when name is read. It may be
// changed at any time; the last declaration wins. An operation without an
// implementation is stored and makes later reads and writes fail with
// ErrUnimplementedOperation.
func (c *Client) DeclareVariable(name string, op arena.Operation) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	if _, err := c.requireID(); err != nil {
		return err
	}
	name, err := canonicalName(name)
	if err != nil {
		return err
	}

	err = c.lock.WithWrite(func() error {
		st, err := c.arena.Load()
		if err != nil {
			return err
		}
		st.Operations[name] = op
		return c.arena.Commit(st)
	})
	if err != nil {
		return closedErr(err)
	}
	c.events.Changed.Notify()
	c.logger().Debug("declared variable", "variable", name, "operation", op)
	return nil
}

// GetVariable returns the visible value of name once the instance is within
// the sync tolerance of the slowest live instance, waiting as long as it
// takes. A variable that was never written reads as 0.
func (c *Client) GetVariable(name string) (float64, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()

	id, err := c.requireID()
	if err != nil {
		return 0, err
	}
	name, err = canonicalName(name)
	if err != nil {
		return 0, err
	}

	for {
		var value float64
		var ready bool
		var snapshot uint32
		err := c.lock.WithRead(func() error {
			ok, err := c.mayProceed(id)
			if err != nil {
				return err
			}
			if !ok {
				snapshot = c.events.Changed.Snapshot()
				return nil
			}
			st, err := c.arena.Load()
			if err != nil {
				return err
			}
			value, err = st.Value(name)
			ready = err == nil
			return err
		})
		if err != nil {
			return 0, closedErr(err)
		}
		if ready {
			return value, nil
		}

		c.logger().Debug("waiting for slowest instance", "variable", name)
		if err := c.wait(snapshot); err != nil {
			return 0, err
		}
	}
}

// SetVariable contributes value to name at the instance's current tick once
// the instance is within the sync tolerance of the slowest live instance,
// waiting as long as it takes.
func (c *Client) SetVariable(name string, value float64) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	id, err := c.requireID()
	if err != nil {
		return err
	}
	name, err = canonicalName(name)
	if err != nil {
		return err
	}

	for {
		var done bool
		var snapshot uint32
		err := c.lock.WithWrite(func() error {
			ok, err := c.mayProceed(id)
			if err != nil {
				return err
			}
			if !ok {
				snapshot = c.events.Changed.Snapshot()
				return nil
			}
			st, err := c.arena.Load()
			if err != nil {
				return err
			}
			if err := st.Contribute(name, id, st.Instances[id].Tick, value); err != nil {
				return err
			}
			if err := c.arena.Commit(st); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			return closedErr(err)
		}
		if done {
			c.events.Changed.Notify()
			return nil
		}

		c.logger().Debug("waiting for slowest instance", "variable", name)
		if err := c.wait(snapshot); err != nil {
			return err
		}
	}
}
