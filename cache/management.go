package cache

import (
	"fmt"
	"time"
)

// RegisterWorker adds a fresh, empty, active worker to the topology.
func (c *engine[K, V]) RegisterWorker(id string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if id == "" {
		return ErrInvalidWorkerID
	}
	now := c.now()

	c.reg.mu.Lock()
	if _, ok := c.reg.workers[id]; ok {
		c.reg.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorkerExists, id)
	}
	c.reg.workers[id] = newWorkerState[K, V](id, now)
	c.reg.order = append(c.reg.order, id)
	c.reg.rebuildRoutingLocked()
	active, total := c.reg.activeCountLocked()
	c.reg.mu.Unlock()

	c.metrics.Workers(active, total)
	c.log.Info("worker registered", "worker", id, "workers", total)
	return nil
}

// UnregisterWorker removes the worker and forfeits every entry it holds.
// The data loss is deliberate: graceful draining is the caller's choice via
// DecommissionWorker.
func (c *engine[K, V]) UnregisterWorker(id string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.reg.mu.Lock()
	w, ok := c.reg.workers[id]
	if !ok {
		c.reg.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	forfeited := len(w.entries)
	delete(c.reg.workers, id)
	c.reg.removeFromOrderLocked(id)
	c.reg.rebuildRoutingLocked()
	active, total := c.reg.activeCountLocked()
	entries := c.reg.totalEntriesLocked()
	c.reg.mu.Unlock()

	c.metrics.Workers(active, total)
	c.metrics.Size(entries)
	if forfeited > 0 {
		c.log.Warn("worker unregistered with resident entries", "worker", id, "forfeited", forfeited)
	} else {
		c.log.Info("worker unregistered", "worker", id)
	}
	return nil
}

// DecommissionWorker drains the worker's entries to the remaining active
// workers and then removes it. Fails with ErrNoWorkersAvailable when no
// other active worker can receive the entries.
func (c *engine[K, V]) DecommissionWorker(id string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.reg.mu.Lock()
	w, ok := c.reg.workers[id]
	if !ok {
		c.reg.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}

	// Stop routing reads and writes to the departing worker before moving
	// anything.
	w.active = false
	c.reg.rebuildRoutingLocked()

	moved, dropped, err := c.reb.drainLocked(id)
	if err != nil {
		// Roll the worker back into rotation; nothing was moved.
		w.active = true
		c.reg.rebuildRoutingLocked()
		c.reg.mu.Unlock()
		return err
	}
	delete(c.reg.workers, id)
	c.reg.removeFromOrderLocked(id)
	c.reg.rebuildRoutingLocked()
	active, total := c.reg.activeCountLocked()
	entries := c.reg.totalEntriesLocked()
	c.reg.mu.Unlock()

	c.metrics.Workers(active, total)
	c.metrics.Size(entries)
	c.log.Info("worker decommissioned", "worker", id, "migrated", moved, "droppedReplicas", dropped)
	return nil
}

// Heartbeat refreshes the worker's liveness stamp.
func (c *engine[K, V]) Heartbeat(id string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	now := c.now()
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	w, ok := c.reg.workers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	w.lastHeartbeat = now
	return nil
}

// SetWorkerActive toggles a worker's participation in reads, writes, and
// rebalancing. Inactive workers keep their entries and stay addressable
// for management operations.
func (c *engine[K, V]) SetWorkerActive(id string, active bool) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.reg.mu.Lock()
	w, ok := c.reg.workers[id]
	if !ok {
		c.reg.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	w.active = active
	c.reg.rebuildRoutingLocked()
	activeN, total := c.reg.activeCountLocked()
	c.reg.mu.Unlock()

	c.metrics.Workers(activeN, total)
	c.log.Info("worker activity changed", "worker", id, "active", active)
	return nil
}

// Workers snapshots all workers in registration order.
func (c *engine[K, V]) Workers() []WorkerInfo {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	infos := make([]WorkerInfo, 0, len(c.reg.order))
	for _, id := range c.reg.order {
		infos = append(infos, c.reg.workers[id].info())
	}
	return infos
}

// Rebalance runs one synchronous rebalance cycle.
func (c *engine[K, V]) Rebalance() int {
	if c.closed.Load() {
		return 0
	}
	return c.reb.runOnce()
}

// Start launches the background rebalance and expiry-sweep loops. They run
// until Close.
func (c *engine[K, V]) Start() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	c.wg.Add(1)
	// Same closed re-check as triggerRebalance: a loop spawned while Close
	// runs must stay covered by Close's wg.Wait.
	if c.closed.Load() {
		c.wg.Done()
		return ErrClosed
	}
	go c.backgroundLoop()
	c.log.Info("background loops started",
		"rebalanceInterval", c.cfg.RebalanceInterval,
		"cleanupInterval", c.cfg.CleanupInterval)
	return nil
}

func (c *engine[K, V]) backgroundLoop() {
	defer c.wg.Done()
	rebalance := time.NewTicker(c.cfg.RebalanceInterval)
	cleanup := time.NewTicker(c.cfg.CleanupInterval)
	defer rebalance.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-rebalance.C:
			if n := c.reb.runOnce(); n > 0 {
				c.log.Debug("periodic rebalance", "migrated", n)
			}
		case <-cleanup.C:
			if n, err := c.CleanupExpired(); err == nil && n > 0 {
				c.log.Debug("expired sweep", "removed", n)
			}
		case <-c.stop:
			return
		}
	}
}
