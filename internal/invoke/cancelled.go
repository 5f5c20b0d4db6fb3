package invoke

// markCancelled records childSessionID in the bounded FIFO of recently
// terminated invokes, evicting the oldest entry once cancelledCapacity is
// reached rather than growing without limit for a long-lived parent session
// that invokes and cancels many short children over its lifetime.
func (c *Coordinator) markCancelled(childSessionID string) {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	if c.cancelledSet[childSessionID] {
		return
	}
	if old, _ := c.cancelledRing.Value.(string); old != "" {
		delete(c.cancelledSet, old)
	}
	c.cancelledRing.Value = childSessionID
	c.cancelledRing = c.cancelledRing.Next()
	c.cancelledSet[childSessionID] = true
}

// IsCancelledChildSession reports whether childSessionID was cancelled
// recently enough to still be tracked. Events arriving from it after
// cancellation must be dropped (W3C test 252).
func (c *Coordinator) IsCancelledChildSession(childSessionID string) bool {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	return c.cancelledSet[childSessionID]
}
