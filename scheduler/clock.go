package scheduler

import (
	"sync/atomic"

	"github.com/vitwit/payments/types"
)

// Clock reports the height of the block being executed.
type Clock interface {
	CurrentBlock() types.BlockNumber
}

// ManualClock is a Clock advanced explicitly by its owner.
type ManualClock struct {
	block atomic.Uint64
}

// NewManualClock creates a clock positioned at block.
func NewManualClock(block types.BlockNumber) *ManualClock {
	c := &ManualClock{}
	c.block.Store(uint64(block))
	return c
}

func (c *ManualClock) CurrentBlock() types.BlockNumber {
	return types.BlockNumber(c.block.Load())
}

// Set moves the clock to block.
func (c *ManualClock) Set(block types.BlockNumber) {
	c.block.Store(uint64(block))
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *ManualClock) Advance(n types.BlockNumber) types.BlockNumber {
	return types.BlockNumber(c.block.Add(uint64(n)))
}
