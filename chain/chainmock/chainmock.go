package chainmock

import (
	"context"
	"sync"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/wattmarket/auction-core/auction"
	"github.com/wattmarket/auction-core/chain"
)

// Chain is an in-memory chain.Chain with settable height and balances.
type Chain struct {
	lk       sync.Mutex
	height   uint64
	balances map[auction.AccountID]big.Int
}

var _ chain.Chain = (*Chain)(nil)

// New returns a mock Chain at height zero with no balances.
func New() *Chain {
	return &Chain{balances: make(map[auction.AccountID]big.Int)}
}

// SetHeight sets the current height.
func (c *Chain) SetHeight(height uint64) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.height = height
}

// SetBalance sets owner's escrow balance.
func (c *Chain) SetBalance(owner auction.AccountID, amount big.Int) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.balances[owner] = amount
}

// GetChainHeight returns the current height.
func (c *Chain) GetChainHeight() (uint64, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.height, nil
}

// HasDeposit reports whether owner's balance covers amount.
func (c *Chain) HasDeposit(_ context.Context, owner auction.AccountID, amount big.Int) (bool, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	balance, ok := c.balances[owner]
	if !ok {
		return false, nil
	}
	return !balance.LessThan(amount), nil
}

// Close is a no-op.
func (c *Chain) Close() error {
	return nil
}
