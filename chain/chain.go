package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/wattmarket/auction-core/auction"
	"github.com/wattmarket/auction-core/finalizer"
)

var requestTimeout = time.Second * 10

// Chain provides the ledger-node methods the matching core depends on:
// block height, which drives auction expiry, and escrow balances, which
// back the bid deposit check.
type Chain interface {
	io.Closer

	// GetChainHeight returns the current ledger height.
	GetChainHeight() (uint64, error)

	// HasDeposit reports whether owner's escrow balance covers amount.
	HasDeposit(ctx context.Context, owner auction.AccountID, amount big.Int) (bool, error)
}

// ledgerAPI mirrors the ledger node's JSON-RPC surface.
type ledgerAPI struct {
	Internal struct {
		ChainHeight   func(context.Context) (uint64, error)
		EscrowBalance func(context.Context, string) (big.Int, error)
	}
}

type chain struct {
	api ledgerAPI

	ctx       context.Context
	finalizer *finalizer.Finalizer
}

// New returns a Chain backed by the ledger node at url.
func New(url string) (Chain, error) {
	fin := finalizer.NewFinalizer()
	ctx, cancel := context.WithCancel(context.Background())
	fin.Add(finalizer.NewContextCloser(cancel))

	c := &chain{ctx: ctx, finalizer: fin}
	closer, err := jsonrpc.NewClient(ctx, url, "Ledger", &c.api.Internal, http.Header{})
	if err != nil {
		return nil, fin.Cleanupf("creating json rpc client: %v", err)
	}
	fin.AddFn(closer)

	return c, nil
}

// Close the client.
func (c *chain) Close() error {
	return c.finalizer.Cleanup(nil)
}

// GetChainHeight returns the current ledger height.
func (c *chain) GetChainHeight() (uint64, error) {
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	height, err := c.api.Internal.ChainHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting chain height: %v", err)
	}
	return height, nil
}

// HasDeposit reports whether owner's escrow balance covers amount.
func (c *chain) HasDeposit(ctx context.Context, owner auction.AccountID, amount big.Int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	balance, err := c.api.Internal.EscrowBalance(ctx, string(owner))
	if err != nil {
		return false, fmt.Errorf("getting escrow balance: %v", err)
	}
	return !balance.LessThan(amount), nil
}
