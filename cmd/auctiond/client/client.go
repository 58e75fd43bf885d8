package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/wattmarket/auction-core/auction"
	"github.com/wattmarket/auction-core/finalizer"
	"github.com/wattmarket/auction-core/rpc"
)

// Client is a JSON-RPC client for the auction service.
type Client struct {
	api apiStruct

	finalizer *finalizer.Finalizer
}

type apiStruct struct {
	Internal struct {
		CreateAuction   func(context.Context, rpc.CreateAuctionParams) (string, error)
		BidOnAuction    func(ctx context.Context, id, buyer string, amount big.Int) error
		DestroyAuction  func(ctx context.Context, id, caller string) error
		AuctionExecuted func(ctx context.Context, id string) error
		CheckExpiry     func(ctx context.Context, height uint64) error
		GetAuction      func(ctx context.Context, id string) (*auction.Auction, error)
		ListAuctions    func(context.Context, rpc.ListAuctionsParams) ([]auction.Auction, error)
	}
}

// New returns a Client talking to the auction service at url.
func New(url string) (*Client, error) {
	fin := finalizer.NewFinalizer()

	c := &Client{finalizer: fin}
	closer, err := jsonrpc.NewClient(context.Background(), url, rpc.Namespace, &c.api.Internal, http.Header{})
	if err != nil {
		return nil, fin.Cleanupf("creating json rpc client: %v", err)
	}
	fin.AddFn(closer)

	return c, nil
}

// Close the client.
func (c *Client) Close() error {
	return c.finalizer.Cleanup(nil)
}

// CreateAuction opens a new auction and returns its id.
func (c *Client) CreateAuction(
	ctx context.Context,
	seller auction.AccountID,
	quantity, startingBid big.Int,
	auctionPeriod uint64,
	salt []byte) (auction.ID, error) {
	id, err := c.api.Internal.CreateAuction(ctx, rpc.CreateAuctionParams{
		SellerID:      string(seller),
		Quantity:      quantity,
		StartingBid:   startingBid,
		AuctionPeriod: auctionPeriod,
		Salt:          salt,
	})
	if err != nil {
		return "", fmt.Errorf("calling create auction: %v", err)
	}
	return auction.ID(id), nil
}

// BidOnAuction places a bid on an auction.
func (c *Client) BidOnAuction(ctx context.Context, id auction.ID, buyer auction.AccountID, amount big.Int) error {
	return c.api.Internal.BidOnAuction(ctx, string(id), string(buyer), amount)
}

// DestroyAuction removes an alive auction on behalf of caller.
func (c *Client) DestroyAuction(ctx context.Context, id auction.ID, caller auction.AccountID) error {
	return c.api.Internal.DestroyAuction(ctx, string(id), string(caller))
}

// AuctionExecuted records settlement of a matched auction.
func (c *Client) AuctionExecuted(ctx context.Context, id auction.ID) error {
	return c.api.Internal.AuctionExecuted(ctx, string(id))
}

// CheckExpiry sweeps auctions whose window closed at or before height.
func (c *Client) CheckExpiry(ctx context.Context, height uint64) error {
	return c.api.Internal.CheckExpiry(ctx, height)
}

// GetAuction returns an auction by id.
func (c *Client) GetAuction(ctx context.Context, id auction.ID) (*auction.Auction, error) {
	return c.api.Internal.GetAuction(ctx, string(id))
}

// ListAuctions lists auctions.
func (c *Client) ListAuctions(ctx context.Context, params rpc.ListAuctionsParams) ([]auction.Auction, error) {
	return c.api.Internal.ListAuctions(ctx, params)
}
