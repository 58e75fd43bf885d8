package auctioneer

import (
	"context"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/wattmarket/auction-core/auction"
)

// Auctioneer runs the marketplace matching core: it opens auctions, admits
// bids, and resolves auctions when their window closes.
type Auctioneer interface {
	// CreateAuction opens a new auction for an energy lot.
	CreateAuction(ctx context.Context, seller auction.AccountID, quantity, startingBid big.Int,
		auctionPeriod uint64, salt []byte) (auction.ID, error)

	// BidOnAuction places a bid on an alive auction.
	BidOnAuction(ctx context.Context, id auction.ID, buyer auction.AccountID, amount big.Int) error

	// DestroyAuction removes an alive auction. Only the seller may call it.
	DestroyAuction(ctx context.Context, id auction.ID, caller auction.AccountID) error

	// GetAuction returns an auction by id.
	GetAuction(ctx context.Context, id auction.ID) (*auction.Auction, error)
}

// Hooks receives lifecycle notifications from the matching core. Note that
// the methods do not return error: hooks observe, they can't abort or alter
// the operation that fired them. Implementations get snapshot copies and may
// retain them.
type Hooks interface {
	// OnAuctionsCreated is called after new auctions are committed.
	OnAuctionsCreated(context.Context, []auction.Auction)

	// OnAuctionDestroyed is called after an auction is removed by its seller
	// or expires without a match.
	OnAuctionDestroyed(context.Context, auction.Auction)

	// OnBidAuction is called after a bid is accepted.
	OnBidAuction(context.Context, auction.Auction, auction.Bid)

	// OnAuctionOver is called after an auction expires with a match.
	OnAuctionOver(context.Context, auction.Auction)
}

// NoopHooks is a Hooks implementation that ignores every notification.
type NoopHooks struct{}

var _ Hooks = (*NoopHooks)(nil)

// OnAuctionsCreated ignores the notification.
func (NoopHooks) OnAuctionsCreated(context.Context, []auction.Auction) {}

// OnAuctionDestroyed ignores the notification.
func (NoopHooks) OnAuctionDestroyed(context.Context, auction.Auction) {}

// OnBidAuction ignores the notification.
func (NoopHooks) OnBidAuction(context.Context, auction.Auction, auction.Bid) {}

// OnAuctionOver ignores the notification.
func (NoopHooks) OnAuctionOver(context.Context, auction.Auction) {}
