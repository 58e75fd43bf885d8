package rpc

import "github.com/filecoin-project/go-state-types/big"

// Namespace is the JSON-RPC namespace the auction API registers under.
const Namespace = "Auction"

// Endpoint is the HTTP path serving the JSON-RPC API.
const Endpoint = "/rpc/v0"

// CreateAuctionParams are the arguments for Auction.CreateAuction.
type CreateAuctionParams struct {
	SellerID      string
	Quantity      big.Int
	StartingBid   big.Int
	AuctionPeriod uint64
	Salt          []byte
}

// ListAuctionsParams are the arguments for Auction.ListAuctions.
type ListAuctionsParams struct {
	Offset     int
	Limit      int
	Descending bool
}
