package auction

import (
	"errors"
	"fmt"

	"github.com/filecoin-project/go-state-types/big"
)

// ID is a content-derived auction identifier.
type ID string

// BidID is a unique bid identifier.
type BidID string

// AccountID is an opaque marketplace account identifier.
type AccountID string

var (
	// ErrAuctionDoesNotExist indicates the requested auction isn't in the store.
	ErrAuctionDoesNotExist = errors.New("auction does not exist")

	// ErrAuctionIsOver indicates the auction already resolved and can't be altered.
	ErrAuctionIsOver = errors.New("auction is over")

	// ErrUnauthorizedCall indicates the caller isn't allowed to perform the operation.
	ErrUnauthorizedCall = errors.New("unauthorized call")

	// ErrInsufficientAttachedDeposit indicates the buyer's escrow deposit doesn't cover the bid.
	ErrInsufficientAttachedDeposit = errors.New("insufficient attached deposit")

	// ErrBidTooLow indicates the bid doesn't beat the current highest bid.
	ErrBidTooLow = errors.New("bid too low")

	// ErrDuplicateAuction indicates an auction with the same content and salt already exists.
	ErrDuplicateAuction = errors.New("duplicate auction")
)

// Status is the lifecycle status of an auction. The transition is one-way:
// an auction starts Alive and ends Dead.
type Status int

const (
	// StatusAlive indicates the auction is accepting bids.
	StatusAlive Status = iota
	// StatusDead indicates the auction resolved and is read-only.
	StatusDead
)

// String returns a string-encoded status.
func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusDead:
		return "dead"
	default:
		return "invalid"
	}
}

// Bid defines the core bid model.
type Bid struct {
	ID      BidID
	BuyerID AccountID
	Amount  big.Int
	Height  uint64
}

// Auction is the persisted auction model.
type Auction struct {
	ID            ID
	SellerID      AccountID
	Quantity      big.Int
	StartingBid   big.Int
	Tier          Tier
	Bids          BidLedger
	HighestBid    Bid
	AuctionPeriod uint64
	StartHeight   uint64
	EndHeight     uint64
	Status        Status
	Salt          []byte
}

// ExpiresAt returns the height at which the auction window closes.
func (a Auction) ExpiresAt() uint64 {
	return a.StartHeight + a.AuctionPeriod
}

// Matched reports whether the auction holds at least one accepted bid.
func (a Auction) Matched() bool {
	return len(a.Bids) > 0
}

// Clone returns a deep copy of the auction, safe to hand to observers.
func (a Auction) Clone() Auction {
	c := a
	c.Salt = make([]byte, len(a.Salt))
	copy(c.Salt, a.Salt)
	c.Bids = make(BidLedger, len(a.Bids))
	copy(c.Bids, a.Bids)
	return c
}

// Validate checks the auction parameters for creation.
func (a Auction) Validate() error {
	if a.SellerID == "" {
		return errors.New("seller id is empty")
	}
	if a.Quantity.Int == nil || a.Quantity.Sign() <= 0 {
		return errors.New("quantity must be greater than zero")
	}
	if a.StartingBid.Int == nil || a.StartingBid.Sign() < 0 {
		return errors.New("starting bid must not be negative")
	}
	if a.AuctionPeriod == 0 {
		return errors.New("auction period must be greater than zero")
	}
	if a.Tier.Level == 0 {
		return fmt.Errorf("tier level %d is invalid", a.Tier.Level)
	}
	return nil
}
