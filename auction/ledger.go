package auction

import "github.com/filecoin-project/go-state-types/big"

// BidLedger is the ordered list of accepted bids for one auction, newest
// first. Accepted bid amounts are strictly increasing over time, so the
// ledger is strictly decreasing head to tail and the highest bid is always
// the head. Rejected bids never touch the ledger.
type BidLedger []Bid

// Highest returns the current highest bid, or a zero-amount bid when the
// ledger is empty.
func (l BidLedger) Highest() Bid {
	if len(l) == 0 {
		return Bid{Amount: big.Zero()}
	}
	return l[0]
}

// Insert prepends b if it beats the current highest bid. On an empty ledger
// the amount must be at least startingBid; otherwise it must be strictly
// greater than the head. Equal amounts are rejected, so the earliest arrival
// keeps a tie. Returns the new ledger, or ErrBidTooLow with the ledger
// unchanged.
func (l BidLedger) Insert(b Bid, startingBid big.Int) (BidLedger, error) {
	if b.Amount.Int == nil {
		return l, ErrBidTooLow
	}
	if len(l) == 0 {
		if b.Amount.LessThan(startingBid) {
			return l, ErrBidTooLow
		}
	} else if !b.Amount.GreaterThan(l[0].Amount) {
		return l, ErrBidTooLow
	}
	return append(BidLedger{b}, l...), nil
}
