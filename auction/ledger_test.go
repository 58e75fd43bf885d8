package auction_test

import (
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattmarket/auction-core/auction"
)

func TestBidLedger_Insert(t *testing.T) {
	t.Parallel()

	starting := big.NewInt(50)
	var l auction.BidLedger

	// Below the starting bid on an empty ledger.
	_, err := l.Insert(bid("buyer1", 49), starting)
	require.ErrorIs(t, err, auction.ErrBidTooLow)
	assert.Len(t, l, 0)

	// Exactly the starting bid is accepted when empty.
	l, err = l.Insert(bid("buyer1", 50), starting)
	require.NoError(t, err)
	assert.Equal(t, auction.AccountID("buyer1"), l.Highest().BuyerID)

	// Equal to the current highest is rejected; first arrival keeps the tie.
	_, err = l.Insert(bid("buyer2", 50), starting)
	require.ErrorIs(t, err, auction.ErrBidTooLow)
	assert.Equal(t, auction.AccountID("buyer1"), l.Highest().BuyerID)

	// Strictly greater is accepted and becomes the head.
	l, err = l.Insert(bid("buyer2", 60), starting)
	require.NoError(t, err)
	assert.Equal(t, auction.AccountID("buyer2"), l.Highest().BuyerID)

	// Lower than the head is rejected and leaves the ledger untouched.
	before := len(l)
	_, err = l.Insert(bid("buyer3", 55), starting)
	require.ErrorIs(t, err, auction.ErrBidTooLow)
	assert.Len(t, l, before)
}

func TestBidLedger_Descending(t *testing.T) {
	t.Parallel()

	starting := big.NewInt(1)
	var l auction.BidLedger
	var err error
	for i := int64(1); i <= 20; i++ {
		l, err = l.Insert(bid("buyer", i*10), starting)
		require.NoError(t, err)
	}

	// Every accepted bid is retained, newest first, strictly decreasing.
	require.Len(t, l, 20)
	for i := 0; i < len(l)-1; i++ {
		assert.True(t, l[i].Amount.GreaterThan(l[i+1].Amount))
	}
	assert.Equal(t, big.NewInt(200), l.Highest().Amount)
}

func TestBidLedger_HighestEmpty(t *testing.T) {
	t.Parallel()

	var l auction.BidLedger
	h := l.Highest()
	require.NotNil(t, h.Amount.Int)
	assert.Zero(t, h.Amount.Sign())
}

func bid(buyer auction.AccountID, amount int64) auction.Bid {
	return auction.Bid{BuyerID: buyer, Amount: big.NewInt(amount)}
}
