package msgbroker_test

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattmarket/auction-core/auction"
	mbroker "github.com/wattmarket/auction-core/msgbroker"
	"github.com/wattmarket/auction-core/msgbroker/fakemsgbroker"
)

func TestRegisterHandlers(t *testing.T) {
	t.Parallel()

	mb := fakemsgbroker.New()

	// A type with no listener interfaces registers nothing.
	err := mbroker.RegisterHandlers(mb, struct{}{})
	require.Error(t, err)

	l := &testListener{}
	require.NoError(t, mbroker.RegisterHandlers(mb, l))
}

func TestPublishAndHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mb := fakemsgbroker.New()
	l := &testListener{}
	require.NoError(t, mbroker.RegisterHandlers(mb, l))

	a := auction.Auction{
		ID:            "auction1",
		SellerID:      "seller1",
		Quantity:      big.NewInt(500),
		StartingBid:   big.NewInt(50),
		Tier:          auction.Tier{Level: 2},
		AuctionPeriod: 10,
		Status:        auction.StatusAlive,
	}
	b := auction.Bid{ID: "bid1", BuyerID: "buyer1", Amount: big.NewInt(75), Height: 4}

	require.NoError(t, mbroker.PublishMsgAuctionCreated(ctx, mb, a))
	require.NoError(t, mbroker.PublishMsgAuctionBidReceived(ctx, mb, a, b))

	a.Bids = auction.BidLedger{b}
	a.HighestBid = b
	a.Status = auction.StatusDead
	a.EndHeight = 10
	require.NoError(t, mbroker.PublishMsgAuctionMatched(ctx, mb, a))
	require.NoError(t, mbroker.PublishMsgAuctionExecuted(ctx, mb, a, 12))
	require.NoError(t, mbroker.PublishMsgAuctionDestroyed(ctx, mb, a, 13))

	require.Equal(t, 5, mb.TotalPublished())
	for _, topic := range []mbroker.TopicName{
		mbroker.AuctionCreatedTopic,
		mbroker.AuctionBidReceivedTopic,
		mbroker.AuctionMatchedTopic,
		mbroker.AuctionExecutedTopic,
		mbroker.AuctionDestroyedTopic,
	} {
		require.NoError(t, mb.Deliver(ctx, string(topic), 0))
	}

	require.NotNil(t, l.created)
	assert.Equal(t, "auction1", l.created.ID)
	assert.True(t, l.created.Quantity.Equals(big.NewInt(500)))

	require.NotNil(t, l.bid)
	assert.Equal(t, "buyer1", l.bid.BuyerID)
	assert.True(t, l.bid.Amount.Equals(big.NewInt(75)))

	require.NotNil(t, l.matched)
	assert.Equal(t, "buyer1", l.matched.WinningBid.BuyerID)
	assert.Equal(t, uint64(10), l.matched.MatchedAt)

	require.NotNil(t, l.executed)
	assert.Equal(t, uint64(12), l.executed.ExecutedAt)

	require.NotNil(t, l.destroyed)
	assert.Equal(t, uint64(13), l.destroyed.DestroyedAt)
	assert.True(t, l.destroyed.Matched)
}

func TestPublishMatchedWithoutBids(t *testing.T) {
	t.Parallel()

	mb := fakemsgbroker.New()
	a := auction.Auction{
		ID:          "auction1",
		SellerID:    "seller1",
		Quantity:    big.NewInt(500),
		StartingBid: big.NewInt(50),
	}
	require.Error(t, mbroker.PublishMsgAuctionMatched(context.Background(), mb, a))
	assert.Zero(t, mb.TotalPublished())
}

type testListener struct {
	created   *mbroker.AuctionSummary
	bid       *mbroker.BidSummary
	matched   *mbroker.AuctionMatched
	executed  *mbroker.AuctionExecuted
	destroyed *mbroker.AuctionDestroyed
}

func (l *testListener) OnAuctionCreated(_ context.Context, opID mbroker.OperationID, a mbroker.AuctionSummary) error {
	l.created = &a
	return nil
}

func (l *testListener) OnAuctionBidReceived(
	_ context.Context,
	opID mbroker.OperationID,
	a mbroker.AuctionSummary,
	b mbroker.BidSummary) error {
	l.bid = &b
	return nil
}

func (l *testListener) OnAuctionMatched(
	_ context.Context,
	opID mbroker.OperationID,
	a mbroker.AuctionSummary,
	winning mbroker.BidSummary,
	matchedAt uint64) error {
	l.matched = &mbroker.AuctionMatched{Auction: a, WinningBid: winning, MatchedAt: matchedAt}
	return nil
}

func (l *testListener) OnAuctionExecuted(
	_ context.Context,
	opID mbroker.OperationID,
	a mbroker.AuctionSummary,
	winning mbroker.BidSummary,
	executedAt uint64) error {
	l.executed = &mbroker.AuctionExecuted{Auction: a, WinningBid: winning, ExecutedAt: executedAt}
	return nil
}

func (l *testListener) OnAuctionDestroyed(
	_ context.Context,
	opID mbroker.OperationID,
	a mbroker.AuctionSummary,
	destroyedAt uint64,
	matched bool) error {
	l.destroyed = &mbroker.AuctionDestroyed{Auction: a, DestroyedAt: destroyedAt, Matched: matched}
	return nil
}
