package auctioneer_test

import (
	"context"
	"sync"
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	badger "github.com/textileio/go-ds-badger3"
	"github.com/wattmarket/auction-core/auction"
	core "github.com/wattmarket/auction-core/auctioneer"
	"github.com/wattmarket/auction-core/chain/chainmock"
	"github.com/wattmarket/auction-core/cmd/auctiond/auctioneer"
	"github.com/wattmarket/auction-core/logging"
	mbroker "github.com/wattmarket/auction-core/msgbroker"
	"github.com/wattmarket/auction-core/msgbroker/fakemsgbroker"
)

func init() {
	logging.MustSetDebug("auctioneer")
}

func TestAuctioneer_CreateAuction(t *testing.T) {
	t.Parallel()
	a, env := newAuctioneer(t)
	ctx := context.Background()

	id, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(10), 100, []byte("salt1"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := a.GetAuction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusAlive, got.Status)
	assert.Equal(t, auction.AccountID("seller1"), got.SellerID)
	assert.Equal(t, uint32(2), got.Tier.Level)
	assert.Equal(t, uint64(100), got.ExpiresAt())

	// Same content and salt is a duplicate.
	_, err = a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(10), 100, []byte("salt1"))
	require.ErrorIs(t, err, auction.ErrDuplicateAuction)

	// A fresh salt re-lists the same offer.
	id2, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(10), 100, []byte("salt2"))
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)

	// Invalid parameters are rejected.
	_, err = a.CreateAuction(ctx, "seller1", big.NewInt(0), big.NewInt(10), 100, []byte("salt3"))
	require.Error(t, err)
	_, err = a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(10), 0, []byte("salt4"))
	require.Error(t, err)

	assert.Equal(t, 2, env.mb.TotalPublishedTopic(string(mbroker.AuctionCreatedTopic)))
	assert.Len(t, env.hooks.created, 2)
}

func TestAuctioneer_BidOnAuction(t *testing.T) {
	t.Parallel()
	a, env := newAuctioneer(t)
	ctx := context.Background()

	id, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(50), 100, []byte("salt1"))
	require.NoError(t, err)

	// Unknown auction.
	err = a.BidOnAuction(ctx, "nope", "buyer1", big.NewInt(60))
	require.ErrorIs(t, err, auction.ErrAuctionDoesNotExist)

	// No escrow deposit.
	err = a.BidOnAuction(ctx, id, "buyer1", big.NewInt(60))
	require.ErrorIs(t, err, auction.ErrInsufficientAttachedDeposit)

	env.chain.SetBalance("buyer1", big.NewInt(1000))
	env.chain.SetBalance("buyer2", big.NewInt(1000))

	// Below the starting bid.
	err = a.BidOnAuction(ctx, id, "buyer1", big.NewInt(49))
	require.ErrorIs(t, err, auction.ErrBidTooLow)

	require.NoError(t, a.BidOnAuction(ctx, id, "buyer1", big.NewInt(60)))

	// A tie doesn't displace the standing bid.
	err = a.BidOnAuction(ctx, id, "buyer2", big.NewInt(60))
	require.ErrorIs(t, err, auction.ErrBidTooLow)

	// Deposit must cover the bid amount.
	err = a.BidOnAuction(ctx, id, "buyer2", big.NewInt(2000))
	require.ErrorIs(t, err, auction.ErrInsufficientAttachedDeposit)

	require.NoError(t, a.BidOnAuction(ctx, id, "buyer2", big.NewInt(100)))

	got, err := a.GetAuction(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Bids, 2)
	assert.Equal(t, auction.AccountID("buyer2"), got.HighestBid.BuyerID)
	assert.True(t, got.HighestBid.Amount.Equals(big.NewInt(100)))
	assert.Equal(t, got.HighestBid, got.Bids.Highest())

	assert.Equal(t, 2, env.mb.TotalPublishedTopic(string(mbroker.AuctionBidReceivedTopic)))
	assert.Len(t, env.hooks.bids, 2)
}

func TestAuctioneer_ExpiryMatched(t *testing.T) {
	t.Parallel()
	a, env := newAuctioneer(t)
	ctx := context.Background()

	env.chain.SetBalance("buyer1", big.NewInt(1000))

	id, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(50), 10, []byte("salt1"))
	require.NoError(t, err)
	require.NoError(t, a.BidOnAuction(ctx, id, "buyer1", big.NewInt(75)))

	// Window still open one height before the boundary.
	require.NoError(t, a.CheckExpiry(ctx, 9))
	got, err := a.GetAuction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusAlive, got.Status)

	// The boundary is inclusive.
	require.NoError(t, a.CheckExpiry(ctx, 10))
	got, err = a.GetAuction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusDead, got.Status)
	assert.Equal(t, uint64(10), got.EndHeight)

	// The resolved record still answers queries but rejects bids.
	err = a.BidOnAuction(ctx, id, "buyer1", big.NewInt(100))
	require.ErrorIs(t, err, auction.ErrAuctionIsOver)

	// Re-sweeping the same height fires nothing twice.
	require.NoError(t, a.CheckExpiry(ctx, 10))
	require.NoError(t, a.CheckExpiry(ctx, 20))
	assert.Equal(t, 1, env.mb.TotalPublishedTopic(string(mbroker.AuctionMatchedTopic)))
	assert.Len(t, env.hooks.over, 1)
	assert.Empty(t, env.hooks.destroyed)

	// The matched payload carries the winning bid.
	data, err := env.mb.GetMsg(string(mbroker.AuctionMatchedTopic), 0)
	require.NoError(t, err)
	var msg mbroker.AuctionMatched
	require.NoError(t, cbor.Unmarshal(data, &msg))
	assert.NotEmpty(t, msg.OperationID)
	assert.Equal(t, string(id), msg.Auction.ID)
	assert.Equal(t, "buyer1", msg.WinningBid.BuyerID)
	assert.True(t, msg.WinningBid.Amount.Equals(big.NewInt(75)))
	assert.Equal(t, uint64(10), msg.MatchedAt)

	// Settlement emits the executed event.
	require.NoError(t, a.AuctionExecuted(ctx, id))
	assert.Equal(t, 1, env.mb.TotalPublishedTopic(string(mbroker.AuctionExecutedTopic)))
}

func TestAuctioneer_ExpiryUnmatched(t *testing.T) {
	t.Parallel()
	a, env := newAuctioneer(t)
	ctx := context.Background()

	id, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(50), 10, []byte("salt1"))
	require.NoError(t, err)

	require.NoError(t, a.CheckExpiry(ctx, 15))

	got, err := a.GetAuction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusDead, got.Status)
	assert.Equal(t, uint64(15), got.EndHeight)

	assert.Equal(t, 0, env.mb.TotalPublishedTopic(string(mbroker.AuctionMatchedTopic)))
	assert.Equal(t, 1, env.mb.TotalPublishedTopic(string(mbroker.AuctionDestroyedTopic)))
	assert.Len(t, env.hooks.destroyed, 1)
	assert.Empty(t, env.hooks.over)

	// An unmatched auction can't be executed.
	require.Error(t, a.AuctionExecuted(ctx, id))
}

func TestAuctioneer_DestroyAuction(t *testing.T) {
	t.Parallel()
	a, env := newAuctioneer(t)
	ctx := context.Background()

	id, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(50), 100, []byte("salt1"))
	require.NoError(t, err)

	// Only the seller may destroy.
	err = a.DestroyAuction(ctx, id, "intruder")
	require.ErrorIs(t, err, auction.ErrUnauthorizedCall)

	require.NoError(t, a.DestroyAuction(ctx, id, "seller1"))

	// The record is gone entirely.
	_, err = a.GetAuction(ctx, id)
	require.ErrorIs(t, err, auction.ErrAuctionDoesNotExist)
	err = a.BidOnAuction(ctx, id, "buyer1", big.NewInt(60))
	require.ErrorIs(t, err, auction.ErrAuctionDoesNotExist)
	err = a.DestroyAuction(ctx, id, "seller1")
	require.ErrorIs(t, err, auction.ErrAuctionDoesNotExist)

	// No stale expiry fires later.
	require.NoError(t, a.CheckExpiry(ctx, 200))
	assert.Equal(t, 1, env.mb.TotalPublishedTopic(string(mbroker.AuctionDestroyedTopic)))
	assert.Len(t, env.hooks.destroyed, 1)
}

func TestAuctioneer_SweepResolvesInHeightOrder(t *testing.T) {
	t.Parallel()
	a, env := newAuctioneer(t)
	ctx := context.Background()

	id10, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(50), 10, []byte("salt1"))
	require.NoError(t, err)
	id5, err := a.CreateAuction(ctx, "seller1", big.NewInt(500), big.NewInt(50), 5, []byte("salt2"))
	require.NoError(t, err)

	// One sweep covering both windows resolves the earlier one first.
	require.NoError(t, a.CheckExpiry(ctx, 50))
	require.Equal(t, 2, env.mb.TotalPublishedTopic(string(mbroker.AuctionDestroyedTopic)))

	data, err := env.mb.GetMsg(string(mbroker.AuctionDestroyedTopic), 0)
	require.NoError(t, err)
	var first mbroker.AuctionDestroyed
	require.NoError(t, cbor.Unmarshal(data, &first))
	assert.Equal(t, string(id5), first.Auction.ID)

	data, err = env.mb.GetMsg(string(mbroker.AuctionDestroyedTopic), 1)
	require.NoError(t, err)
	var second mbroker.AuctionDestroyed
	require.NoError(t, cbor.Unmarshal(data, &second))
	assert.Equal(t, string(id10), second.Auction.ID)
}

type env struct {
	chain *chainmock.Chain
	mb    *fakemsgbroker.FakeMsgBroker
	hooks *recordingHooks
}

func newAuctioneer(t *testing.T) (*auctioneer.Auctioneer, *env) {
	s, err := badger.NewDatastore(t.TempDir(), &badger.DefaultOptions)
	require.NoError(t, err)

	e := &env{
		chain: chainmock.New(),
		mb:    fakemsgbroker.New(),
		hooks: &recordingHooks{},
	}
	a, err := auctioneer.New(s, e.mb, e.chain, e.hooks, auctioneer.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, a.Close())
		require.NoError(t, s.Close())
	})
	return a, e
}

type recordingHooks struct {
	lk        sync.Mutex
	created   []auction.Auction
	destroyed []auction.Auction
	bids      []auction.Bid
	over      []auction.Auction
}

var _ core.Hooks = (*recordingHooks)(nil)

func (h *recordingHooks) OnAuctionsCreated(_ context.Context, as []auction.Auction) {
	h.lk.Lock()
	defer h.lk.Unlock()
	h.created = append(h.created, as...)
}

func (h *recordingHooks) OnAuctionDestroyed(_ context.Context, a auction.Auction) {
	h.lk.Lock()
	defer h.lk.Unlock()
	h.destroyed = append(h.destroyed, a)
}

func (h *recordingHooks) OnBidAuction(_ context.Context, a auction.Auction, b auction.Bid) {
	h.lk.Lock()
	defer h.lk.Unlock()
	h.bids = append(h.bids, b)
}

func (h *recordingHooks) OnAuctionOver(_ context.Context, a auction.Auction) {
	h.lk.Lock()
	defer h.lk.Unlock()
	h.over = append(h.over, a)
}
