package auctioneer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filecoin-project/go-state-types/big"
	ds "github.com/ipfs/go-datastore"
	"github.com/oklog/ulid/v2"
	golog "github.com/textileio/go-log/v2"
	"github.com/wattmarket/auction-core/auction"
	core "github.com/wattmarket/auction-core/auctioneer"
	"github.com/wattmarket/auction-core/chain"
	"github.com/wattmarket/auction-core/cmd/auctiond/store"
	"github.com/wattmarket/auction-core/finalizer"
	"github.com/wattmarket/auction-core/metrics"
	mbroker "github.com/wattmarket/auction-core/msgbroker"
	"go.opentelemetry.io/otel/metric"
)

var log = golog.Logger("auctioneer")

// Config defines engine tunables.
type Config struct {
	// HeightPollInterval is how often the chain height is polled for expiry sweeps.
	HeightPollInterval time.Duration
}

func (c Config) setDefaults() Config {
	if c.HeightPollInterval <= 0 {
		c.HeightPollInterval = time.Second * 10
	}
	return c
}

// Auctioneer is the marketplace matching core. Mutating operations are
// serialized under one lock, validate against the committed state, and
// commit atomically: a failed operation leaves no partial writes. Events
// and hooks fire only after commit.
type Auctioneer struct {
	store *store.Store
	mb    mbroker.MsgBroker
	chain chain.Chain
	hooks core.Hooks

	conf Config

	// lk gives mutating operations a single total order.
	lk     sync.Mutex
	height uint64

	entropyLk sync.Mutex
	entropy   *ulid.MonotonicEntropy

	ctx       context.Context
	finalizer *finalizer.Finalizer

	metricCreated   metric.Int64Counter
	metricBids      metric.Int64Counter
	metricMatched   metric.Int64Counter
	metricDestroyed metric.Int64Counter
	metricExecuted  metric.Int64Counter
	metricLastSweep metric.Int64GaugeObserver
	statLastSweep   uint64
}

var _ core.Auctioneer = (*Auctioneer)(nil)

// New returns a new Auctioneer seeded with the chain's current height.
// Pass nil hooks to run without observers.
func New(
	dstore ds.TxnDatastore,
	mb mbroker.MsgBroker,
	ch chain.Chain,
	hooks core.Hooks,
	conf Config) (*Auctioneer, error) {
	if hooks == nil {
		hooks = core.NoopHooks{}
	}

	fin := finalizer.NewFinalizer()
	ctx, cancel := context.WithCancel(context.Background())
	fin.Add(finalizer.NewContextCloser(cancel))

	height, err := ch.GetChainHeight()
	if err != nil {
		return nil, fin.Cleanupf("getting chain height: %v", err)
	}

	a := &Auctioneer{
		store:     store.NewStore(dstore),
		mb:        mb,
		chain:     ch,
		hooks:     hooks,
		conf:      conf.setDefaults(),
		height:    height,
		ctx:       ctx,
		finalizer: fin,
	}
	a.initMetrics()
	return a, nil
}

// Close the engine, stopping the height watcher.
func (a *Auctioneer) Close() error {
	return a.finalizer.Cleanup(nil)
}

// Start launches the height watcher that drives expiry sweeps.
func (a *Auctioneer) Start() {
	go a.heightWatcher()
}

// CreateAuction opens a new auction for an energy lot. The identifier is
// derived from the auction content and salt, so re-submitting the same
// offer with the same salt fails with auction.ErrDuplicateAuction.
func (a *Auctioneer) CreateAuction(
	ctx context.Context,
	seller auction.AccountID,
	quantity, startingBid big.Int,
	auctionPeriod uint64,
	salt []byte) (id auction.ID, err error) {
	defer func() { metrics.MetricIncrCounter(ctx, err, a.metricCreated) }()

	if startingBid.Int == nil {
		startingBid = big.Zero()
	}
	tier := auction.ClassifyTier(quantity)
	id, err = auction.NewID(seller, quantity, startingBid, auctionPeriod, tier, salt)
	if err != nil {
		return "", fmt.Errorf("deriving id: %v", err)
	}

	a.lk.Lock()
	defer a.lk.Unlock()

	na := auction.Auction{
		ID:            id,
		SellerID:      seller,
		Quantity:      quantity,
		StartingBid:   startingBid,
		Tier:          tier,
		HighestBid:    auction.Bid{Amount: big.Zero()},
		AuctionPeriod: auctionPeriod,
		StartHeight:   a.height,
		Status:        auction.StatusAlive,
		Salt:          salt,
	}
	if err := na.Validate(); err != nil {
		return "", fmt.Errorf("invalid auction: %v", err)
	}
	if err := a.store.InsertAuction(ctx, na); err != nil {
		if errors.Is(err, auction.ErrDuplicateAuction) {
			return "", auction.ErrDuplicateAuction
		}
		return "", fmt.Errorf("inserting auction: %v", err)
	}
	log.Infof("created auction %s (seller %s, tier %d, expires at %d)", id, seller, tier.Level, na.ExpiresAt())

	if err := mbroker.PublishMsgAuctionCreated(ctx, a.mb, na); err != nil {
		log.Errorf("publishing auction created: %v", err)
	}
	a.hooks.OnAuctionsCreated(ctx, []auction.Auction{na.Clone()})
	return id, nil
}

// BidOnAuction places a bid on an alive auction. The bid is admitted only
// if the buyer's escrow deposit covers it and it strictly beats the current
// highest bid (or meets the starting bid on a fresh ledger).
func (a *Auctioneer) BidOnAuction(
	ctx context.Context,
	id auction.ID,
	buyer auction.AccountID,
	amount big.Int) (err error) {
	defer func() { metrics.MetricIncrCounter(ctx, err, a.metricBids) }()

	if buyer == "" {
		return errors.New("buyer id is empty")
	}
	if amount.Int == nil || amount.Sign() <= 0 {
		return auction.ErrBidTooLow
	}

	a.lk.Lock()
	defer a.lk.Unlock()

	aa, err := a.store.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	if aa.Status == auction.StatusDead {
		return auction.ErrAuctionIsOver
	}

	ok, err := a.chain.HasDeposit(ctx, buyer, amount)
	if err != nil {
		return fmt.Errorf("checking deposit: %v", err)
	}
	if !ok {
		return auction.ErrInsufficientAttachedDeposit
	}

	bidID, err := a.newBidID()
	if err != nil {
		return fmt.Errorf("creating bid id: %v", err)
	}
	bid := auction.Bid{
		ID:      bidID,
		BuyerID: buyer,
		Amount:  amount,
		Height:  a.height,
	}
	bids, err := aa.Bids.Insert(bid, aa.StartingBid)
	if err != nil {
		return err
	}
	aa.Bids = bids
	aa.HighestBid = bid

	if err := a.store.SaveAuction(ctx, *aa); err != nil {
		return fmt.Errorf("saving auction: %v", err)
	}
	log.Debugf("auction %s: accepted bid %s from %s", id, bidID, buyer)

	if err := mbroker.PublishMsgAuctionBidReceived(ctx, a.mb, *aa, bid); err != nil {
		log.Errorf("publishing bid received: %v", err)
	}
	a.hooks.OnBidAuction(ctx, aa.Clone(), bid)
	return nil
}

// DestroyAuction removes an alive auction. Only the seller may destroy it;
// a resolved auction can't be destroyed.
func (a *Auctioneer) DestroyAuction(ctx context.Context, id auction.ID, caller auction.AccountID) (err error) {
	defer func() { metrics.MetricIncrCounter(ctx, err, a.metricDestroyed) }()

	a.lk.Lock()
	defer a.lk.Unlock()

	aa, err := a.store.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	if aa.Status == auction.StatusDead {
		return auction.ErrAuctionIsOver
	}
	if aa.SellerID != caller {
		return auction.ErrUnauthorizedCall
	}

	if err := a.store.RemoveAuction(ctx, *aa); err != nil {
		return fmt.Errorf("removing auction: %v", err)
	}
	log.Infof("destroyed auction %s", id)

	if err := mbroker.PublishMsgAuctionDestroyed(ctx, a.mb, *aa, a.height); err != nil {
		log.Errorf("publishing auction destroyed: %v", err)
	}
	a.hooks.OnAuctionDestroyed(ctx, aa.Clone())
	return nil
}

// AuctionExecuted records settlement of a matched auction by emitting the
// auction-executed event. The auction must already be resolved with a
// winning bid.
func (a *Auctioneer) AuctionExecuted(ctx context.Context, id auction.ID) (err error) {
	defer func() { metrics.MetricIncrCounter(ctx, err, a.metricExecuted) }()

	a.lk.Lock()
	defer a.lk.Unlock()

	aa, err := a.store.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	if aa.Status != auction.StatusDead {
		return fmt.Errorf("auction %s is still accepting bids", id)
	}
	if !aa.Matched() {
		return fmt.Errorf("auction %s resolved without a match", id)
	}

	if err := mbroker.PublishMsgAuctionExecuted(ctx, a.mb, *aa, a.height); err != nil {
		return fmt.Errorf("publishing auction executed: %v", err)
	}
	log.Infof("auction %s executed at height %d", id, a.height)
	return nil
}

// CheckExpiry advances the engine to height and resolves every alive
// auction whose window closed. Heights only move forward; re-running a
// sweep at the same height is a no-op. Auctions resolve in end-height
// order, so outcomes are deterministic for a given operation sequence.
func (a *Auctioneer) CheckExpiry(ctx context.Context, height uint64) error {
	a.lk.Lock()
	defer a.lk.Unlock()

	if height < a.height {
		log.Warnf("ignoring height %d behind current %d", height, a.height)
		return nil
	}
	a.height = height

	ids, err := a.store.ExpiredIDs(ctx, height)
	if err != nil {
		return fmt.Errorf("listing expired auctions: %v", err)
	}
	for _, id := range ids {
		if err := a.resolveAuction(ctx, id, height); err != nil {
			log.Errorf("resolving auction %s: %v", id, err)
		}
	}

	atomic.StoreUint64(&a.statLastSweep, height)
	return nil
}

// GetAuction returns an auction by id.
func (a *Auctioneer) GetAuction(ctx context.Context, id auction.ID) (*auction.Auction, error) {
	return a.store.GetAuction(ctx, id)
}

// ListAuctions lists auctions by applying a store.Query.
func (a *Auctioneer) ListAuctions(ctx context.Context, query store.Query) ([]auction.Auction, error) {
	return a.store.ListAuctions(ctx, query)
}

// resolveAuction marks one expired auction dead and emits its terminal
// event: matched if it holds bids, destroyed otherwise. Called with lk held.
func (a *Auctioneer) resolveAuction(ctx context.Context, id auction.ID, height uint64) error {
	aa, err := a.store.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	if aa.Status == auction.StatusDead {
		return nil
	}

	aa.Status = auction.StatusDead
	aa.EndHeight = height
	if err := a.store.FinalizeAuction(ctx, *aa); err != nil {
		return fmt.Errorf("finalizing auction: %v", err)
	}

	if aa.Matched() {
		log.Infof("auction %s matched at %d: %s pays %s", id, height, aa.HighestBid.BuyerID, aa.HighestBid.Amount)
		metrics.MetricIncrCounter(ctx, nil, a.metricMatched, metrics.AttrTier(aa.Tier.Level))
		if err := mbroker.PublishMsgAuctionMatched(ctx, a.mb, *aa); err != nil {
			log.Errorf("publishing auction matched: %v", err)
		}
		a.hooks.OnAuctionOver(ctx, aa.Clone())
		return nil
	}

	log.Infof("auction %s expired at %d without bids", id, height)
	metrics.MetricIncrCounter(ctx, nil, a.metricDestroyed, metrics.AttrTier(aa.Tier.Level))
	if err := mbroker.PublishMsgAuctionDestroyed(ctx, a.mb, *aa, height); err != nil {
		log.Errorf("publishing auction destroyed: %v", err)
	}
	a.hooks.OnAuctionDestroyed(ctx, aa.Clone())
	return nil
}

func (a *Auctioneer) heightWatcher() {
	t := time.NewTicker(a.conf.HeightPollInterval)
	defer t.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-t.C:
			height, err := a.chain.GetChainHeight()
			if err != nil {
				log.Errorf("polling chain height: %v", err)
				continue
			}
			if err := a.CheckExpiry(a.ctx, height); err != nil {
				log.Errorf("sweeping at height %d: %v", height, err)
			}
		}
	}
}

// newBidID returns new monotonically increasing bid ids.
func (a *Auctioneer) newBidID() (auction.BidID, error) {
	a.entropyLk.Lock() // entropy is not safe for concurrent use

	if a.entropy == nil {
		a.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), a.entropy)
	if errors.Is(err, ulid.ErrMonotonicOverflow) {
		a.entropy = nil
		a.entropyLk.Unlock()
		return a.newBidID()
	} else if err != nil {
		a.entropyLk.Unlock()
		return "", fmt.Errorf("generating id: %v", err)
	}
	a.entropyLk.Unlock()
	return auction.BidID(strings.ToLower(id.String())), nil
}
