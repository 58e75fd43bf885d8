package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/big"
	badger "github.com/textileio/go-ds-badger3"
	golog "github.com/textileio/go-log/v2"
	"github.com/wattmarket/auction-core/auction"
	core "github.com/wattmarket/auction-core/auctioneer"
	"github.com/wattmarket/auction-core/chain"
	"github.com/wattmarket/auction-core/cmd/auctiond/auctioneer"
	"github.com/wattmarket/auction-core/cmd/auctiond/store"
	"github.com/wattmarket/auction-core/finalizer"
	mbroker "github.com/wattmarket/auction-core/msgbroker"
	"github.com/wattmarket/auction-core/rpc"
)

var log = golog.Logger("auctiond/service")

// Config defines params for Service configuration.
type Config struct {
	RepoPath string
	Listener net.Listener
	Auction  auctioneer.Config
}

// Service is a JSON-RPC service wrapper around an Auctioneer.
type Service struct {
	server *http.Server
	lib    *auctioneer.Auctioneer

	finalizer *finalizer.Finalizer
}

// New returns a new Service.
func New(conf Config, mb mbroker.MsgBroker, ch chain.Chain, hooks core.Hooks) (*Service, error) {
	fin := finalizer.NewFinalizer()

	dstore, err := badger.NewDatastore(filepath.Join(conf.RepoPath, "auctionstore"), &badger.DefaultOptions)
	if err != nil {
		return nil, fin.Cleanupf("creating repo: %v", err)
	}
	fin.Add(dstore)

	lib, err := auctioneer.New(dstore, mb, ch, hooks, conf.Auction)
	if err != nil {
		return nil, fin.Cleanupf("creating auctioneer: %v", err)
	}
	fin.Add(lib)

	rpcServer := jsonrpc.NewServer()
	rpcServer.Register(rpc.Namespace, &apiHandler{lib: lib})
	mux := http.NewServeMux()
	mux.Handle(rpc.Endpoint, rpcServer)

	s := &Service{
		server:    &http.Server{Handler: mux},
		lib:       lib,
		finalizer: fin,
	}

	go func() {
		if err := s.server.Serve(conf.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server error: %v", err)
		}
	}()

	log.Info("service started")
	return s, nil
}

// Start launches the engine's height watcher.
func (s *Service) Start() {
	s.lib.Start()
}

// Close the service.
func (s *Service) Close() error {
	err := s.server.Close()
	log.Info("service was shutdown")
	return s.finalizer.Cleanup(err)
}

type apiHandler struct {
	lib *auctioneer.Auctioneer
}

// CreateAuction opens a new auction and returns its id.
func (h *apiHandler) CreateAuction(ctx context.Context, params rpc.CreateAuctionParams) (string, error) {
	id, err := h.lib.CreateAuction(
		ctx,
		auction.AccountID(params.SellerID),
		params.Quantity,
		params.StartingBid,
		params.AuctionPeriod,
		params.Salt)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// BidOnAuction places a bid on an auction.
func (h *apiHandler) BidOnAuction(ctx context.Context, id, buyer string, amount big.Int) error {
	return h.lib.BidOnAuction(ctx, auction.ID(id), auction.AccountID(buyer), amount)
}

// DestroyAuction removes an alive auction on behalf of caller.
func (h *apiHandler) DestroyAuction(ctx context.Context, id, caller string) error {
	return h.lib.DestroyAuction(ctx, auction.ID(id), auction.AccountID(caller))
}

// AuctionExecuted records settlement of a matched auction.
func (h *apiHandler) AuctionExecuted(ctx context.Context, id string) error {
	return h.lib.AuctionExecuted(ctx, auction.ID(id))
}

// CheckExpiry sweeps auctions whose window closed at or before height.
func (h *apiHandler) CheckExpiry(ctx context.Context, height uint64) error {
	return h.lib.CheckExpiry(ctx, height)
}

// GetAuction returns an auction by id.
func (h *apiHandler) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	return h.lib.GetAuction(ctx, auction.ID(id))
}

// ListAuctions lists auctions.
func (h *apiHandler) ListAuctions(ctx context.Context, params rpc.ListAuctionsParams) ([]auction.Auction, error) {
	order := store.OrderAscending
	if params.Descending {
		order = store.OrderDescending
	}
	return h.lib.ListAuctions(ctx, store.Query{
		Offset: params.Offset,
		Limit:  params.Limit,
		Order:  order,
	})
}
