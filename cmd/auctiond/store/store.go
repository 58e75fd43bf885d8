package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	golog "github.com/textileio/go-log/v2"
	"github.com/wattmarket/auction-core/auction"
)

const (
	// LogName is the store's logging subsystem name.
	LogName = "auctiond/store"

	// defaultListLimit is the default list page size.
	defaultListLimit = 10
	// maxListLimit is the max list page size.
	maxListLimit = 1000
)

var (
	log = golog.Logger(LogName)

	// dsPrefix is the prefix for auction records.
	// Structure: /auctions/<auction_id> -> Auction
	dsPrefix = ds.NewKey("/auctions")

	// dsExpiryPrefix is the height-ordered index of alive auctions.
	// Structure: /expiry/<end_height>/<auction_id> -> nil
	// End heights are fixed-width hex so key order equals height order.
	dsExpiryPrefix = ds.NewKey("/expiry")
)

// Store persists auctions in a transactional datastore.
type Store struct {
	store ds.TxnDatastore
}

// NewStore returns a new Store backed by store.
func NewStore(store ds.TxnDatastore) *Store {
	return &Store{store: store}
}

// InsertAuction writes a new alive auction and indexes its expiry height.
// Returns auction.ErrDuplicateAuction if the id is already taken.
func (s *Store) InsertAuction(ctx context.Context, a auction.Auction) error {
	txn, err := s.store.NewTransaction(ctx, false)
	if err != nil {
		return fmt.Errorf("creating txn: %v", err)
	}
	defer txn.Discard(ctx)

	exists, err := txn.Has(ctx, dsPrefix.ChildString(string(a.ID)))
	if err != nil {
		return fmt.Errorf("checking existence: %v", err)
	}
	if exists {
		return auction.ErrDuplicateAuction
	}

	val, err := encode(a)
	if err != nil {
		return fmt.Errorf("encoding value: %v", err)
	}
	if err := txn.Put(ctx, dsPrefix.ChildString(string(a.ID)), val); err != nil {
		return fmt.Errorf("putting value: %v", err)
	}
	if err := txn.Put(ctx, expiryKey(a.ExpiresAt(), a.ID), nil); err != nil {
		return fmt.Errorf("putting expiry index: %v", err)
	}

	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("committing txn: %v", err)
	}
	log.Debugf("inserted auction %s expiring at %d", a.ID, a.ExpiresAt())
	return nil
}

// GetAuction returns an auction by id.
// Returns auction.ErrAuctionDoesNotExist if it's not in the store.
func (s *Store) GetAuction(ctx context.Context, id auction.ID) (*auction.Auction, error) {
	return getAuction(ctx, s.store, id)
}

func getAuction(ctx context.Context, reader ds.Read, id auction.ID) (*auction.Auction, error) {
	val, err := reader.Get(ctx, dsPrefix.ChildString(string(id)))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, auction.ErrAuctionDoesNotExist
	} else if err != nil {
		return nil, fmt.Errorf("getting key: %v", err)
	}
	r, err := decode(val)
	if err != nil {
		return nil, fmt.Errorf("decoding value: %v", err)
	}
	return &r, nil
}

// SaveAuction overwrites an existing auction record, leaving the expiry
// index untouched. Used when a bid is accepted.
func (s *Store) SaveAuction(ctx context.Context, a auction.Auction) error {
	val, err := encode(a)
	if err != nil {
		return fmt.Errorf("encoding value: %v", err)
	}
	if err := s.store.Put(ctx, dsPrefix.ChildString(string(a.ID)), val); err != nil {
		return fmt.Errorf("putting value: %v", err)
	}
	return nil
}

// FinalizeAuction writes the resolved (dead) record and drops the auction
// from the expiry index.
func (s *Store) FinalizeAuction(ctx context.Context, a auction.Auction) error {
	txn, err := s.store.NewTransaction(ctx, false)
	if err != nil {
		return fmt.Errorf("creating txn: %v", err)
	}
	defer txn.Discard(ctx)

	val, err := encode(a)
	if err != nil {
		return fmt.Errorf("encoding value: %v", err)
	}
	if err := txn.Put(ctx, dsPrefix.ChildString(string(a.ID)), val); err != nil {
		return fmt.Errorf("putting value: %v", err)
	}
	if err := txn.Delete(ctx, expiryKey(a.ExpiresAt(), a.ID)); err != nil {
		return fmt.Errorf("deleting expiry index: %v", err)
	}

	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("committing txn: %v", err)
	}
	return nil
}

// RemoveAuction deletes the record and its expiry index entry.
func (s *Store) RemoveAuction(ctx context.Context, a auction.Auction) error {
	txn, err := s.store.NewTransaction(ctx, false)
	if err != nil {
		return fmt.Errorf("creating txn: %v", err)
	}
	defer txn.Discard(ctx)

	if err := txn.Delete(ctx, dsPrefix.ChildString(string(a.ID))); err != nil {
		return fmt.Errorf("deleting value: %v", err)
	}
	if err := txn.Delete(ctx, expiryKey(a.ExpiresAt(), a.ID)); err != nil {
		return fmt.Errorf("deleting expiry index: %v", err)
	}

	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("committing txn: %v", err)
	}
	return nil
}

// ExpiredIDs returns the ids of alive auctions whose window closed at or
// before height, ordered by end height then id. The expiry index keys are
// height-ordered, so the scan stops at the first entry beyond height.
func (s *Store) ExpiredIDs(ctx context.Context, height uint64) ([]auction.ID, error) {
	results, err := s.store.Query(ctx, dsq.Query{
		Prefix:   dsExpiryPrefix.String(),
		Orders:   []dsq.Order{dsq.OrderByKey{}},
		KeysOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying expiry index: %v", err)
	}
	defer func() {
		if err := results.Close(); err != nil {
			log.Errorf("closing results: %v", err)
		}
	}()

	var ids []auction.ID
	for res := range results.Next() {
		if res.Error != nil {
			return nil, fmt.Errorf("getting next result: %v", res.Error)
		}
		endHeight, id, err := parseExpiryKey(res.Key)
		if err != nil {
			return nil, fmt.Errorf("parsing expiry key: %v", err)
		}
		if endHeight > height {
			break
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Query is used to query for auctions.
type Query struct {
	Offset int
	Order  Order
	Limit  int
}

func (q Query) setDefaults() Query {
	if q.Limit == -1 {
		q.Limit = maxListLimit
	} else if q.Limit <= 0 {
		q.Limit = defaultListLimit
	} else if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Order specifies the order of list results.
// Default is descending by id.
type Order int

const (
	// OrderDescending lists results by id, descending.
	OrderDescending Order = iota
	// OrderAscending lists results by id, ascending.
	OrderAscending
)

// ListAuctions lists auctions by applying a Query.
func (s *Store) ListAuctions(ctx context.Context, query Query) ([]auction.Auction, error) {
	query = query.setDefaults()

	var order dsq.Order
	switch query.Order {
	case OrderDescending:
		order = dsq.OrderByKeyDescending{}
	case OrderAscending:
		order = dsq.OrderByKey{}
	}

	results, err := s.store.Query(ctx, dsq.Query{
		Prefix: dsPrefix.String(),
		Orders: []dsq.Order{order},
		Offset: query.Offset,
		Limit:  query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("querying auctions: %v", err)
	}
	defer func() {
		if err := results.Close(); err != nil {
			log.Errorf("closing results: %v", err)
		}
	}()

	var list []auction.Auction
	for res := range results.Next() {
		if res.Error != nil {
			return nil, fmt.Errorf("getting next result: %v", res.Error)
		}
		a, err := decode(res.Value)
		if err != nil {
			return nil, fmt.Errorf("decoding value: %v", err)
		}
		list = append(list, a)
	}
	return list, nil
}

func expiryKey(endHeight uint64, id auction.ID) ds.Key {
	return dsExpiryPrefix.ChildString(fmt.Sprintf("%016x", endHeight)).ChildString(string(id))
}

func parseExpiryKey(key string) (uint64, auction.ID, error) {
	parts := ds.RawKey(key).Namespaces()
	if len(parts) != 3 {
		return 0, "", fmt.Errorf("key %s has %d parts", key, len(parts))
	}
	endHeight, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return 0, "", fmt.Errorf("key %s has bad height: %v", key, err)
	}
	return endHeight, auction.ID(parts[2]), nil
}

func encode(a auction.Auction) ([]byte, error) {
	return cbor.Marshal(a)
}

func decode(v []byte) (a auction.Auction, err error) {
	if err := cbor.Unmarshal(v, &a); err != nil {
		return a, err
	}
	return a, nil
}
