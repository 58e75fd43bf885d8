package auction

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/mr-tron/base58"
	mh "github.com/multiformats/go-multihash"
)

// NewID derives the auction identifier from the auction content and a salt.
// The digest covers every parameter that defines the auction, so the same
// offer re-listed with a fresh salt gets a new identity while an exact
// duplicate collides.
func NewID(seller AccountID, quantity, startingBid big.Int, auctionPeriod uint64, tier Tier, salt []byte) (ID, error) {
	preimage := fmt.Sprintf("%s|%s|%s|%d|%d|%x",
		seller, quantity, startingBid, auctionPeriod, tier.Level, salt)
	sum, err := mh.Sum([]byte(preimage), mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hashing auction content: %v", err)
	}
	return ID(base58.Encode(sum)), nil
}
