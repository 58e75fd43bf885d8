package auction_test

import (
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattmarket/auction-core/auction"
)

func TestNewID(t *testing.T) {
	t.Parallel()

	tier := auction.ClassifyTier(big.NewInt(500))

	id1, err := auction.NewID("seller1", big.NewInt(500), big.NewInt(10), 100, tier, []byte("salt1"))
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	// Same content and salt collide.
	id2, err := auction.NewID("seller1", big.NewInt(500), big.NewInt(10), 100, tier, []byte("salt1"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// A fresh salt gives the same offer a new identity.
	id3, err := auction.NewID("seller1", big.NewInt(500), big.NewInt(10), 100, tier, []byte("salt2"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	// Any content change gives a new identity.
	id4, err := auction.NewID("seller1", big.NewInt(501), big.NewInt(10), 100, tier, []byte("salt1"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id4)
}
