package auction

import "github.com/filecoin-project/go-state-types/big"

// Tier is the consumption category an auction belongs to, derived from the
// energy quantity on offer. Level 1 is the floor.
type Tier struct {
	Level uint32
}

// tierThresholds are the upper bounds (inclusive, in kWh) of levels 1..5.
// Quantities beyond the last bound land on level 6.
var tierThresholds = []big.Int{
	big.NewInt(100),
	big.NewInt(1_000),
	big.NewInt(10_000),
	big.NewInt(100_000),
	big.NewInt(1_000_000),
}

// ClassifyTier maps an energy quantity to its tier. The mapping is total and
// non-decreasing: a larger quantity never gets a lower level.
func ClassifyTier(quantity big.Int) Tier {
	if quantity.Int == nil {
		return Tier{Level: 1}
	}
	for i, bound := range tierThresholds {
		if quantity.LessThanEqual(bound) {
			return Tier{Level: uint32(i) + 1}
		}
	}
	return Tier{Level: uint32(len(tierThresholds)) + 1}
}
