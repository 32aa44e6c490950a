package utils

import "math"

// TargetShares returns how many whole shares of an instrument priced at price
// are worth weight of totalValue. Fractional shares are floored. A non-positive
// price, weight or total value yields zero.
func TargetShares(totalValue float64, weight float64, price float64) int64 {
	if price <= 0 || weight <= 0 || totalValue <= 0 {
		return 0
	}

	return int64(math.Floor(totalValue * weight / price))
}
