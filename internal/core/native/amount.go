// Package native implements the ledger's base payment unit ("grains") with
// overflow-checked arithmetic. Balances and swap prices are grain amounts.
package native

import (
	"errors"
	"fmt"
	"math"
)

// Amount is a quantity of grains.
type Amount uint64

// GrainsPerToken is the grain denomination of one whole token of native value.
const GrainsPerToken Amount = 100_000_000

// MaxAmount is the largest representable grain amount.
const MaxAmount Amount = math.MaxUint64

// ErrOverflow is returned when an arithmetic step would leave the
// representable range.
var ErrOverflow = errors.New("native amount overflow")

// Add returns a + b, failing on wraparound.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b, failing when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// Covers reports whether the amount can pay for price.
func (a Amount) Covers(price Amount) bool {
	return a >= price
}

func (a Amount) String() string {
	return fmt.Sprintf("%d", uint64(a))
}
