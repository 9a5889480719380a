// Package lookup meters network-incurring operations against a per-run budget.
package lookup

import (
	"github.com/rotisserie/eris"
)

// ErrBudgetExhausted is returned by Spend once the budget is used up. It is a
// stop signal for the run, not a lookup failure.
var ErrBudgetExhausted = eris.New("lookup budget exhausted")

// Budget counts lookups against an optional maximum. A nil *Budget is
// unlimited and counts nothing.
type Budget struct {
	max  int
	used int
}

// NewBudget creates a budget. A negative max means unlimited.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Unlimited returns a budget without a maximum.
func Unlimited() *Budget {
	return &Budget{max: -1}
}

// Spend reserves one lookup. It must be called before the network call it
// pays for.
func (b *Budget) Spend() error {
	if b == nil {
		return nil
	}
	if b.Exhausted() {
		return ErrBudgetExhausted
	}
	b.used++
	return nil
}

// Exhausted reports whether no further lookups may be spent.
func (b *Budget) Exhausted() bool {
	if b == nil || b.max < 0 {
		return false
	}
	return b.used >= b.max
}

// Used returns the number of lookups spent so far.
func (b *Budget) Used() int {
	if b == nil {
		return 0
	}
	return b.used
}

// Max returns the configured maximum, or -1 when unlimited.
func (b *Budget) Max() int {
	if b == nil {
		return -1
	}
	return b.max
}
