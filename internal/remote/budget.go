package remote

import "sync"

// DefaultBudget is the per-scan call allowance used when none is configured.
const DefaultBudget = 1000

// Budget counts the API calls a scan may still issue. It is shared by the
// walker and concurrent fetches; every method is safe for concurrent use.
//
// Units move from remaining to reserved through Reserve and are spent by
// Consume. Remaining never includes reserved units.
type Budget struct {
	mu        sync.Mutex
	remaining int
	reserved  int
}

// NewBudget returns a budget of n calls. n <= 0 selects DefaultBudget.
func NewBudget(n int) *Budget {
	if n <= 0 {
		n = DefaultBudget
	}
	return &Budget{remaining: n}
}

// Take spends one unit for an immediate call.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Reserve sets one unit aside for a later Consume.
func (b *Budget) Reserve() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	b.reserved++
	return true
}

// Consume spends a reserved unit, or takes a fresh one when none is reserved.
func (b *Budget) Consume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserved > 0 {
		b.reserved--
		return true
	}
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Release hands back a unit that was consumed without issuing a call.
func (b *Budget) Release() {
	b.mu.Lock()
	b.remaining++
	b.mu.Unlock()
}

// Adopt lowers the budget to the provider's remaining quota. Units already
// reserved are accounted for, so in-flight fetches never overshoot it.
func (b *Budget) Adopt(providerRemaining int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	avail := providerRemaining - b.reserved
	if avail < 0 {
		avail = 0
	}
	if avail < b.remaining {
		b.remaining = avail
	}
}

// Zero drops every unit, reserved ones included.
func (b *Budget) Zero() {
	b.mu.Lock()
	b.remaining = 0
	b.reserved = 0
	b.mu.Unlock()
}

// Remaining reports the units not yet spent or reserved.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
