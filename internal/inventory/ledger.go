// Package inventory holds the stock ledger and the OrderPlaced handler.
package inventory

import (
	"errors"
	"sync"
)

// ErrInsufficientStock is the domain failure; its text travels downstream as
// the InventoryFailed reason.
var ErrInsufficientStock = errors.New("insufficient stock")

// Ledger maps item name to remaining count. Check-and-decrement is a compound
// operation, so it runs under one lock; the lock is never held across a
// network call.
type Ledger struct {
	mu    sync.Mutex
	stock map[string]int
}

func NewLedger(initial map[string]int) *Ledger {
	stock := make(map[string]int, len(initial))
	for item, count := range initial {
		stock[item] = count
	}
	return &Ledger{stock: stock}
}

// Reserve decrements the item's count iff at least quantity remains, and
// returns the count left afterwards. An unknown item simply has zero stock.
func (l *Ledger) Reserve(item string, quantity int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stock[item] < quantity {
		return 0, ErrInsufficientStock
	}
	l.stock[item] -= quantity
	return l.stock[item], nil
}

func (l *Ledger) Stock(item string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[item]
}
