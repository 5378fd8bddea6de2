// Package inventory holds the agent's carried items and the bank.
package inventory

import (
	"sort"

	"idlecraft.ai/internal/sim/catalogs"
)

// StackableFunc reports whether an item shares a single slot however many are held.
type StackableFunc func(item string) bool

// Inventory is slot based. Non-stackable items take one slot each.
type Inventory struct {
	capacity  int
	stackable StackableFunc
	counts    map[string]int
}

func New(capacity int, stackable StackableFunc) *Inventory {
	if stackable == nil {
		stackable = func(string) bool { return false }
	}
	return &Inventory{capacity: capacity, stackable: stackable, counts: map[string]int{}}
}

// FromCatalog sizes an inventory and reads stackability from the item catalog.
func FromCatalog(capacity int, items catalogs.ItemCatalog) *Inventory {
	return New(capacity, func(id string) bool { return items.ByID[id].Stackable })
}

func (inv *Inventory) Capacity() int { return inv.capacity }

func (inv *Inventory) UsedSlots() int {
	used := 0
	for item, n := range inv.counts {
		used += inv.slotsFor(item, n)
	}
	return used
}

func (inv *Inventory) FreeSlots() int {
	free := inv.capacity - inv.UsedSlots()
	if free < 0 {
		return 0
	}
	return free
}

func (inv *Inventory) IsFull() bool { return inv.UsedSlots() >= inv.capacity }

func (inv *Inventory) IsEmpty() bool { return len(inv.counts) == 0 }

func (inv *Inventory) Count(item string) int { return inv.counts[item] }

func (inv *Inventory) Has(item string, n int) bool { return n <= 0 || inv.counts[item] >= n }

func (inv *Inventory) slotsFor(item string, n int) int {
	if n <= 0 {
		return 0
	}
	if inv.stackable(item) {
		return 1
	}
	return n
}

// extraSlots is how many new slots adding n of item would occupy.
func (inv *Inventory) extraSlots(item string, n int) int {
	have := inv.counts[item]
	return inv.slotsFor(item, have+n) - inv.slotsFor(item, have)
}

// CanAdd reports whether every entry fits at once.
func (inv *Inventory) CanAdd(items []catalogs.ItemCount) bool {
	need := 0
	pending := map[string]int{}
	for _, it := range items {
		if it.Count <= 0 {
			continue
		}
		have := inv.counts[it.Item] + pending[it.Item]
		need += inv.slotsFor(it.Item, have+it.Count) - inv.slotsFor(it.Item, have)
		pending[it.Item] += it.Count
	}
	return need <= inv.FreeSlots()
}

// Add is all or nothing.
func (inv *Inventory) Add(item string, n int) bool {
	if n <= 0 {
		return true
	}
	if inv.extraSlots(item, n) > inv.FreeSlots() {
		return false
	}
	inv.counts[item] += n
	return true
}

// AddAll adds every entry or none of them.
func (inv *Inventory) AddAll(items []catalogs.ItemCount) bool {
	if !inv.CanAdd(items) {
		return false
	}
	for _, it := range items {
		if it.Count > 0 {
			inv.counts[it.Item] += it.Count
		}
	}
	return true
}

// Remove is all or nothing.
func (inv *Inventory) Remove(item string, n int) bool {
	if n <= 0 {
		return true
	}
	if inv.counts[item] < n {
		return false
	}
	inv.counts[item] -= n
	if inv.counts[item] == 0 {
		delete(inv.counts, item)
	}
	return true
}

// DepositAll empties the inventory into the bank and returns what moved.
func (inv *Inventory) DepositAll(b *Bank) []catalogs.ItemCount {
	moved := inv.Snapshot()
	for _, it := range moved {
		b.Add(it.Item, it.Count)
	}
	inv.counts = map[string]int{}
	return moved
}

// Deposit moves up to n of item into the bank. n <= 0 moves all of it.
func (inv *Inventory) Deposit(b *Bank, item string, n int) int {
	have := inv.counts[item]
	if n <= 0 || n > have {
		n = have
	}
	if n == 0 {
		return 0
	}
	inv.Remove(item, n)
	b.Add(item, n)
	return n
}

// WithdrawUpTo takes as many of item from the bank as fit, capped at n.
func (inv *Inventory) WithdrawUpTo(b *Bank, item string, n int) int {
	if n <= 0 {
		return 0
	}
	if avail := b.Count(item); n > avail {
		n = avail
	}
	if !inv.stackable(item) {
		if free := inv.FreeSlots(); n > free {
			n = free
		}
	} else if inv.counts[item] == 0 && inv.FreeSlots() == 0 {
		n = 0
	}
	if n <= 0 {
		return 0
	}
	b.Remove(item, n)
	inv.counts[item] += n
	return n
}

// Snapshot lists held items sorted by id.
func (inv *Inventory) Snapshot() []catalogs.ItemCount {
	return sortedCounts(inv.counts)
}

func (inv *Inventory) Restore(items []catalogs.ItemCount) {
	inv.counts = map[string]int{}
	for _, it := range items {
		if it.Count > 0 {
			inv.counts[it.Item] += it.Count
		}
	}
}

// Bank has no capacity limit.
type Bank struct {
	counts map[string]int
}

func NewBank() *Bank { return &Bank{counts: map[string]int{}} }

func (b *Bank) Add(item string, n int) {
	if n > 0 {
		b.counts[item] += n
	}
}

func (b *Bank) Remove(item string, n int) bool {
	if n <= 0 {
		return true
	}
	if b.counts[item] < n {
		return false
	}
	b.counts[item] -= n
	if b.counts[item] == 0 {
		delete(b.counts, item)
	}
	return true
}

func (b *Bank) Count(item string) int { return b.counts[item] }

func (b *Bank) Has(item string, n int) bool { return n <= 0 || b.counts[item] >= n }

func (b *Bank) Snapshot() []catalogs.ItemCount { return sortedCounts(b.counts) }

func (b *Bank) Restore(items []catalogs.ItemCount) {
	b.counts = map[string]int{}
	for _, it := range items {
		b.Add(it.Item, it.Count)
	}
}

func sortedCounts(m map[string]int) []catalogs.ItemCount {
	out := make([]catalogs.ItemCount, 0, len(m))
	for item, n := range m {
		out = append(out, catalogs.ItemCount{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}
