package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlecraft.ai/internal/sim/catalogs"
)

func stackBait(id string) bool { return id == "bait" || id == "coins" }

func TestAddIsAllOrNothing(t *testing.T) {
	inv := New(3, stackBait)
	require.True(t, inv.Add("logs", 2))
	assert.False(t, inv.Add("logs", 2), "only one slot left")
	assert.Equal(t, 2, inv.Count("logs"))

	require.True(t, inv.Add("bait", 50))
	assert.True(t, inv.IsFull())
	assert.True(t, inv.Add("bait", 10), "stack grows without a new slot")
	assert.False(t, inv.Add("ore", 1))
	assert.Equal(t, 60, inv.Count("bait"))
}

func TestCanAddCountsPendingEntries(t *testing.T) {
	inv := New(3, stackBait)
	inv.Add("logs", 1)
	assert.True(t, inv.CanAdd([]catalogs.ItemCount{{Item: "logs", Count: 1}, {Item: "bait", Count: 9}}))
	assert.False(t, inv.CanAdd([]catalogs.ItemCount{{Item: "logs", Count: 1}, {Item: "ore", Count: 1}, {Item: "bait", Count: 1}}))
	assert.False(t, inv.AddAll([]catalogs.ItemCount{{Item: "ore", Count: 3}}))
	assert.Equal(t, 0, inv.Count("ore"))
}

func TestRemove(t *testing.T) {
	inv := New(5, nil)
	inv.Add("ore", 2)
	assert.False(t, inv.Remove("ore", 3))
	assert.True(t, inv.Remove("ore", 2))
	assert.True(t, inv.IsEmpty())
	assert.True(t, inv.Has("ore", 0))
	assert.False(t, inv.Has("ore", 1))
}

func TestDepositAndWithdraw(t *testing.T) {
	inv := New(4, stackBait)
	bank := NewBank()
	inv.Add("logs", 3)
	inv.Add("bait", 20)

	moved := inv.DepositAll(bank)
	assert.Equal(t, []catalogs.ItemCount{{Item: "bait", Count: 20}, {Item: "logs", Count: 3}}, moved)
	assert.True(t, inv.IsEmpty())
	assert.Equal(t, 3, bank.Count("logs"))

	bank.Add("logs", 10)
	assert.Equal(t, 4, inv.WithdrawUpTo(bank, "logs", 100), "capped by free slots")
	assert.Equal(t, 9, bank.Count("logs"))
	assert.Equal(t, 0, inv.WithdrawUpTo(bank, "bait", 5), "no slot for a new stack")

	assert.Equal(t, 2, inv.Deposit(bank, "logs", 2))
	assert.Equal(t, 11, bank.Count("logs"))
	assert.Equal(t, 20, inv.WithdrawUpTo(bank, "bait", 50), "capped by bank count")
	assert.Equal(t, 0, inv.WithdrawUpTo(bank, "missing", 1))
}

func TestSnapshotRestore(t *testing.T) {
	inv := New(28, nil)
	inv.Add("b", 1)
	inv.Add("a", 2)
	snap := inv.Snapshot()

	other := New(28, nil)
	other.Restore(snap)
	assert.Equal(t, snap, other.Snapshot())
	assert.Equal(t, "a", snap[0].Item)

	bank := NewBank()
	bank.Restore([]catalogs.ItemCount{{Item: "x", Count: 0}, {Item: "y", Count: 4}})
	assert.Equal(t, []catalogs.ItemCount{{Item: "y", Count: 4}}, bank.Snapshot())
}
