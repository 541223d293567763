package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTransaction_AssignsDistinctIDs(t *testing.T) {
	a := NewTransaction()
	b := NewTransaction()
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestNopLockManager_NeverBlocks(t *testing.T) {
	var lm NopLockManager
	txn := NewTransaction()
	assert.NoError(t, lm.Lock(txn, 1, Exclusive))
	assert.NoError(t, lm.Unlock(txn, 1))
}
