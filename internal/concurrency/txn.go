// Package concurrency provides the minimal transaction and lock-manager
// stand-ins that a table layer built on top of this buffer pool and B+
// tree would thread through its calls. No package in this module calls
// into these types, the buffer pool, the B+ tree and the harness included;
// they fill the role the no-op transaction played in the code this was
// adapted from.
package concurrency

import "github.com/google/uuid"

// TransactionID identifies a transaction for logging purposes.
type TransactionID uuid.UUID

func (id TransactionID) String() string { return uuid.UUID(id).String() }

// Transaction is an opaque handle threaded through operations that would,
// in a full system, need to acquire locks and record undo state. This
// specification's index and buffer pool never inspect it.
type Transaction struct {
	id TransactionID
}

// NewTransaction begins a transaction with a fresh random id.
func NewTransaction() *Transaction {
	return &Transaction{id: TransactionID(uuid.New())}
}

func (t *Transaction) ID() TransactionID { return t.id }

// LockType distinguishes shared reads from exclusive writes at the
// row/tuple level, above the page latches the buffer pool already
// provides.
type LockType int

const (
	Shared LockType = iota
	Exclusive
)

// LockManager grants and releases locks on logical resources (rows, table
// pages) identified by an int64 key, independent of the page latches held
// by the buffer pool's guards.
type LockManager interface {
	Lock(txn *Transaction, resource int64, lockType LockType) error
	Unlock(txn *Transaction, resource int64) error
}

// NopLockManager grants every lock immediately and never blocks. The
// harness does not use it or any other LockManager; it relies on the
// tree's own latch crabbing alone.
type NopLockManager struct{}

func (NopLockManager) Lock(*Transaction, int64, LockType) error { return nil }
func (NopLockManager) Unlock(*Transaction, int64) error         { return nil }
