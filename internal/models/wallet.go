package models

import "time"

// EntryKind separates the two sequences every wallet carries.
type EntryKind string

const (
	EntryIncome  EntryKind = "income"
	EntryOutcome EntryKind = "outcome"
)

// EntryStatus is the lifecycle of a wallet entry. Entries are immutable once
// created except for a single pending -> verified|rejected transition.
type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryVerified EntryStatus = "verified"
	EntryRejected EntryStatus = "rejected"
)

// WalletEntry is one row of the append-only wallet ledger. Amount is a
// positive integer in the smallest currency unit.
type WalletEntry struct {
	Id          string      `db:"id"`
	OwnerId     string      `db:"owner_id"`
	Kind        EntryKind   `db:"kind"`
	Amount      int64       `db:"amount"`
	Tag         string      `db:"tag"`
	Description string      `db:"description"`
	Status      EntryStatus `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
	VerifiedAt  *time.Time  `db:"verified_at"`
	VerifiedBy  string      `db:"verified_by"`
}

// BalanceSnapshot is a cached balance observation. Snapshots are append-only
// history and never authoritative: the balance is always re-derivable as
// sum(verified incomes) - sum(verified outcomes).
type BalanceSnapshot struct {
	Id        string    `db:"id"`
	OwnerId   string    `db:"owner_id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}
