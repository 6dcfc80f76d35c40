// Package ledger records terminal upload outcomes in SQLite so operators can
// inspect what left the device and what did not.
//
// The ledger is an audit trail only: nothing is redelivered from it. Rows are
// keyed by ticket ID and written once, when a ticket resolves.
package ledger
