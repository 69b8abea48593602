// Package mailbox is a one-slot, last-writer-wins channel for passing a
// single value (the status snapshot) from the scheduler process to the
// control-plane process. It has exactly four operations: Set, Get
// (destructive), Peek (non-destructive), and WaitForRead.
package mailbox
