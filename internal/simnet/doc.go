// Package simnet is an in-process simulated chain.
//
// A Session owns a block-indexed store and an evaluator. Transactions run
// in blocks: every transaction of a block executes against an overlay of
// the block being built, and the block's writes and receipts commit to
// the store as one unit at the next height. Read-only calls and console
// expressions use a throwaway overlay and never commit.
//
// Block time, burn height and the active epoch are derived from the
// Config, so two sessions fed the same transactions produce the same
// receipts, block hashes and state digest.
package simnet
