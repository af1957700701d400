// Package store provides the persisted chain state of a simulated
// network.
//
// State is a key/value history in SQLite indexed by block height:
//   - blocks: one row per committed block, genesis at height 0
//   - kv_history: every write with the height that produced it; a NULL
//     value is a deletion
//   - block_txs: transaction receipts as canonical JSON
//
// Reads at the tip go through an LRU cache. Reads at an older height use
// the newest row at or below it, which is what at-block evaluation and
// historical queries need. RollbackTo deletes every row above a height.
//
// Uncommitted work lives in Overlay layers backed by an in-memory skip
// list. Each transaction and each nested contract call gets its own
// layer; a successful layer is committed into its parent and a failed
// one is discarded.
//
// # Database Configuration
//
//   - WAL mode for file databases
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
