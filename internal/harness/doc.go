// Package harness runs contract test scenarios against a simulated chain.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: counter
//	description: "count-up is per caller"
//	config: devnet.toml            # optional, relative to this file
//	contracts:
//	  - name: counter
//	    path: contracts/counter.clar
//	steps:
//	  - block:
//	      - sender: wallet_1
//	        call: counter.count-up
//	        expect: { status: ok, result: "(ok true)" }
//	      - sender: wallet_1
//	        transfer: { recipient: wallet_2, amount: 100 }
//	  - mine_empty: 2
//	  - read_only:
//	      call: counter.get-count
//	      args: [wallet_1]
//	      expect: u1
//	  - rollback: 1
//	  - check: { contract: counter, trusted_sender: true, warnings: 0 }
//	assertions:
//	  - { type: data_var, contract: counter, name: total, expect: u0 }
//	  - { type: map_entry, contract: counter, name: counts, key: wallet_1, expect: none }
//	  - { type: balance, asset: STX, owner: wallet_2, expect: u100000000000000 }
//	  - { type: block_height, expect: "1" }
//
// Arguments and keys use contract syntax (u1, 'ST..., (list 1 2)). Account
// and contract names stand for their principals.
//
// # Assertion Types
//
//   - data_var: the committed value of a data variable
//   - map_entry: a map entry, printed as (some ...) or none
//   - balance: an STX or contract.token balance
//   - block_height: the chain tip
//
// # Deterministic Testing
//
// Every scenario runs on a fresh in-memory session. Block times, hashes
// and costs depend only on the scenario, so the canonical JSON trace of a
// run can be compared against a golden file with RunWithGolden.
package harness
