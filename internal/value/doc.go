// Package value implements the Clarity value domain.
//
// Values are immutable. Integers are 128-bit and every arithmetic
// operation is checked: overflow, underflow and division by zero are
// errors, never wrapped results. Lists are homogeneous, with the element
// type computed as the least supertype of the elements.
//
// The package also owns the encodings every other layer relies on:
//   - Serialize/Deserialize: the consensus binary format, used by the
//     store and for storage cost accounting
//   - String: the Clarity literal form, used in receipts and the CLI
//   - MarshalCanonical: RFC 8785 canonical JSON for hashing and golden traces
//   - c32check principal addresses
package value
