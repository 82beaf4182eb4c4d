// Package integrity provides hash and signing helpers used to protect the
// roll journal's tamper-evident chain.
//
// Why this package exists:
// - It ensures each journaled roll carries a deterministic hash input.
// - It links rolls into a chain so history order and authenticity can be verified.
// - It isolates cryptographic details from higher-level storage code.
package integrity
