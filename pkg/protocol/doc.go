// Package protocol defines the binary wire format for streaming head
// operations from a server-side engine to a client mirror.
//
// Every message is a frame with a fixed 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// A session opens with a client Hello carrying the protocol version and
// an optional session ID to resume. The server answers with a HeadOps
// frame flagged Resync: one Reset operation followed by an Insert per
// declaration currently materialised. After that, each reconcile pass
// that changes the head produces one sequenced HeadOps frame with its
// inserts and removes, and the client acknowledges the sequence number
// with an Ack frame. Fatal violations are reported with an Error frame
// before the connection closes.
//
// Payloads use varint length-prefixed strings and fixed big-endian
// integers. Fingerprints travel as fixed 8-byte values since they are
// uniformly distributed hashes that gain nothing from varint packing.
// Attribute maps are encoded in sorted name order, so encoding the same
// operation twice yields identical bytes.
//
// Decoding is defensive: length prefixes are checked against both the
// remaining buffer and fixed allocation ceilings, so a malicious peer
// cannot force large allocations with a short frame.
package protocol
