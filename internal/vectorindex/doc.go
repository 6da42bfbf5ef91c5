// Package vectorindex holds the in-memory vector index implementations.
//
//   - flat: exact k-nearest-neighbour search over every stored record.
//     It is the baseline behaviour and the reference oracle.
//   - ivf: inverted-file partitioning over a flat index for approximate search.
//
// Both implement driven.VectorIndex and serialise inserts against searches
// with a readers-writer lock.
//
// # Import Rules
//
//   - Can Import: domain, ports/driven
//   - Cannot Import: services, adapters
package vectorindex
