// Package osmnode extracts control nodes (traffic signals, stop signs,
// traffic-calming features, ...) from OSM PBF extracts and builds fast
// on-disk membership indices over the matching node ids.
//
// A build run streams the node records once, classifies each node against
// a data-driven feature registry (package schema), external-sorts the
// matching ids per feature (package extsort) and publishes one index file
// per feature and format:
//
//   - feature.u64: flat sorted little-endian uint64 array, memory-mapped
//     and binary-searched (package index/sorted)
//   - feature.roar: serialized roaring bitmap, deserialized on load for
//     near-constant-time membership (package index/bitmap)
//
// Both formats answer Contains and Count with identical semantics; the
// Reader picks one per feature according to a format preference. Count is
// per-occurrence: a matching id appearing twice in the query slice counts
// twice, so counting signals along a route that revisits a node does the
// right thing.
//
// Index files are immutable once written. Builds publish through atomic
// renames, so a reader pointed at a directory never observes a partially
// written index, and any number of readers may query concurrently.
package osmnode
