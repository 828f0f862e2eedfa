// Package dag holds the dependency graph shared by the project catalog and the
// toolchain build graph. An edge from A to B records that B depends on A.
// Queries return IDs in a stable order: insertion order for traversal, sorted
// order for neighbour sets.
package dag
