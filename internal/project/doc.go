// Package project describes buildable units. A Spec is assembled from ordered
// Layers (generic, category, concrete, architecture quirks, user extras) by
// Compose rather than by walking a type hierarchy. A Catalog relates projects
// through their declared package dependencies.
package project
