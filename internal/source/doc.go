// Package source is the shared source-repository cache: one bare mirror per
// upstream project and write-once shallow checkouts per version, derived from
// the mirror.
//
// Layout under the cache root:
//
//	<root>/<name>.git        bare mirror
//	<root>/<name>/<version>  shallow checkout of one ref
//
// Every mutating operation holds an exclusive flock on the path it writes.
// New directories are populated under a temporary name and renamed into
// place, so a failed or killed fetch never leaves a half-written checkout at
// the final path and the operation can simply be re-run.
package source
