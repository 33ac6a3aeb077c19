// Package engine contains the core scanning logic for piiscan. It walks local
// directory trees, matches file contents against a pattern set and aggregates
// the results. Remote repositories plug in through RemoteTree. This package
// is internal; external consumers should use the stable facade in pkg/core.
package engine
