// Package engine scans files and directory trees with the pattern detector.
// It selects targets, runs detection concurrently and returns findings with
// paths and line numbers. This package is internal; external consumers
// should use the stable facade in pkg/core.
package engine
