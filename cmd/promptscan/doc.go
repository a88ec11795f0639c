// Package promptscan provides the command-line interface for promptscan.
// It configures subcommands (scan, serve, redact, etc.), parses flags, and
// executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/redactyl/promptscan/cmd/promptscan"
//	func main() { promptscan.Execute() }
package promptscan
