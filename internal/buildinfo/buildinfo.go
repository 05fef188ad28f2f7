// Package buildinfo stores build-time metadata shared across packages.
// All three variables are set via ldflags during release builds.
package buildinfo

// Version is the semantic version. Defaults to "dev".
var Version = "dev"

// Commit is the short VCS revision. Defaults to "none".
var Commit = "none"

// Date is the build timestamp. Defaults to "unknown".
var Date = "unknown"
