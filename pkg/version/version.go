// Package version holds build-time version metadata for G6.
package version

// Version is the semantic version of the running binary. Overridden at
// build time via -ldflags "-X github.com/aristath/g6/pkg/version.Version=...".
var Version = "dev"

// SchemaVersion is the wire-format version advertised in resync responses
// and panel envelopes.
const SchemaVersion = "v1"
