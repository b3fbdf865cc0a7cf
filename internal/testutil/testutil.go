// Package testutil provides test helpers for inboxctl tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertIDs, etc.)
//   - builders.go: message builders
package testutil
