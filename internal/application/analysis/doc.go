// Package analysis implements the contract analysis pipeline.
//
// The service validates the request and then runs one of two variants:
//   - address: optional bytecode pre-check against the node provider, then
//     the analyzer runs directly against the deployed contract
//   - source: verified source is fetched from the block explorer, written to
//     a private workspace, flattened, a compiler version is resolved and
//     selected, and the analyzer runs on the flattened file
//
// Identical concurrent requests share one run and completed reports are
// cached in state storage.
package analysis
